package engine

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/consts"
)

// backup copies the database file into backupDir with a timestamped name
// and returns the backup path. Only file-based databases can be backed up;
// requesting one for a server database is a usage error.
func (e *Engine) backup(backupDir string) (string, error) {
	if e.path == "" {
		return "", errors.Wrap(ErrUsage, "backup requires a file-based database")
	}

	if backupDir == "" {
		backupDir = consts.DefaultBackupDir
	}

	if err := os.MkdirAll(backupDir, consts.ModeDir); err != nil {
		return "", errors.Wrapf(err, "failed to create backup directory: %s", backupDir)
	}

	dst := filepath.Join(backupDir, "backup_"+time.Now().Format("20060102_150405")+".db")
	if err := copyFile(e.path, dst); err != nil {
		return "", err
	}

	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open database file: %s", src)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, consts.ModeFile)
	if err != nil {
		return errors.Wrapf(err, "failed to create backup file: %s", dst)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to copy database to %s", dst)
	}

	return errors.Wrap(out.Sync(), "failed to sync backup file")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
