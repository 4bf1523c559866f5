// Package config loads and validates the strata.toml project file.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/consts"
)

// ErrNotFound is returned by Find when no strata.toml exists in the working
// directory or any of its parents.
var ErrNotFound = errors.New("strata.toml not found")

// Config represents the project configuration for migration management.
type Config struct {
	// URL is the database connection string. Supported schemes are
	// sqlite:// (path to a database file) and postgres://.
	URL string `toml:"url"`

	// Dir specifies the directory where migration files are stored
	Dir string `toml:"dir"`

	// Delimiter separates statements within a migration section
	Delimiter string `toml:"delimiter"`

	// BackupDir is where pre-run database backups are written
	BackupDir string `toml:"backup_dir"`

	// Schema is the postgres search_path to set after connecting.
	// Ignored for sqlite databases.
	Schema string `toml:"schema,omitempty"`

	// Models is an optional YAML schema file consumed by "strata make"
	Models string `toml:"models,omitempty"`
}

// Load parses a project configuration from the provided io.Reader and
// applies defaults for the optional fields.
//
// Example:
//
//	tomlData := `
//	url = "sqlite://app.db"
//	dir = "db/migrations"
//	`
//
//	cfg, err := config.Load(strings.NewReader(tomlData))
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	if err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if cfg.Dir == "" {
		cfg.Dir = consts.DefaultMigrationsDir
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = consts.DefaultDelimiter
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = consts.DefaultBackupDir
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFile loads a project configuration from the specified file path.
// This is a convenience function that opens the file and calls Load.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Find searches for strata.toml starting at dir and walking toward the
// filesystem root, returning the path of the first match. The original tool
// could be run from anywhere inside a project tree, so we preserve that.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolving working directory")
	}

	for {
		path := filepath.Join(dir, consts.ConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: url is required")
	}
	if _, _, err := splitURL(c.URL); err != nil {
		return err
	}
	return nil
}

// Driver returns the database/sql driver name for the configured URL,
// "sqlite" or "postgres".
func (c *Config) Driver() string {
	driver, _, _ := splitURL(c.URL)
	return driver
}

// DSN returns the data source name to pass to sql.Open. For sqlite URLs
// this is the file path; for postgres the URL is passed through unchanged.
func (c *Config) DSN() string {
	_, dsn, _ := splitURL(c.URL)
	return dsn
}

// SQLitePath returns the database file path for sqlite URLs, or "" when the
// configured database is not file-backed. Backup uses this to reject
// non-file databases.
func (c *Config) SQLitePath() string {
	driver, dsn, _ := splitURL(c.URL)
	if driver != "sqlite" {
		return ""
	}
	return dsn
}

func splitURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite", strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url, nil
	default:
		return "", "", errors.Errorf("config: unsupported database url %q (expected sqlite:// or postgres://)", url)
	}
}
