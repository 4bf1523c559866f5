package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/config"
	"github.com/stratadb/strata/pkg/consts"
	"github.com/stratadb/strata/pkg/migration"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type newParams struct {
	fx.In

	Config *config.Config
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// newCmd creates the new command for generating an empty versioned
// migration file at the next available version.
//
// Example usage:
//
//	strata new "add users table"
//	# creates migrations/0004_add_users_table.sql
func newCmd(p newParams) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create an empty versioned migration file",
		ArgsUsage: "<description>",
		Before:    requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runNew(cmd, p)
		},
	}
}

func runNew(cmd *cli.Command, p newParams) error {
	description := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if description == "" {
		return errors.New("a description is required: strata new <description>")
	}

	path, err := writeMigration(p.Config, description, nil, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Writer, "  ✓ %s\n", path)
	return nil
}

// writeMigration creates a versioned migration file at the next version
// with the given statement sections and returns its path. Empty sections
// produce bare markers for the author to fill in.
func writeMigration(cfg *config.Config, description string, upgrade, rollback []string) (string, error) {
	if err := os.MkdirAll(cfg.Dir, consts.ModeDir); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", cfg.Dir)
	}

	dir, err := migration.LoadDir(cfg.Dir, cfg.Delimiter)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%s.sql", dir.NextVersion(), slugify(description))
	path := filepath.Join(cfg.Dir, filename)

	content := renderMigration(description, upgrade, rollback)
	if err := os.WriteFile(path, []byte(content), consts.ModeFile); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}

	return path, nil
}

func renderMigration(description string, upgrade, rollback []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", consts.DescriptionPrefix, description)
	b.WriteString(consts.UpgradeMarker + "\n")
	for _, stmt := range upgrade {
		b.WriteString(stmt + "\n")
	}
	b.WriteString("\n" + consts.RollbackMarker + "\n")
	for _, stmt := range rollback {
		b.WriteString(stmt + "\n")
	}

	return b.String()
}

// slugify converts a human description into a filename-safe fragment.
func slugify(description string) string {
	s := strings.ToLower(strings.Join(strings.Fields(description), "_"))
	s = strings.ReplaceAll(s, "-", "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	return strings.Trim(s, "_")
}
