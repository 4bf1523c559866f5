package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/consts"
	"github.com/urfave/cli/v3"
)

const starterConfig = `# strata project configuration
url = "sqlite://strata.db"
dir = "migrations"
delimiter = ";"
backup_dir = "backups"
`

// initCmd creates the init command for bootstrapping a new project.
//
// Example usage:
//
//	strata init
func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a new strata project in the current directory",
		Description: `Create the migrations directory and a starter strata.toml.

Existing files are left untouched, so init is safe to run in a directory
that already contains a project.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runInit(cmd)
		},
	}
}

func runInit(cmd *cli.Command) error {
	if err := os.MkdirAll(consts.DefaultMigrationsDir, consts.ModeDir); err != nil {
		return errors.Wrapf(err, "failed to create %s", consts.DefaultMigrationsDir)
	}
	fmt.Fprintf(cmd.Writer, "  ✓ %s/\n", consts.DefaultMigrationsDir)

	if _, err := os.Stat(consts.ConfigFile); err == nil {
		fmt.Fprintf(cmd.Writer, "  ⏭  %s already exists\n", consts.ConfigFile)
		return nil
	}

	if err := os.WriteFile(consts.ConfigFile, []byte(starterConfig), consts.ModeFile); err != nil {
		return errors.Wrapf(err, "failed to write %s", consts.ConfigFile)
	}
	fmt.Fprintf(cmd.Writer, "  ✓ %s\n", consts.ConfigFile)

	fmt.Fprintln(cmd.Writer, "\nProject initialized. Edit strata.toml to point at your database.")
	return nil
}
