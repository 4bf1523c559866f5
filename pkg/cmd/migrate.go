package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stratadb/strata/pkg/config"
	"github.com/stratadb/strata/pkg/engine"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type migrateParams struct {
	fx.In

	Config *config.Config
}

// migrate creates the migrate command for applying pending migrations.
//
// The migrate command executes pending versioned migrations in ascending
// version order, then the repeatable migrations, recording each in the
// ledger so re-runs skip work that is already done.
//
// Command flags:
//   - --count, -n: Apply at most N pending versioned migrations
//   - --to-version: Apply pending versioned migrations up to and including a version
//   - --baseline: Record versioned migrations up to --to-version without executing them
//   - --backup: Copy the database file aside before running (sqlite only)
//
// Example usage:
//
//	# Apply everything pending
//	strata migrate
//
//	# Apply the next two pending versioned migrations
//	strata migrate --count 2
//
//	# Mark an existing database as already at version 0012
//	strata migrate --baseline --to-version 0012
func migrate(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"apply"},
		Usage:   "Apply pending migrations",
		Description: `Apply pending migrations to the configured database.

Versioned migrations run first, in ascending version order, each inside its
own transaction together with its ledger entry. Runs-always migrations then
execute unconditionally, and runs-on-change migrations execute only when
their upgrade checksum differs from the last recorded run.

If any statement fails the run stops; migrations applied before the failure
stay applied.`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Apply at most this many pending versioned migrations",
			},
			&cli.StringFlag{
				Name:  "to-version",
				Usage: "Apply pending versioned migrations up to and including this version",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.BoolFlag{
				Name:  "baseline",
				Usage: "Record migrations up to --to-version as applied without executing them",
			},
			&cli.BoolFlag{
				Name:  "backup",
				Usage: "Copy the database file aside before running (sqlite only)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate(ctx, cmd, p)
		},
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command, p migrateParams) error {
	opts := engine.ApplyOptions{
		Count:     int(cmd.Int("count")),
		ToVersion: cmd.String("to-version"),
		Baseline:  cmd.Bool("baseline"),
		Backup:    cmd.Bool("backup"),
		BackupDir: p.Config.BackupDir,
	}

	slog.Info("Starting migration run",
		"url", p.Config.URL,
		"dir", p.Config.Dir,
		"count", opts.Count,
		"to_version", opts.ToVersion,
		"baseline", opts.Baseline,
		"backup", opts.Backup,
	)

	eng, db, err := newEngine(p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	result, err := eng.Apply(ctx, opts)
	if err != nil {
		return err
	}

	if result.BackupPath != "" {
		fmt.Fprintf(cmd.Writer, "Backup written to %s\n", result.BackupPath)
	}

	for _, v := range result.Baselined {
		fmt.Fprintf(cmd.Writer, "  ✓ %s baselined\n", v)
	}
	for _, v := range result.Versioned {
		fmt.Fprintf(cmd.Writer, "  ✓ %s applied\n", v)
	}

	if result.UpToDate() {
		fmt.Fprintln(cmd.Writer, "All migrations are up to date.")
		return nil
	}

	fmt.Fprintf(cmd.Writer, "Summary: %d versioned, %d baselined, %d runs-always, %d runs-on-change\n",
		len(result.Versioned), len(result.Baselined), result.RunsAlways, result.RunsOnChange)

	return nil
}
