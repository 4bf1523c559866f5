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

type rollbackParams struct {
	fx.In

	Config *config.Config
}

// rollback creates the rollback command for undoing applied migrations.
//
// Rollback walks applied versioned migrations newest-first, executing each
// file's rollback section and removing its ledger entry. Without flags only
// the most recent migration is rolled back.
//
// Command flags:
//   - --count, -n: Roll back this many migrations
//   - --to-version: Roll back everything newer than this version (exclusive)
//
// Example usage:
//
//	# Roll back the most recent migration
//	strata rollback
//
//	# Roll back everything applied after version 0007
//	strata rollback --to-version 0007
func rollback(p rollbackParams) *cli.Command {
	return &cli.Command{
		Name:  "rollback",
		Usage: "Roll back applied migrations",
		Description: `Roll back applied versioned migrations, newest first.

Each rollback section runs in its own transaction together with the removal
of the migration's ledger entry. A migration whose file is missing or has an
empty rollback section stops the run before anything newer-than-it remains
rolled back in part.`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Roll back this many migrations (default 1)",
			},
			&cli.StringFlag{
				Name:  "to-version",
				Usage: "Roll back every migration applied after this version",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRollback(ctx, cmd, p)
		},
	}
}

func runRollback(ctx context.Context, cmd *cli.Command, p rollbackParams) error {
	opts := engine.RollbackOptions{
		Count:     int(cmd.Int("count")),
		ToVersion: cmd.String("to-version"),
	}

	slog.Info("Starting rollback run",
		"url", p.Config.URL,
		"count", opts.Count,
		"to_version", opts.ToVersion,
	)

	eng, db, err := newEngine(p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	result, err := eng.Rollback(ctx, opts)
	if err != nil {
		return err
	}

	if len(result.RolledBack) == 0 {
		fmt.Fprintln(cmd.Writer, "Nothing to roll back.")
		return nil
	}

	for _, v := range result.RolledBack {
		fmt.Fprintf(cmd.Writer, "  ✓ %s rolled back\n", v)
	}
	fmt.Fprintf(cmd.Writer, "Summary: %d migration(s) rolled back\n", len(result.RolledBack))

	return nil
}
