package cmd

import (
	"context"
	"fmt"

	"github.com/stratadb/strata/pkg/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type statusParams struct {
	fx.In

	Config *config.Config
}

// status creates the status command for showing migration state.
//
// The status command displays which versioned migrations have been applied,
// the latest applied version, how many are pending, and whether the
// migration lock is currently held.
//
// Example usage:
//
//	strata status
//	strata status --verbose
func status(p statusParams) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show migration status",
		Description: `Display the current migration status for the configured database.

The status command shows:
- Applied versioned migrations from the ledger
- The latest applied version
- Pending versioned files not yet applied
- Whether the migration lock is currently held`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show each applied migration with its timestamp",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStatus(ctx, cmd, p)
		},
	}
}

func runStatus(ctx context.Context, cmd *cli.Command, p statusParams) error {
	verbose := cmd.Bool("verbose")

	eng, db, err := newEngine(p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	st, err := eng.Status(ctx)
	if err != nil {
		return err
	}

	if verbose {
		for _, r := range st.Applied {
			fmt.Fprintf(cmd.Writer, "  ✓ %s %s (%s)\n",
				r.Version, r.Description, r.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		if len(st.Applied) > 0 {
			fmt.Fprintln(cmd.Writer)
		}
	}

	if st.Latest != nil {
		fmt.Fprintf(cmd.Writer, "Latest version: %s (%s)\n", st.Latest.Version, st.Latest.Description)
	} else {
		fmt.Fprintln(cmd.Writer, "Latest version: none")
	}

	fmt.Fprintf(cmd.Writer, "Applied: %d, Pending: %d\n", len(st.Applied), len(st.Pending))
	for _, v := range st.Pending {
		fmt.Fprintf(cmd.Writer, "  ▶ %s\n", v)
	}

	if st.Lock.Locked {
		fmt.Fprintln(cmd.Writer, "Lock: held (a run may be in progress)")
	} else {
		fmt.Fprintln(cmd.Writer, "Lock: free")
	}

	return nil
}
