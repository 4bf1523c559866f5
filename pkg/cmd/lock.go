package cmd

import (
	"context"
	"fmt"

	"github.com/stratadb/strata/pkg/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type lockParams struct {
	fx.In

	Config *config.Config
}

// lock creates the lock command group for inspecting and clearing the
// migration lock.
//
// A run that dies without releasing the lock (killed process, lost
// connection) leaves it held; "strata lock release" is the operator
// override for that case.
//
// Example usage:
//
//	strata lock status
//	strata lock release
func lock(p lockParams) *cli.Command {
	return &cli.Command{
		Name:   "lock",
		Usage:  "Inspect or release the migration lock",
		Before: requireConfig(p.Config),
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show whether the migration lock is held",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runLockStatus(ctx, cmd, p)
				},
			},
			{
				Name:  "release",
				Usage: "Force-release the migration lock",
				Description: `Clear the migration lock row unconditionally.

Only use this when a previous run terminated without releasing the lock.
Releasing the lock while another run is genuinely in progress removes its
concurrency protection.`,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runLockRelease(ctx, cmd, p)
				},
			},
		},
	}
}

func runLockStatus(ctx context.Context, cmd *cli.Command, p lockParams) error {
	eng, db, err := newEngine(p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := eng.Store().EnsureSchema(ctx); err != nil {
		return err
	}

	state, err := eng.Store().LockStatus(ctx)
	if err != nil {
		return err
	}

	if !state.Locked {
		fmt.Fprintln(cmd.Writer, "Lock: free")
		return nil
	}

	if state.AcquiredAt != nil {
		fmt.Fprintf(cmd.Writer, "Lock: held since %s\n", state.AcquiredAt.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintln(cmd.Writer, "Lock: held")
	}

	return nil
}

func runLockRelease(ctx context.Context, cmd *cli.Command, p lockParams) error {
	eng, db, err := newEngine(p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := eng.Store().EnsureSchema(ctx); err != nil {
		return err
	}

	if err := eng.Store().ReleaseLock(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.Writer, "Lock released.")
	return nil
}
