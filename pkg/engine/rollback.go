package engine

import (
	"context"
	"time"

	"github.com/stratadb/strata/pkg/ledger"
)

// RollbackResult summarizes one Rollback run.
type RollbackResult struct {
	// RolledBack lists the versions undone, most recent first.
	RolledBack []string
}

// Rollback undoes already-applied versions in reverse chronological order
// of application, executing each file's rollback statements inside one
// transaction and deleting the corresponding ledger row in the same unit of
// work.
//
// A version with no on-disk file, or whose file has an empty rollback
// section, stops the run with a MissingRollbackError naming the blocking
// version; versions already rolled back this run stay rolled back.
func (e *Engine) Rollback(ctx context.Context, opts RollbackOptions) (*RollbackResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dir, err := e.loadDir()
	if err != nil {
		return nil, err
	}

	if err := e.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	result := &RollbackResult{}

	err = e.withLock(ctx, func() error {
		versions, err := e.rollbackTargets(ctx, opts)
		if err != nil {
			return err
		}

		for _, version := range versions {
			f := dir.Find(version)
			if f == nil {
				return &MissingRollbackError{Version: version}
			}
			if len(f.Rollback) == 0 {
				return &MissingRollbackError{Version: version, Filename: f.Filename}
			}

			start := time.Now()
			e.logger.Info("rolling back migration", "version", version, "filename", f.Filename)

			err := e.execute(ctx, f, f.Rollback, func(s *ledger.Store) error {
				return s.RecordRollback(ctx, version)
			})
			if err != nil {
				return err
			}

			e.logger.Info("rollback completed", "version", version, "duration", time.Since(start))
			result.RolledBack = append(result.RolledBack, version)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// rollbackTargets resolves the versions to undo, newest-first, bounded by
// count or by the exclusive to-version cutoff.
func (e *Engine) rollbackTargets(ctx context.Context, opts RollbackOptions) ([]string, error) {
	if opts.ToVersion != "" {
		return e.store.VersionsAfter(ctx, opts.ToVersion)
	}

	count := opts.Count
	if count == 0 {
		count = 1
	}
	return e.store.LatestVersions(ctx, count)
}
