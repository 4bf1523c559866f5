package engine

import (
	"context"
	"time"

	"github.com/stratadb/strata/pkg/ledger"
	"github.com/stratadb/strata/pkg/migration"
)

// ApplyResult summarizes one Apply run.
type ApplyResult struct {
	// Versioned lists the versions applied this run, in order.
	Versioned []string

	// RunsAlways counts repeatable files executed unconditionally.
	RunsAlways int

	// RunsOnChange counts repeatable files executed because their checksum
	// drifted or was never recorded.
	RunsOnChange int

	// Baselined lists the versions recorded without execution.
	Baselined []string

	// BackupPath is the backup file written before the run, if requested.
	BackupPath string
}

// UpToDate reports whether the run produced no work.
func (r *ApplyResult) UpToDate() bool {
	return len(r.Versioned) == 0 && r.RunsAlways == 0 && r.RunsOnChange == 0 && len(r.Baselined) == 0
}

// Apply resolves and executes the pending set for one run.
//
// Pending versioned migrations are applied in ascending version order, each
// file's statements inside one transaction together with its ledger row.
// The first statement failure aborts the run; later pending files are not
// attempted. After versioned migrations, every runs-always file executes
// unconditionally and every runs-on-change file executes when its checksum
// drifted, each inside its own transaction with its ledger row upserted.
//
// The singleton lock is held for the duration of the run; a concurrent run
// fails fast with ledger.ErrLocked.
func (e *Engine) Apply(ctx context.Context, opts ApplyOptions) (*ApplyResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dir, err := e.loadDir()
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}

	if opts.Backup {
		path, err := e.backup(opts.BackupDir)
		if err != nil {
			return nil, err
		}
		result.BackupPath = path
		e.logger.Info("backup created", "path", path)
	}

	if err := e.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	err = e.withLock(ctx, func() error {
		applied, err := e.store.AppliedVersions(ctx)
		if err != nil {
			return err
		}

		if opts.Baseline {
			return e.baseline(ctx, dir, opts.ToVersion, appliedSet(applied), result)
		}

		pending := pendingFiles(dir, appliedSet(applied), opts)
		if len(pending) > 0 {
			e.logger.Info("pending migrations resolved", "count", len(pending))
		}

		for _, f := range pending {
			if err := e.applyVersioned(ctx, f); err != nil {
				return err
			}
			result.Versioned = append(result.Versioned, f.Version)
		}

		if err := e.applyRunsAlways(ctx, dir, result); err != nil {
			return err
		}

		return e.applyRunsOnChange(ctx, dir, result)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// pendingFiles computes allVersionedFiles minus alreadyAppliedVersions,
// preserving ascending version order, then narrows by count or to-version.
// The to-version cut is inclusive and order-preserving: versions greater
// than it are never taken, even when it does not itself appear.
func pendingFiles(dir *migration.Dir, applied map[string]bool, opts ApplyOptions) []*migration.File {
	var pending []*migration.File
	for _, f := range dir.Versioned {
		if applied[f.Version] {
			continue
		}
		if opts.ToVersion != "" && f.Version > opts.ToVersion {
			break
		}
		pending = append(pending, f)
		if opts.Count > 0 && len(pending) == opts.Count {
			break
		}
	}
	return pending
}

func (e *Engine) applyVersioned(ctx context.Context, f *migration.File) error {
	start := time.Now()
	e.logger.Info("applying migration", "version", f.Version, "filename", f.Filename)

	err := e.execute(ctx, f, f.Upgrade, func(s *ledger.Store) error {
		return s.RecordUpgrade(ctx, ledger.Record{
			Version:     f.Version,
			Description: f.Description,
			Filename:    f.Filename,
			Kind:        migration.KindVersioned,
			Checksum:    f.Checksum(),
		})
	})
	if err != nil {
		return err
	}

	e.logger.Info("migration applied", "version", f.Version, "duration", time.Since(start))
	return nil
}

func (e *Engine) applyRunsAlways(ctx context.Context, dir *migration.Dir, result *ApplyResult) error {
	for _, f := range dir.RunsAlways {
		e.logger.Info("applying runs-always migration", "filename", f.Filename)

		err := e.execute(ctx, f, f.Upgrade, func(s *ledger.Store) error {
			return s.UpsertRepeatable(ctx, ledger.Record{
				Description: f.Description,
				Filename:    f.Filename,
				Kind:        migration.KindRunsAlways,
				Checksum:    f.Checksum(),
			})
		})
		if err != nil {
			return err
		}

		result.RunsAlways++
	}
	return nil
}

func (e *Engine) applyRunsOnChange(ctx context.Context, dir *migration.Dir, result *ApplyResult) error {
	if len(dir.RunsOnChange) == 0 {
		return nil
	}

	recorded, err := e.store.RepeatableChecksums(ctx, migration.KindRunsOnChange)
	if err != nil {
		return err
	}

	for _, f := range dir.RunsOnChange {
		checksum := f.Checksum()
		if prev, ok := recorded[f.Filename]; ok && prev == checksum {
			continue
		}

		e.logger.Info("applying runs-on-change migration", "filename", f.Filename)

		err := e.execute(ctx, f, f.Upgrade, func(s *ledger.Store) error {
			return s.UpsertRepeatable(ctx, ledger.Record{
				Description: f.Description,
				Filename:    f.Filename,
				Kind:        migration.KindRunsOnChange,
				Checksum:    checksum,
			})
		})
		if err != nil {
			return err
		}

		result.RunsOnChange++
	}
	return nil
}

// baseline records ledger rows for every versioned file up to and including
// toVersion without executing any statements. Checksums are computed from
// the real upgrade statements so later drift auditing still works.
func (e *Engine) baseline(ctx context.Context, dir *migration.Dir, toVersion string, applied map[string]bool, result *ApplyResult) error {
	for _, f := range dir.Versioned {
		if f.Version > toVersion {
			break
		}
		if applied[f.Version] {
			continue
		}

		err := e.store.RecordUpgrade(ctx, ledger.Record{
			Version:     f.Version,
			Description: f.Description,
			Filename:    f.Filename,
			Kind:        migration.KindVersioned,
			Checksum:    f.Checksum(),
		})
		if err != nil {
			return err
		}

		result.Baselined = append(result.Baselined, f.Version)
	}

	e.logger.Info("baseline set", "to_version", toVersion, "recorded", len(result.Baselined))
	return nil
}

func appliedSet(versions []string) map[string]bool {
	set := make(map[string]bool, len(versions))
	for _, v := range versions {
		set[v] = true
	}
	return set
}
