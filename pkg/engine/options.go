package engine

import "github.com/pkg/errors"

type (
	// ApplyOptions narrows one Apply run. Zero values mean "not set";
	// Count and ToVersion are mutually exclusive.
	ApplyOptions struct {
		// Count applies at most N pending versioned migrations.
		Count int

		// ToVersion applies versioned migrations up to and including this
		// version.
		ToVersion string

		// Baseline marks versioned migrations up to ToVersion as applied
		// without executing their statements. Requires ToVersion.
		Baseline bool

		// Backup copies the database file before any execution. File-based
		// databases only.
		Backup bool

		// BackupDir is the directory for backup files.
		BackupDir string
	}

	// RollbackOptions narrows one Rollback run. Count and ToVersion are
	// mutually exclusive; when neither is set, Count defaults to 1.
	RollbackOptions struct {
		// Count undoes the N most recently applied versions.
		Count int

		// ToVersion undoes everything applied after this version,
		// exclusive.
		ToVersion string
	}
)

// Validate reports option misuse before any I/O happens.
func (o ApplyOptions) Validate() error {
	if o.Count < 0 {
		return errors.Wrap(ErrUsage, "count must be a positive integer")
	}
	if o.Count > 0 && o.ToVersion != "" {
		return errors.Wrap(ErrUsage, "count and to-version are mutually exclusive")
	}
	if o.Baseline && o.ToVersion == "" {
		return errors.Wrap(ErrUsage, "baseline requires to-version")
	}
	return nil
}

// Validate reports option misuse before any I/O happens.
func (o RollbackOptions) Validate() error {
	if o.Count < 0 {
		return errors.Wrap(ErrUsage, "count must be a positive integer")
	}
	if o.Count > 0 && o.ToVersion != "" {
		return errors.Wrap(ErrUsage, "count and to-version are mutually exclusive")
	}
	return nil
}
