package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUsage indicates invalid run options, reported before any I/O.
	ErrUsage = errors.New("invalid usage")

	// ErrDirectoryNotFound indicates a missing migrations directory.
	ErrDirectoryNotFound = errors.New("migrations directory not found")
)

// StatementError reports a failed SQL statement. It is fatal for the run:
// the in-flight file's transaction is rolled back and no later pending file
// is attempted, while everything already committed stays committed.
type StatementError struct {
	Version   string
	Filename  string
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s (%s): statement failed: %v", e.Version, e.Filename, e.Err)
	}
	return fmt.Sprintf("migration %s: statement failed: %v", e.Filename, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// MissingRollbackError reports a rollback target that has no on-disk file
// or an empty rollback section. The run cannot safely continue past it.
type MissingRollbackError struct {
	Version  string
	Filename string
}

func (e *MissingRollbackError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("version %s has no migration file on disk", e.Version)
	}
	return fmt.Sprintf("version %s (%s) has no rollback statements", e.Version, e.Filename)
}
