// Package engine orchestrates migration application and rollback.
//
// Apply resolves the pending set of versioned migrations, executes each
// file's upgrade statements inside one transaction together with its ledger
// row, then runs the repeatable passes: every runs-always file, and every
// runs-on-change file whose statement checksum drifted. Rollback undoes the
// most recently applied versions in reverse chronological order of
// application.
//
// Execution is strictly sequential; ordering is the correctness invariant.
// A statement failure rolls back only the in-flight file's transaction and
// halts the run, so the ledger's committed state is always a true prefix of
// what has executed. Both orchestrators hold the singleton ledger lock for
// the duration of the run and fail fast with ledger.ErrLocked when another
// run is in progress.
package engine
