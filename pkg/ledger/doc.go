// Package ledger persists the migration log and lock row that make
// migration runs repeatable and auditable.
//
// The ledger consists of two tables: strata_migrations, recording one row
// per applied versioned migration and one row per repeatable migration
// (updated in place on re-run), and strata_lock, a singleton row expressing
// whether a run currently holds exclusive rights to mutate the ledger.
//
// Store operates over a DBTX, so the same operations run against a *sql.DB
// or inside an open *sql.Tx. This is how a versioned migration's ledger row
// commits atomically with the statements it records: the orchestrator binds
// a Store to the file's transaction. SQL text comes from a Dialect, with
// SQLite and PostgreSQL provided.
package ledger
