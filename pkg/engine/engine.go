package engine

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/consts"
	"github.com/stratadb/strata/pkg/ledger"
	"github.com/stratadb/strata/pkg/migration"
)

type (
	// Config carries everything one run needs. There is no package-level
	// state; concurrent engines against different databases are safe.
	Config struct {
		// DB is the open database handle migrations execute against.
		DB *sql.DB

		// Dialect provides the ledger SQL for the target database.
		Dialect ledger.Dialect

		// Dir is the migrations directory.
		Dir string

		// Path is the filesystem path of the database when file-based
		// (SQLite). Empty for server databases; required for backups.
		Path string

		// Delimiter separates statements within a migration section.
		// Defaults to ";".
		Delimiter string

		// Logger receives run progress. Defaults to slog.Default().
		Logger *slog.Logger
	}

	// Engine applies and rolls back migrations against a single database.
	Engine struct {
		db        *sql.DB
		store     *ledger.Store
		dir       string
		path      string
		delimiter string
		logger    *slog.Logger
	}

	// Status describes the ledger and pending work for a migrations
	// directory.
	Status struct {
		// Applied lists versioned ledger entries, oldest-first.
		Applied []ledger.Record

		// Latest is the most recently applied versioned entry, or nil.
		Latest *ledger.Record

		// Pending lists versioned files not yet applied, ascending.
		Pending []string

		// Lock is the current lock row state.
		Lock ledger.LockState
	}
)

// New creates an Engine from cfg, applying defaults for the delimiter and
// logger.
func New(cfg Config) *Engine {
	delimiter := cfg.Delimiter
	if delimiter == "" {
		delimiter = consts.DefaultDelimiter
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		db:        cfg.DB,
		store:     ledger.New(cfg.DB, cfg.Dialect),
		dir:       cfg.Dir,
		path:      cfg.Path,
		delimiter: delimiter,
		logger:    logger,
	}
}

// Store exposes the engine's ledger store for operator surfaces (lock
// status, manual release).
func (e *Engine) Store() *ledger.Store {
	return e.store
}

// Status reports applied entries, pending versioned files, and the lock
// state. The ledger schema is created if missing so status works against a
// fresh database.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	dir, err := e.loadDir()
	if err != nil {
		return nil, err
	}

	if err := e.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	applied, err := e.store.ListApplied(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := e.store.LatestApplied(ctx)
	if err != nil {
		return nil, err
	}

	lock, err := e.store.LockStatus(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, r := range applied {
		appliedSet[r.Version] = true
	}

	var pending []string
	for _, f := range dir.Versioned {
		if !appliedSet[f.Version] {
			pending = append(pending, f.Version)
		}
	}

	return &Status{Applied: applied, Latest: latest, Pending: pending, Lock: lock}, nil
}

// loadDir loads the migrations directory, failing with ErrDirectoryNotFound
// when it does not exist. The orchestrators require the directory; the
// classifier itself does not.
func (e *Engine) loadDir() (*migration.Dir, error) {
	if !dirExists(e.dir) {
		return nil, errors.Wrapf(ErrDirectoryNotFound, "%s", e.dir)
	}
	return migration.LoadDir(e.dir, e.delimiter)
}

// withLock acquires the singleton ledger lock, runs fn, and releases the
// lock on every path. Fails fast with ledger.ErrLocked when another run
// holds it.
func (e *Engine) withLock(ctx context.Context, fn func() error) error {
	if err := e.store.AcquireLock(ctx); err != nil {
		return err
	}

	defer func() {
		if err := e.store.ReleaseLock(ctx); err != nil {
			e.logger.Error("failed to release migration lock", "error", err)
		}
	}()

	return fn()
}

// execute runs a file's statements followed by record inside one
// transaction. record receives a ledger store bound to the transaction so
// the ledger row commits with the statements, all-or-nothing.
func (e *Engine) execute(ctx context.Context, f *migration.File, statements []string, record func(*ledger.Store) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to begin transaction for %s", f.Filename)
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return &StatementError{Version: f.Version, Filename: f.Filename, Statement: stmt, Err: err}
		}
	}

	if err := record(e.store.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	return errors.Wrapf(tx.Commit(), "failed to commit %s", f.Filename)
}
