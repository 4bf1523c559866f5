package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/config"
	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/ledger"

	// Database drivers registered for config URL schemes.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// openDB opens the configured database and returns it with the matching
// ledger dialect. The engine executes migrations sequentially, so the pool
// is capped at a single connection; this also makes the postgres
// search_path setting stick for the whole run.
func openDB(cfg *config.Config) (*sql.DB, ledger.Dialect, error) {
	db, err := sql.Open(cfg.Driver(), cfg.DSN())
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open database %s", cfg.URL)
	}
	db.SetMaxOpenConns(1)

	var dialect ledger.Dialect
	switch cfg.Driver() {
	case "postgres":
		dialect = &ledger.PostgreSQLDialect{}
		if cfg.Schema != "" {
			if _, err := db.Exec(fmt.Sprintf("SET search_path TO %q", cfg.Schema)); err != nil {
				_ = db.Close()
				return nil, nil, errors.Wrapf(err, "failed to set search_path to %s", cfg.Schema)
			}
		}
	default:
		dialect = &ledger.SQLiteDialect{}
	}

	return db, dialect, nil
}

// newEngine opens the database and assembles an engine from the project
// config. The caller owns the returned *sql.DB and must close it.
func newEngine(cfg *config.Config) (*engine.Engine, *sql.DB, error) {
	db, dialect, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(engine.Config{
		DB:        db,
		Dialect:   dialect,
		Dir:       cfg.Dir,
		Path:      cfg.SQLitePath(),
		Delimiter: cfg.Delimiter,
		Logger:    slog.Default(),
	})

	return eng, db, nil
}
