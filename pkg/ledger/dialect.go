package ledger

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Dialect provides the SQL text for managing the ledger schema on a
// specific database. Queries use the placeholder style of the dialect's
// driver.
type Dialect interface {
	CreateMigrationsTableQuery() string
	CreateLockTableQuery() string
	InitLockRowQuery() string
	InsertMigrationQuery() string
	DeleteVersionQuery() string
	UpdateRepeatableQuery() string
	SelectAppliedQuery() string
	SelectLatestQuery() string
	SelectLatestVersionsQuery() string
	SelectVersionsAfterQuery() string
	SelectRepeatableChecksumsQuery() string
	AcquireLockQuery() string
	ReleaseLockQuery() string
	SelectLockQuery() string

	// IsUniqueViolation reports whether err is the driver's uniqueness
	// constraint violation. This is the mechanism preventing
	// double-application of a version.
	IsUniqueViolation(err error) bool
}

// SQLiteDialect provides the ledger queries for an SQLite database.
type SQLiteDialect struct{}

var _ Dialect = SQLiteDialect{}

func (SQLiteDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS strata_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version VARCHAR(255) UNIQUE,
			description VARCHAR(500),
			filename VARCHAR(500),
			migration_type VARCHAR(50),
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			checksum VARCHAR(128)
		)`
}

func (SQLiteDialect) CreateLockTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS strata_lock (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			locked BOOLEAN DEFAULT FALSE,
			acquired_at TIMESTAMP
		)`
}

func (SQLiteDialect) InitLockRowQuery() string {
	return `INSERT OR IGNORE INTO strata_lock (id, locked, acquired_at) VALUES (1, FALSE, NULL)`
}

func (SQLiteDialect) InsertMigrationQuery() string {
	return `
		INSERT INTO strata_migrations (version, description, filename, migration_type, applied_at, checksum)
		VALUES (?, ?, ?, ?, ?, ?)`
}

func (SQLiteDialect) DeleteVersionQuery() string {
	return `DELETE FROM strata_migrations WHERE version = ?`
}

func (SQLiteDialect) UpdateRepeatableQuery() string {
	return `
		UPDATE strata_migrations
		SET description = ?, applied_at = ?, checksum = ?
		WHERE filename = ? AND migration_type = ?`
}

func (SQLiteDialect) SelectAppliedQuery() string {
	return `
		SELECT version, description, filename, migration_type, applied_at, checksum
		FROM strata_migrations
		WHERE version IS NOT NULL
		ORDER BY applied_at ASC, version ASC`
}

func (SQLiteDialect) SelectLatestQuery() string {
	return `
		SELECT version, description, filename, migration_type, applied_at, checksum
		FROM strata_migrations
		WHERE version IS NOT NULL
		ORDER BY applied_at DESC, version DESC
		LIMIT 1`
}

func (SQLiteDialect) SelectLatestVersionsQuery() string {
	return `
		SELECT version FROM strata_migrations
		WHERE version IS NOT NULL
		ORDER BY applied_at DESC, version DESC
		LIMIT ?`
}

func (SQLiteDialect) SelectVersionsAfterQuery() string {
	return `
		SELECT version FROM strata_migrations
		WHERE version IS NOT NULL AND version > ?
		ORDER BY applied_at DESC, version DESC`
}

func (SQLiteDialect) SelectRepeatableChecksumsQuery() string {
	return `SELECT filename, checksum FROM strata_migrations WHERE migration_type = ?`
}

func (SQLiteDialect) AcquireLockQuery() string {
	return `UPDATE strata_lock SET locked = TRUE, acquired_at = ? WHERE id = 1 AND locked = FALSE`
}

func (SQLiteDialect) ReleaseLockQuery() string {
	return `UPDATE strata_lock SET locked = FALSE, acquired_at = NULL WHERE id = 1`
}

func (SQLiteDialect) SelectLockQuery() string {
	return `SELECT locked, acquired_at FROM strata_lock WHERE id = 1`
}

func (SQLiteDialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// PostgreSQLDialect provides the ledger queries for a PostgreSQL database.
type PostgreSQLDialect struct{}

var _ Dialect = PostgreSQLDialect{}

func (PostgreSQLDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS strata_migrations (
			id SERIAL PRIMARY KEY,
			version VARCHAR(255) UNIQUE,
			description VARCHAR(500),
			filename VARCHAR(500),
			migration_type VARCHAR(50),
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			checksum VARCHAR(128)
		)`
}

func (PostgreSQLDialect) CreateLockTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS strata_lock (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			locked BOOLEAN DEFAULT FALSE,
			acquired_at TIMESTAMP
		)`
}

func (PostgreSQLDialect) InitLockRowQuery() string {
	return `INSERT INTO strata_lock (id, locked, acquired_at) VALUES (1, FALSE, NULL) ON CONFLICT (id) DO NOTHING`
}

func (PostgreSQLDialect) InsertMigrationQuery() string {
	return `
		INSERT INTO strata_migrations (version, description, filename, migration_type, applied_at, checksum)
		VALUES ($1, $2, $3, $4, $5, $6)`
}

func (PostgreSQLDialect) DeleteVersionQuery() string {
	return `DELETE FROM strata_migrations WHERE version = $1`
}

func (PostgreSQLDialect) UpdateRepeatableQuery() string {
	return `
		UPDATE strata_migrations
		SET description = $1, applied_at = $2, checksum = $3
		WHERE filename = $4 AND migration_type = $5`
}

func (PostgreSQLDialect) SelectAppliedQuery() string {
	return `
		SELECT version, description, filename, migration_type, applied_at, checksum
		FROM strata_migrations
		WHERE version IS NOT NULL
		ORDER BY applied_at ASC, version ASC`
}

func (PostgreSQLDialect) SelectLatestQuery() string {
	return `
		SELECT version, description, filename, migration_type, applied_at, checksum
		FROM strata_migrations
		WHERE version IS NOT NULL
		ORDER BY applied_at DESC, version DESC
		LIMIT 1`
}

func (PostgreSQLDialect) SelectLatestVersionsQuery() string {
	return `
		SELECT version FROM strata_migrations
		WHERE version IS NOT NULL
		ORDER BY applied_at DESC, version DESC
		LIMIT $1`
}

func (PostgreSQLDialect) SelectVersionsAfterQuery() string {
	return `
		SELECT version FROM strata_migrations
		WHERE version IS NOT NULL AND version > $1
		ORDER BY applied_at DESC, version DESC`
}

func (PostgreSQLDialect) SelectRepeatableChecksumsQuery() string {
	return `SELECT filename, checksum FROM strata_migrations WHERE migration_type = $1`
}

func (PostgreSQLDialect) AcquireLockQuery() string {
	return `UPDATE strata_lock SET locked = TRUE, acquired_at = $1 WHERE id = 1 AND locked = FALSE`
}

func (PostgreSQLDialect) ReleaseLockQuery() string {
	return `UPDATE strata_lock SET locked = FALSE, acquired_at = NULL WHERE id = 1`
}

func (PostgreSQLDialect) SelectLockQuery() string {
	return `SELECT locked, acquired_at FROM strata_lock WHERE id = 1`
}

func (PostgreSQLDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
