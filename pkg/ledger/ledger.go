package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/stratadb/strata/pkg/migration"
)

// ErrLocked indicates that another run currently holds the migration lock.
var ErrLocked = errors.New("migration lock is already held")

type (
	// DBTX is the subset of database/sql operations the ledger needs. Both
	// *sql.DB and *sql.Tx satisfy it.
	DBTX interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	}

	// Record is one row in the persisted migration log.
	Record struct {
		// Version is the versioned identity; empty for repeatable kinds,
		// stored as NULL.
		Version string

		Description string
		Filename    string
		Kind        migration.Kind
		AppliedAt   time.Time
		Checksum    string
	}

	// LockState is the singleton lock row.
	LockState struct {
		Locked     bool
		AcquiredAt *time.Time
	}

	// Store executes ledger operations against a DBTX. Each mutation is a
	// single-row statement and therefore atomic against the backing
	// connection; the ledger never contains a partially written record.
	Store struct {
		db      DBTX
		dialect Dialect
	}
)

// New returns a Store bound to db.
func New(db DBTX, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// WithTx returns a Store running the same dialect inside tx. Used to commit
// a ledger row in the same unit of work as the statements it records.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx, dialect: s.dialect}
}

// EnsureSchema idempotently creates the migration log table and the lock
// table, and seeds the singleton lock row.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{
		s.dialect.CreateMigrationsTableQuery(),
		s.dialect.CreateLockTableQuery(),
		s.dialect.InitLockRowQuery(),
	} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "failed to ensure ledger schema")
		}
	}
	return nil
}

// RecordUpgrade inserts one row for an applied migration. A uniqueness
// violation on version surfaces as migration.ErrDuplicateVersion.
func (s *Store) RecordUpgrade(ctx context.Context, r Record) error {
	var version any
	if r.Version != "" {
		version = r.Version
	}

	appliedAt := r.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.dialect.InsertMigrationQuery(),
		version, r.Description, r.Filename, string(r.Kind), appliedAt, r.Checksum)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return errors.Wrapf(migration.ErrDuplicateVersion, "version %s is already recorded", r.Version)
		}
		return errors.Wrapf(err, "failed to record migration %s", r.Filename)
	}

	return nil
}

// RecordRollback deletes the row for version. Deleting an absent version is
// a no-op.
func (s *Store) RecordRollback(ctx context.Context, version string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.DeleteVersionQuery(), version); err != nil {
		return errors.Wrapf(err, "failed to delete ledger row for version %s", version)
	}
	return nil
}

// UpsertRepeatable inserts a row for a repeatable migration, or updates the
// existing row's checksum, description, and applied time in place.
func (s *Store) UpsertRepeatable(ctx context.Context, r Record) error {
	appliedAt := r.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, s.dialect.UpdateRepeatableQuery(),
		r.Description, appliedAt, r.Checksum, r.Filename, string(r.Kind))
	if err != nil {
		return errors.Wrapf(err, "failed to update repeatable migration %s", r.Filename)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected > 0 {
		return nil
	}

	r.AppliedAt = appliedAt
	r.Version = ""
	return s.RecordUpgrade(ctx, r)
}

// ListApplied returns all versioned entries, oldest-first by application
// time.
func (s *Store) ListApplied(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.SelectAppliedQuery())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list applied migrations")
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, errors.Wrap(rows.Err(), "failed to iterate ledger rows")
}

// LatestApplied returns the most recently applied versioned entry, or nil
// when none exists.
func (s *Store) LatestApplied(ctx context.Context) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.SelectLatestQuery())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query latest migration")
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, errors.Wrap(rows.Err(), "failed to iterate ledger rows")
	}

	r, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AppliedVersions returns all applied versions, oldest-first.
func (s *Store) AppliedVersions(ctx context.Context) ([]string, error) {
	records, err := s.ListApplied(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(records))
	for _, r := range records {
		versions = append(versions, r.Version)
	}
	return versions, nil
}

// LatestVersions returns the limit most recently applied versions,
// newest-first.
func (s *Store) LatestVersions(ctx context.Context, limit int) ([]string, error) {
	return s.versionQuery(ctx, s.dialect.SelectLatestVersionsQuery(), limit)
}

// VersionsAfter returns every applied version greater than version,
// newest-first. The cutoff is exclusive.
func (s *Store) VersionsAfter(ctx context.Context, version string) ([]string, error) {
	return s.versionQuery(ctx, s.dialect.SelectVersionsAfterQuery(), version)
}

func (s *Store) versionQuery(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query applied versions")
	}
	defer func() { _ = rows.Close() }()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "failed to scan version")
		}
		versions = append(versions, v)
	}

	return versions, errors.Wrap(rows.Err(), "failed to iterate versions")
}

// RepeatableChecksums returns the filename to last-recorded checksum
// mapping for the given repeatable kind.
func (s *Store) RepeatableChecksums(ctx context.Context, kind migration.Kind) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.SelectRepeatableChecksumsQuery(), string(kind))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query repeatable checksums")
	}
	defer func() { _ = rows.Close() }()

	checksums := make(map[string]string)
	for rows.Next() {
		var filename string
		var checksum sql.NullString
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, errors.Wrap(err, "failed to scan checksum row")
		}
		checksums[filename] = checksum.String
	}

	return checksums, errors.Wrap(rows.Err(), "failed to iterate checksum rows")
}

// AcquireLock sets the singleton lock row, failing with ErrLocked when it
// is already held.
func (s *Store) AcquireLock(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, s.dialect.AcquireLockQuery(), time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to acquire migration lock")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return ErrLocked
	}

	return nil
}

// ReleaseLock clears the singleton lock row unconditionally.
func (s *Store) ReleaseLock(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.ReleaseLockQuery()); err != nil {
		return errors.Wrap(err, "failed to release migration lock")
	}
	return nil
}

// LockStatus reads the singleton lock row.
func (s *Store) LockStatus(ctx context.Context) (LockState, error) {
	var state LockState
	var acquiredAt sql.NullTime

	err := s.db.QueryRowContext(ctx, s.dialect.SelectLockQuery()).Scan(&state.Locked, &acquiredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, nil
		}
		return state, errors.Wrap(err, "failed to read lock state")
	}

	if acquiredAt.Valid {
		t := acquiredAt.Time
		state.AcquiredAt = &t
	}

	return state, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	var version, description, filename, kind, checksum sql.NullString
	var appliedAt sql.NullTime

	if err := rows.Scan(&version, &description, &filename, &kind, &appliedAt, &checksum); err != nil {
		return r, errors.Wrap(err, "failed to scan ledger row")
	}

	r.Version = version.String
	r.Description = description.String
	r.Filename = filename.String
	r.Kind = migration.Kind(kind.String)
	r.AppliedAt = appliedAt.Time
	r.Checksum = checksum.String

	return r, nil
}
