package engine_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/stratadb/strata/pkg/engine"
	"github.com/stratadb/strata/pkg/ledger"
)

type testEnv struct {
	eng    *engine.Engine
	db     *sql.DB
	dir    string
	dbPath string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "test.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	dir := filepath.Join(tmp, "migrations")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	eng := engine.New(engine.Config{
		DB:      db,
		Dialect: ledger.SQLiteDialect{},
		Dir:     dir,
		Path:    dbPath,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &testEnv{eng: eng, db: db, dir: dir, dbPath: dbPath}
}

func (e *testEnv) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, name), []byte(content), 0o644))
}

func (e *testEnv) tableExists(t *testing.T, name string) bool {
	t.Helper()
	var n int
	err := e.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func (e *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

const usersMigration = `-- description: create users
-- upgrade
CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT);

-- rollback
DROP TABLE users;
`

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("applies pending migrations in version order", func(t *testing.T) {
		env := newEnv(t)
		env.write(t, "0002_add_orders.sql", "-- upgrade\nCREATE TABLE orders (id INTEGER, user_id INTEGER);\n-- rollback\nDROP TABLE orders;\n")
		env.write(t, "0001_create_users.sql", usersMigration)

		result, err := env.eng.Apply(ctx, engine.ApplyOptions{})
		require.NoError(t, err)
		require.Equal(t, []string{"0001", "0002"}, result.Versioned)
		require.True(t, env.tableExists(t, "users"))
		require.True(t, env.tableExists(t, "orders"))
	})

	t.Run("re-run is a no-op", func(t *testing.T) {
		env := newEnv(t)
		env.write(t, "0001_create_users.sql", usersMigration)

		_, err := env.eng.Apply(ctx, engine.ApplyOptions{})
		require.NoError(t, err)

		result, err := env.eng.Apply(ctx, engine.ApplyOptions{})
		require.NoError(t, err)
		require.True(t, result.UpToDate())
	})

	t.Run("count narrows the pending set", func(t *testing.T) {
		env := newEnv(t)
		env.write(t, "0001_a.sql", "-- upgrade\nCREATE TABLE a (id INTEGER);\n")
		env.write(t, "0002_b.sql", "-- upgrade\nCREATE TABLE b (id INTEGER);\n")
		env.write(t, "0003_c.sql", "-- upgrade\nCREATE TABLE c (id INTEGER);\n")

		result, err := env.eng.Apply(ctx, engine.ApplyOptions{Count: 2})
		require.NoError(t, err)
		require.Equal(t, []string{"0001", "0002"}, result.Versioned)
		require.False(t, env.tableExists(t, "c"))
	})

	t.Run("to-version cut is inclusive", func(t *testing.T) {
		env := newEnv(t)
		env.write(t, "0001_a.sql", "-- upgrade\nCREATE TABLE a (id INTEGER);\n")
		env.write(t, "0002_b.sql", "-- upgrade\nCREATE TABLE b (id INTEGER);\n")
		env.write(t, "0003_c.sql", "-- upgrade\nCREATE TABLE c (id INTEGER);\n")

		result, err := env.eng.Apply(ctx, engine.ApplyOptions{ToVersion: "0002"})
		require.NoError(t, err)
		require.Equal(t, []string{"0001", "0002"}, result.Versioned)
		require.False(t, env.tableExists(t, "c"))
	})

	t.Run("missing directory fails", func(t *testing.T) {
		env := newEnv(t)
		require.NoError(t, os.RemoveAll(env.dir))

		_, err := env.eng.Apply(ctx, engine.ApplyOptions{})
		require.ErrorIs(t, err, engine.ErrDirectoryNotFound)
	})
}

func TestApplyOptionValidation(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	tests := []struct {
		name string
		opts engine.ApplyOptions
	}{
		{"negative count", engine.ApplyOptions{Count: -1}},
		{"count with to-version", engine.ApplyOptions{Count: 1, ToVersion: "0002"}},
		{"baseline without to-version", engine.ApplyOptions{Baseline: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.eng.Apply(ctx, tt.opts)
			require.ErrorIs(t, err, engine.ErrUsage)
		})
	}

	t.Run("rollback rejects count with to-version", func(t *testing.T) {
		_, err := env.eng.Rollback(ctx, engine.RollbackOptions{Count: 2, ToVersion: "0001"})
		require.ErrorIs(t, err, engine.ErrUsage)
	})
}

func TestApplyFailFast(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_a.sql", "-- upgrade\nCREATE TABLE a (id INTEGER);\n")
	env.write(t, "0002_bad.sql", "-- upgrade\nCREATE TABLE b (id INTEGER);\nSELECT * FROM missing_table;\n")
	env.write(t, "0003_c.sql", "-- upgrade\nCREATE TABLE c (id INTEGER);\n")

	_, err := env.eng.Apply(ctx, engine.ApplyOptions{})

	var stmtErr *engine.StatementError
	require.ErrorAs(t, err, &stmtErr)
	require.Equal(t, "0002", stmtErr.Version)
	require.Equal(t, "0002_bad.sql", stmtErr.Filename)
	require.Contains(t, stmtErr.Statement, "missing_table")

	// 0001 committed before the failure stays applied.
	require.True(t, env.tableExists(t, "a"))
	// The failing file's earlier statement rolled back with it.
	require.False(t, env.tableExists(t, "b"))
	// Later pending files were not attempted.
	require.False(t, env.tableExists(t, "c"))

	// The failed file stays pending and succeeds after a fix.
	env.write(t, "0002_bad.sql", "-- upgrade\nCREATE TABLE b (id INTEGER);\n")
	result, err := env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"0002", "0003"}, result.Versioned)
}

func TestApplyRunsAlways(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_audit.sql", "-- upgrade\nCREATE TABLE audit (note TEXT);\n")
	env.write(t, "RA__log.sql", "-- upgrade\nINSERT INTO audit (note) VALUES ('ran');\n")

	for run := 1; run <= 2; run++ {
		result, err := env.eng.Apply(ctx, engine.ApplyOptions{})
		require.NoError(t, err)
		require.Equal(t, 1, result.RunsAlways)
		require.Equal(t, run, env.countRows(t, "audit"))
	}
}

func TestApplyRunsOnChange(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_audit.sql", "-- upgrade\nCREATE TABLE audit (note TEXT);\n")
	env.write(t, "ROC__seed.sql", "-- upgrade\nINSERT INTO audit (note) VALUES ('v1');\n")

	result, err := env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, result.RunsOnChange)
	require.Equal(t, 1, env.countRows(t, "audit"))

	// Unchanged file is skipped.
	result, err = env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.Zero(t, result.RunsOnChange)
	require.Equal(t, 1, env.countRows(t, "audit"))

	// Comment edits do not count as change.
	env.write(t, "ROC__seed.sql", "-- description: seeding\n-- upgrade\n-- note the insert below\nINSERT INTO audit (note) VALUES ('v1');\n")
	result, err = env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.Zero(t, result.RunsOnChange)

	// A statement edit does.
	env.write(t, "ROC__seed.sql", "-- upgrade\nINSERT INTO audit (note) VALUES ('v2');\n")
	result, err = env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, result.RunsOnChange)
	require.Equal(t, 2, env.countRows(t, "audit"))
}

func TestApplyBaseline(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_a.sql", "-- upgrade\nCREATE TABLE a (id INTEGER);\n")
	env.write(t, "0002_b.sql", "-- upgrade\nCREATE TABLE b (id INTEGER);\n")
	env.write(t, "0003_c.sql", "-- upgrade\nCREATE TABLE c (id INTEGER);\n")

	result, err := env.eng.Apply(ctx, engine.ApplyOptions{Baseline: true, ToVersion: "0002"})
	require.NoError(t, err)
	require.Equal(t, []string{"0001", "0002"}, result.Baselined)

	// Recorded without executing.
	require.False(t, env.tableExists(t, "a"))
	require.False(t, env.tableExists(t, "b"))

	// A later apply only runs what the baseline left out.
	applied, err := env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"0003"}, applied.Versioned)
	require.True(t, env.tableExists(t, "c"))
}

func TestApplyBackup(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_create_users.sql", usersMigration)

	// First run creates the database file.
	_, err := env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)

	backupDir := filepath.Join(filepath.Dir(env.dbPath), "backups")
	result, err := env.eng.Apply(ctx, engine.ApplyOptions{Backup: true, BackupDir: backupDir})
	require.NoError(t, err)
	require.NotEmpty(t, result.BackupPath)

	info, err := os.Stat(result.BackupPath)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestApplyBackupRequiresFileDatabase(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_create_users.sql", usersMigration)

	serverEng := engine.New(engine.Config{
		DB:      env.db,
		Dialect: ledger.SQLiteDialect{},
		Dir:     env.dir,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := serverEng.Apply(ctx, engine.ApplyOptions{Backup: true})
	require.ErrorIs(t, err, engine.ErrUsage)
}

func TestRollback(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *testEnv {
		env := newEnv(t)
		env.write(t, "0001_a.sql", "-- upgrade\nCREATE TABLE a (id INTEGER);\n-- rollback\nDROP TABLE a;\n")
		env.write(t, "0002_b.sql", "-- upgrade\nCREATE TABLE b (id INTEGER);\n-- rollback\nDROP TABLE b;\n")
		env.write(t, "0003_c.sql", "-- upgrade\nCREATE TABLE c (id INTEGER);\n-- rollback\nDROP TABLE c;\n")

		_, err := env.eng.Apply(ctx, engine.ApplyOptions{})
		require.NoError(t, err)
		return env
	}

	t.Run("defaults to the most recent migration", func(t *testing.T) {
		env := setup(t)

		result, err := env.eng.Rollback(ctx, engine.RollbackOptions{})
		require.NoError(t, err)
		require.Equal(t, []string{"0003"}, result.RolledBack)
		require.False(t, env.tableExists(t, "c"))
		require.True(t, env.tableExists(t, "b"))
	})

	t.Run("count undoes newest first", func(t *testing.T) {
		env := setup(t)

		result, err := env.eng.Rollback(ctx, engine.RollbackOptions{Count: 2})
		require.NoError(t, err)
		require.Equal(t, []string{"0003", "0002"}, result.RolledBack)
		require.True(t, env.tableExists(t, "a"))
	})

	t.Run("to-version cutoff is exclusive", func(t *testing.T) {
		env := setup(t)

		result, err := env.eng.Rollback(ctx, engine.RollbackOptions{ToVersion: "0001"})
		require.NoError(t, err)
		require.Equal(t, []string{"0003", "0002"}, result.RolledBack)
		require.True(t, env.tableExists(t, "a"))

		// Rolled back versions are pending again.
		st, err := env.eng.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"0002", "0003"}, st.Pending)
	})

	t.Run("empty rollback section stops the run", func(t *testing.T) {
		env := newEnv(t)
		env.write(t, "0001_a.sql", "-- upgrade\nCREATE TABLE a (id INTEGER);\n")

		_, err := env.eng.Apply(ctx, engine.ApplyOptions{})
		require.NoError(t, err)

		_, err = env.eng.Rollback(ctx, engine.RollbackOptions{})
		var missing *engine.MissingRollbackError
		require.ErrorAs(t, err, &missing)
		require.Equal(t, "0001", missing.Version)
		require.Equal(t, "0001_a.sql", missing.Filename)
	})

	t.Run("missing file stops the run", func(t *testing.T) {
		env := setup(t)
		require.NoError(t, os.Remove(filepath.Join(env.dir, "0003_c.sql")))

		_, err := env.eng.Rollback(ctx, engine.RollbackOptions{})
		var missing *engine.MissingRollbackError
		require.ErrorAs(t, err, &missing)
		require.Equal(t, "0003", missing.Version)
		require.Empty(t, missing.Filename)
	})

	t.Run("empty ledger rolls back nothing", func(t *testing.T) {
		env := newEnv(t)

		result, err := env.eng.Rollback(ctx, engine.RollbackOptions{})
		require.NoError(t, err)
		require.Empty(t, result.RolledBack)
	})
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_create_users.sql", usersMigration)

	_, err := env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.True(t, env.tableExists(t, "users"))

	_, err = env.eng.Rollback(ctx, engine.RollbackOptions{})
	require.NoError(t, err)
	require.False(t, env.tableExists(t, "users"))

	// The version is pending again and re-applies cleanly.
	result, err := env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"0001"}, result.Versioned)
	require.True(t, env.tableExists(t, "users"))
}

func TestLockBlocksRuns(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_create_users.sql", usersMigration)

	require.NoError(t, env.eng.Store().EnsureSchema(ctx))
	require.NoError(t, env.eng.Store().AcquireLock(ctx))

	_, err := env.eng.Apply(ctx, engine.ApplyOptions{})
	require.ErrorIs(t, err, ledger.ErrLocked)

	_, err = env.eng.Rollback(ctx, engine.RollbackOptions{})
	require.ErrorIs(t, err, ledger.ErrLocked)

	// Nothing executed while locked.
	require.False(t, env.tableExists(t, "users"))

	require.NoError(t, env.eng.Store().ReleaseLock(ctx))
	_, err = env.eng.Apply(ctx, engine.ApplyOptions{})
	require.NoError(t, err)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	env.write(t, "0001_a.sql", "-- upgrade\nCREATE TABLE a (id INTEGER);\n")
	env.write(t, "0002_b.sql", "-- upgrade\nCREATE TABLE b (id INTEGER);\n")

	st, err := env.eng.Status(ctx)
	require.NoError(t, err)
	require.Empty(t, st.Applied)
	require.Nil(t, st.Latest)
	require.Equal(t, []string{"0001", "0002"}, st.Pending)
	require.False(t, st.Lock.Locked)

	_, err = env.eng.Apply(ctx, engine.ApplyOptions{Count: 1})
	require.NoError(t, err)

	st, err = env.eng.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.Applied, 1)
	require.NotNil(t, st.Latest)
	require.Equal(t, "0001", st.Latest.Version)
	require.Equal(t, []string{"0002"}, st.Pending)
}
