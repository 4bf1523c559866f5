package ledger_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/stratadb/strata/pkg/ledger"
	"github.com/stratadb/strata/pkg/migration"
)

func newStore(t *testing.T) *ledger.Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := ledger.New(db, ledger.SQLiteDialect{})
	require.NoError(t, store.EnsureSchema(context.Background()))

	return store
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestRecordUpgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		store := newStore(t)

		err := store.RecordUpgrade(ctx, ledger.Record{
			Version:     "0001",
			Description: "init",
			Filename:    "0001_init.sql",
			Kind:        migration.KindVersioned,
			Checksum:    "h1:abc=",
		})
		require.NoError(t, err)

		records, err := store.ListApplied(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "0001", records[0].Version)
		require.Equal(t, "init", records[0].Description)
		require.Equal(t, "0001_init.sql", records[0].Filename)
		require.Equal(t, migration.KindVersioned, records[0].Kind)
		require.Equal(t, "h1:abc=", records[0].Checksum)
		require.False(t, records[0].AppliedAt.IsZero())
	})

	t.Run("duplicate version is rejected", func(t *testing.T) {
		store := newStore(t)

		r := ledger.Record{Version: "0001", Filename: "0001_init.sql", Kind: migration.KindVersioned}
		require.NoError(t, store.RecordUpgrade(ctx, r))

		err := store.RecordUpgrade(ctx, r)
		require.ErrorIs(t, err, migration.ErrDuplicateVersion)
	})

	t.Run("repeatable rows carry null versions without conflict", func(t *testing.T) {
		store := newStore(t)

		for _, filename := range []string{"RA__a.sql", "RA__b.sql"} {
			err := store.RecordUpgrade(ctx, ledger.Record{
				Filename: filename,
				Kind:     migration.KindRunsAlways,
			})
			require.NoError(t, err)
		}

		// Repeatable rows are not versioned entries.
		records, err := store.ListApplied(ctx)
		require.NoError(t, err)
		require.Empty(t, records)
	})
}

func TestRecordRollback(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.RecordUpgrade(ctx, ledger.Record{
		Version: "0001", Filename: "0001_a.sql", Kind: migration.KindVersioned,
	}))

	require.NoError(t, store.RecordRollback(ctx, "0001"))

	records, err := store.ListApplied(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	// Deleting an absent version is a no-op.
	require.NoError(t, store.RecordRollback(ctx, "0042"))
}

func TestUpsertRepeatable(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	r := ledger.Record{
		Description: "views",
		Filename:    "ROC__views.sql",
		Kind:        migration.KindRunsOnChange,
		Checksum:    "h1:first=",
	}
	require.NoError(t, store.UpsertRepeatable(ctx, r))

	checksums, err := store.RepeatableChecksums(ctx, migration.KindRunsOnChange)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ROC__views.sql": "h1:first="}, checksums)

	r.Checksum = "h1:second="
	require.NoError(t, store.UpsertRepeatable(ctx, r))

	checksums, err = store.RepeatableChecksums(ctx, migration.KindRunsOnChange)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ROC__views.sql": "h1:second="}, checksums)
}

func TestVersionQueries(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, v := range []string{"0001", "0002", "0003"} {
		require.NoError(t, store.RecordUpgrade(ctx, ledger.Record{
			Version:   v,
			Filename:  v + "_m.sql",
			Kind:      migration.KindVersioned,
			AppliedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("applied versions are oldest first", func(t *testing.T) {
		versions, err := store.AppliedVersions(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"0001", "0002", "0003"}, versions)
	})

	t.Run("latest applied", func(t *testing.T) {
		latest, err := store.LatestApplied(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		require.Equal(t, "0003", latest.Version)
	})

	t.Run("latest versions are newest first", func(t *testing.T) {
		versions, err := store.LatestVersions(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"0003", "0002"}, versions)
	})

	t.Run("versions after cutoff is exclusive", func(t *testing.T) {
		versions, err := store.VersionsAfter(ctx, "0001")
		require.NoError(t, err)
		require.Equal(t, []string{"0003", "0002"}, versions)

		versions, err = store.VersionsAfter(ctx, "0003")
		require.NoError(t, err)
		require.Empty(t, versions)
	})
}

func TestLatestAppliedEmpty(t *testing.T) {
	store := newStore(t)

	latest, err := store.LatestApplied(context.Background())
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestLock(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.AcquireLock(ctx))

		state, err := store.LockStatus(ctx)
		require.NoError(t, err)
		require.True(t, state.Locked)
		require.NotNil(t, state.AcquiredAt)

		require.NoError(t, store.ReleaseLock(ctx))

		state, err = store.LockStatus(ctx)
		require.NoError(t, err)
		require.False(t, state.Locked)
		require.Nil(t, state.AcquiredAt)
	})

	t.Run("second acquire fails fast", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.AcquireLock(ctx))
		require.ErrorIs(t, store.AcquireLock(ctx), ledger.ErrLocked)

		// Releasable again after the stale holder clears it.
		require.NoError(t, store.ReleaseLock(ctx))
		require.NoError(t, store.AcquireLock(ctx))
	})
}
