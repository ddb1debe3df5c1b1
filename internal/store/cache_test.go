package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	ctx := context.Background()
	st, err := Open(filepath.Join(t.TempDir(), "cache", "derive.db"))
	require.NoError(t, err)
	defer st.Close()

	_, ok, err := st.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := Entry{
		Key:             "k1",
		Family:          "psi",
		NumModes:        3,
		DissipationFree: true,
		Expressions:     []string{"-sigma*psi_1_1 + theta_1_1"},
	}
	require.NoError(t, st.Put(ctx, entry))

	got, ok, err := st.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "psi", got.Family)
	assert.Equal(t, 3, got.NumModes)
	assert.True(t, got.DissipationFree)
	assert.Equal(t, entry.Expressions, got.Expressions)

	n, err := st.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_PutReplaces(t *testing.T) {
	ctx := context.Background()
	st, err := Open(MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Put(ctx, Entry{Key: "k", Family: "theta", Expressions: []string{"a"}}))
	require.NoError(t, st.Put(ctx, Entry{Key: "k", Family: "theta", Expressions: []string{"b", "c"}}))

	got, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, got.Expressions)
}

func TestCache_Purge(t *testing.T) {
	ctx := context.Background()
	st, err := Open(MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, st.Put(ctx, Entry{Key: "old", Family: "psi", Expressions: []string{"x"}, CreatedAt: old}))
	require.NoError(t, st.Put(ctx, Entry{Key: "new", Family: "psi", Expressions: []string{"y"}}))

	removed, err := st.Purge(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok, err := st.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = st.Get(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_MigratesToCurrentVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgen.db")
	st, err := Open(path)
	require.NoError(t, err)

	v, err := SchemaVersion(st.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
	assert.True(t, tableExists(st.db, "derivations"))
	assert.True(t, tableExists(st.db, "runs"))
	require.NoError(t, st.Close())

	// Reopening an up-to-date database is a no-op.
	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()
	v, err = SchemaVersion(st.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestOpen_UpgradesV1Database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgen.db")
	st, err := Open(path)
	require.NoError(t, err)
	_, err = st.db.Exec("DROP TABLE runs")
	require.NoError(t, err)
	_, err = st.db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), Entry{Key: "kept", Family: "psi", Expressions: []string{"x"}}))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()
	assert.True(t, tableExists(st.db, "runs"))
	_, ok, err := st.Get(context.Background(), "kept")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgen.db")
	st, err := Open(path)
	require.NoError(t, err)
	_, err = st.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	return err == nil
}
