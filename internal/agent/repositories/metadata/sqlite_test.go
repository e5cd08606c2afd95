package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	require.NoError(t, err)
	return db
}

func TestMetadata_SetGetOverwrite(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	v, err := repo.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, repo.Set(ctx, KeyDeviceID, []byte("edge-1")))
	require.NoError(t, repo.Set(ctx, KeyDeviceID, []byte("edge-2")))

	v, err = repo.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []byte("edge-2"), v)
}

func TestMetadata_ListAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "a", []byte("1")))
	require.NoError(t, repo.Set(ctx, "b", []byte("2")))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, all)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.NoError(t, repo.Delete(ctx, "missing"))

	all, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
