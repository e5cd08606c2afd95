package repomanager

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/edgekeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "edge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrations_CreatesSchema(t *testing.T) {
	db := openDB(t)
	m := NewSQLiteRepositoryManager(nil)

	require.NoError(t, m.RunMigrations(context.Background(), db))

	for _, table := range []string{"goose_db_version", "metadata", "capture_events", "readings", "images"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	db := openDB(t)
	m := NewSQLiteRepositoryManager(nil)

	require.NoError(t, m.RunMigrations(context.Background(), db))
	require.NoError(t, m.RunMigrations(context.Background(), db))
}

func TestRunMigrations_StatusCheckConstraint(t *testing.T) {
	db := openDB(t)
	require.NoError(t, NewSQLiteRepositoryManager(nil).RunMigrations(context.Background(), db))

	_, err := db.Exec(`INSERT INTO capture_events (id, device_id, captured_at, sync_status, created_at, updated_at)
		VALUES ('ev', 'edge', 1, 'DONE', 1, 1)`)
	require.Error(t, err)
}

func TestManager_VendsRepositories(t *testing.T) {
	db := openDB(t)
	m := NewSQLiteRepositoryManager(nil)

	var _ RepositoryManager = m
	assert.NotNil(t, m.Events(db))
	assert.NotNil(t, m.Readings(db))
	assert.NotNil(t, m.Images(db))
	assert.NotNil(t, m.Metadata(db))
}

func TestRunMigrations_LogsThroughLogger(t *testing.T) {
	db := openDB(t)
	var buf bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, NewSQLiteRepositoryManager(logger).RunMigrations(context.Background(), db))

	out := buf.String()
	assert.Contains(t, out, `"module":"migrations"`)
	assert.Contains(t, out, "00001_init.sql")
}
