// Package events persists CaptureEvent rows and their sync state.
//
// # Overview
//
// Status changes are compare-and-set updates: every UPDATE is guarded by the
// expected current status and must touch exactly one row, otherwise
// dbx.ErrNoRowsAffected is returned and the caller decides what it means.
//
// Key Types
//
//   - type Repository      : contract used by the store
//   - type SQLiteRepository: SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := events.NewSQLiteRepository(tx)
//	_ = repo.Insert(ctx, ev)
//	_ = repo.Transition(ctx, ev.ID, models.StatusPending, models.StatusUploading, now)
package events
