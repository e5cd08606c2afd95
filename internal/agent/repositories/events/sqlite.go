package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
)

const selectColumns = `id, device_id, crate_id, camera_name, captured_at, sync_status,
	retry_count, next_retry_at, last_error, created_at, updated_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*models.CaptureEvent, error) {
	var (
		e                               models.CaptureEvent
		status                          string
		capturedAt, createdAt, updateAt int64
		nextRetry                       sql.NullInt64
	)
	err := s.Scan(&e.ID, &e.DeviceID, &e.CrateID, &e.CameraName, &capturedAt, &status,
		&e.RetryCount, &nextRetry, &e.LastError, &createdAt, &updateAt)
	if err != nil {
		return nil, err
	}
	e.Status = models.SyncStatus(status)
	e.CapturedAt = dbx.FromNanos(capturedAt)
	e.CreatedAt = dbx.FromNanos(createdAt)
	e.UpdatedAt = dbx.FromNanos(updateAt)
	e.NextRetryAt = dbx.FromNullNanos(nextRetry)
	return &e, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, e *models.CaptureEvent) error {
	query := `INSERT INTO capture_events (id, device_id, crate_id, camera_name, captured_at, sync_status,
			retry_count, next_retry_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, e.ID, e.DeviceID, e.CrateID, e.CameraName, dbx.Nanos(e.CapturedAt),
		string(e.Status), e.RetryCount, dbx.NullNanos(e.NextRetryAt), e.LastError,
		dbx.Nanos(e.CreatedAt), dbx.Nanos(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.CaptureEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM capture_events WHERE id = ?`, id)

	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.CaptureEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting events: %w", err)
	}
	defer rows.Close()

	var result []*models.CaptureEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, status models.SyncStatus, limit int) ([]*models.CaptureEvent, error) {
	query := `SELECT ` + selectColumns + ` FROM capture_events
		WHERE sync_status = ?
		ORDER BY captured_at, id
		LIMIT ?`
	return r.list(ctx, query, string(status), limit)
}

func (r *SQLiteRepository) RequeueDue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE capture_events SET sync_status = 'PENDING', updated_at = ?
		WHERE sync_status = 'FAILED' AND (next_retry_at IS NULL OR next_retry_at <= ?)`

	res, err := r.db.ExecContext(ctx, query, dbx.Nanos(now), dbx.Nanos(now))
	if err != nil {
		return 0, fmt.Errorf("failed to requeue events: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Transition(ctx context.Context, id string, from, to models.SyncStatus, now time.Time) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}

	query := `UPDATE capture_events SET sync_status = ?, updated_at = ? WHERE id = ? AND sync_status = ?`
	err := dbx.ExpectOneRow(r.db.ExecContext(ctx, query, string(to), dbx.Nanos(now), id, string(from)))
	if err != nil {
		return fmt.Errorf("event %s %s -> %s: %w", id, from, to, err)
	}
	return nil
}

func (r *SQLiteRepository) Fail(ctx context.Context, id string, nextRetryAt time.Time, reason string, now time.Time) error {
	query := `UPDATE capture_events
		SET sync_status = 'FAILED', retry_count = retry_count + 1, next_retry_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND sync_status = 'UPLOADING'`

	err := dbx.ExpectOneRow(r.db.ExecContext(ctx, query, dbx.Nanos(nextRetryAt), reason, dbx.Nanos(now), id))
	if err != nil {
		return fmt.Errorf("event %s UPLOADING -> FAILED: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) RecoverUploading(ctx context.Context, staleBefore, now time.Time) (int64, error) {
	query := `UPDATE capture_events
		SET sync_status = 'FAILED', retry_count = retry_count + 1, next_retry_at = ?,
			last_error = 'upload interrupted', updated_at = ?
		WHERE sync_status = 'UPLOADING' AND updated_at <= ?`

	res, err := r.db.ExecContext(ctx, query, dbx.Nanos(now), dbx.Nanos(now), dbx.Nanos(staleBefore))
	if err != nil {
		return 0, fmt.Errorf("failed to recover events: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.CaptureEvent, error) {
	query := `SELECT ` + selectColumns + ` FROM capture_events
		WHERE sync_status = 'CONFIRMED' AND captured_at < ?
			AND NOT EXISTS (SELECT 1 FROM images WHERE images.event_id = capture_events.id)
		ORDER BY captured_at, id
		LIMIT ?`
	return r.list(ctx, query, dbx.Nanos(cutoff), limit)
}

func (r *SQLiteRepository) DeleteIfPurgeable(ctx context.Context, id string, cutoff time.Time) error {
	query := `DELETE FROM capture_events
		WHERE id = ? AND sync_status = 'CONFIRMED' AND captured_at < ?
			AND NOT EXISTS (SELECT 1 FROM images WHERE images.event_id = capture_events.id)`

	err := dbx.ExpectOneRow(r.db.ExecContext(ctx, query, id, dbx.Nanos(cutoff)))
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM capture_events GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	result := make(map[models.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		result[models.SyncStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate count rows: %w", err)
	}
	return result, nil
}
