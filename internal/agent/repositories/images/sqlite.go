package images

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

const selectColumns = `images.id, images.event_id, images.seq, images.file_path, images.checksum,
	images.size_bytes, images.width, images.height, images.format, images.captured_at,
	images.sync_status, images.upload_attempts, images.last_attempt_at, images.retry_count,
	images.next_retry_at, images.last_error, images.updated_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*models.ImageRecord, error) {
	var (
		img                   models.ImageRecord
		status                string
		capturedAt, updatedAt int64
		lastAttempt, nextTry  sql.NullInt64
	)
	err := s.Scan(&img.ID, &img.EventID, &img.Seq, &img.FilePath, &img.Checksum,
		&img.SizeBytes, &img.Width, &img.Height, &img.Format, &capturedAt,
		&status, &img.UploadAttempts, &lastAttempt, &img.RetryCount,
		&nextTry, &img.LastError, &updatedAt)
	if err != nil {
		return nil, err
	}
	img.Status = models.SyncStatus(status)
	img.CapturedAt = dbx.FromNanos(capturedAt)
	img.UpdatedAt = dbx.FromNanos(updatedAt)
	img.LastAttemptAt = dbx.FromNullNanos(lastAttempt)
	img.NextRetryAt = dbx.FromNullNanos(nextTry)
	return &img, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, img *models.ImageRecord) error {
	query := `INSERT INTO images (id, event_id, seq, file_path, checksum, size_bytes, width, height, format,
			captured_at, sync_status, upload_attempts, last_attempt_at, retry_count, next_retry_at, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, img.ID, img.EventID, img.Seq, img.FilePath, img.Checksum,
		img.SizeBytes, img.Width, img.Height, img.Format, dbx.Nanos(img.CapturedAt),
		string(img.Status), img.UploadAttempts, dbx.NullNanos(img.LastAttemptAt), img.RetryCount,
		dbx.NullNanos(img.NextRetryAt), img.LastError, dbx.Nanos(img.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert image %s: %w", img.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.ImageRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM images WHERE images.id = ?`, id)

	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image %s: %w", id, err)
	}
	return img, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.ImageRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting images: %w", err)
	}
	defer rows.Close()

	var result []*models.ImageRecord
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		result = append(result, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate image rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.ImageRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM images WHERE images.event_id = ? ORDER BY images.seq`
	return r.list(ctx, query, eventID)
}

func (r *SQLiteRepository) ListSyncable(ctx context.Context, limit int) ([]*models.ImageRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM images
		JOIN capture_events ON capture_events.id = images.event_id
		WHERE images.sync_status = 'PENDING' AND capture_events.sync_status = 'CONFIRMED'
		ORDER BY images.captured_at, images.event_id, images.seq
		LIMIT ?`
	return r.list(ctx, query, limit)
}

func (r *SQLiteRepository) RequeueDue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE images SET sync_status = 'PENDING', updated_at = ?
		WHERE sync_status = 'FAILED' AND (next_retry_at IS NULL OR next_retry_at <= ?)`

	res, err := r.db.ExecContext(ctx, query, dbx.Nanos(now), dbx.Nanos(now))
	if err != nil {
		return 0, fmt.Errorf("failed to requeue images: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Claim(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE images
		SET sync_status = 'UPLOADING', upload_attempts = upload_attempts + 1, last_attempt_at = ?, updated_at = ?
		WHERE id = ? AND sync_status = 'PENDING'`

	err := dbx.ExpectOneRow(r.db.ExecContext(ctx, query, dbx.Nanos(now), dbx.Nanos(now), id))
	if err != nil {
		return fmt.Errorf("image %s PENDING -> UPLOADING: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Transition(ctx context.Context, id string, from, to models.SyncStatus, now time.Time) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}

	query := `UPDATE images SET sync_status = ?, updated_at = ? WHERE id = ? AND sync_status = ?`
	err := dbx.ExpectOneRow(r.db.ExecContext(ctx, query, string(to), dbx.Nanos(now), id, string(from)))
	if err != nil {
		return fmt.Errorf("image %s %s -> %s: %w", id, from, to, err)
	}
	return nil
}

func (r *SQLiteRepository) Fail(ctx context.Context, id string, nextRetryAt time.Time, reason string, now time.Time) error {
	query := `UPDATE images
		SET sync_status = 'FAILED', retry_count = retry_count + 1, next_retry_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND sync_status = 'UPLOADING'`

	err := dbx.ExpectOneRow(r.db.ExecContext(ctx, query, dbx.Nanos(nextRetryAt), reason, dbx.Nanos(now), id))
	if err != nil {
		return fmt.Errorf("image %s UPLOADING -> FAILED: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) RecoverUploading(ctx context.Context, staleBefore, now time.Time) (int64, error) {
	query := `UPDATE images
		SET sync_status = 'FAILED', retry_count = retry_count + 1, next_retry_at = ?,
			last_error = 'upload interrupted', updated_at = ?
		WHERE sync_status = 'UPLOADING' AND updated_at <= ?`

	res, err := r.db.ExecContext(ctx, query, dbx.Nanos(now), dbx.Nanos(now), dbx.Nanos(staleBefore))
	if err != nil {
		return 0, fmt.Errorf("failed to recover images: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.ImageRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM images
		WHERE images.sync_status = 'CONFIRMED' AND images.captured_at < ?
		ORDER BY images.captured_at, images.event_id, images.seq
		LIMIT ?`
	return r.list(ctx, query, dbx.Nanos(cutoff), limit)
}

func (r *SQLiteRepository) DeleteIfPurgeable(ctx context.Context, id string, cutoff time.Time) error {
	query := `DELETE FROM images WHERE id = ? AND sync_status = 'CONFIRMED' AND captured_at < ?`

	err := dbx.ExpectOneRow(r.db.ExecContext(ctx, query, id, dbx.Nanos(cutoff)))
	if err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM images GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
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

func (r *SQLiteRepository) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM images`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum image sizes: %w", err)
	}
	return total, nil
}
