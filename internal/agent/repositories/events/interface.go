package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
)

// Repository describes the operations the store needs on capture_events.
type Repository interface {
	Insert(ctx context.Context, e *models.CaptureEvent) error
	GetByID(ctx context.Context, id string) (*models.CaptureEvent, error)

	// ListByStatus returns up to limit events, oldest capture first.
	ListByStatus(ctx context.Context, status models.SyncStatus, limit int) ([]*models.CaptureEvent, error)

	// RequeueDue moves FAILED events whose retry time has come back to PENDING.
	RequeueDue(ctx context.Context, now time.Time) (int64, error)

	// Transition moves one event from -> to, guarded by the current status.
	Transition(ctx context.Context, id string, from, to models.SyncStatus, now time.Time) error

	// Fail moves an UPLOADING event to FAILED, increments retry_count and
	// schedules the next attempt.
	Fail(ctx context.Context, id string, nextRetryAt time.Time, reason string, now time.Time) error

	// RecoverUploading fails every event left UPLOADING since before
	// staleBefore, due immediately.
	RecoverUploading(ctx context.Context, staleBefore, now time.Time) (int64, error)

	// ListPurgeable returns CONFIRMED events captured before cutoff that no
	// longer own any image.
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.CaptureEvent, error)

	// DeleteIfPurgeable deletes the event (readings cascade) only if it is
	// still CONFIRMED, older than cutoff and image-less.
	DeleteIfPurgeable(ctx context.Context, id string, cutoff time.Time) error

	CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
}
