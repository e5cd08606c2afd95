package images

import (
	"context"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
)

type Repository interface {
	Insert(ctx context.Context, img *models.ImageRecord) error
	GetByID(ctx context.Context, id string) (*models.ImageRecord, error)
	ListByEvent(ctx context.Context, eventID string) ([]*models.ImageRecord, error)

	// ListSyncable returns PENDING images of CONFIRMED events, oldest first.
	ListSyncable(ctx context.Context, limit int) ([]*models.ImageRecord, error)

	RequeueDue(ctx context.Context, now time.Time) (int64, error)

	// Claim moves a PENDING image to UPLOADING and counts the attempt.
	Claim(ctx context.Context, id string, now time.Time) error
	Transition(ctx context.Context, id string, from, to models.SyncStatus, now time.Time) error
	Fail(ctx context.Context, id string, nextRetryAt time.Time, reason string, now time.Time) error
	RecoverUploading(ctx context.Context, staleBefore, now time.Time) (int64, error)

	// ListPurgeable returns CONFIRMED images captured before cutoff.
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.ImageRecord, error)
	DeleteIfPurgeable(ctx context.Context, id string, cutoff time.Time) error

	CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
	TotalBytes(ctx context.Context) (int64, error)
}
