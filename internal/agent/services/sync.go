package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"
	"github.com/dmitrijs2005/edgekeeper/internal/netx"
)

type SyncStore interface {
	ListPendingEvents(ctx context.Context, limit int) ([]*models.CaptureEvent, error)
	ListPendingImages(ctx context.Context, limit int) ([]*models.ImageRecord, error)
	GetEventDetail(ctx context.Context, id string) (*models.EventDetail, error)
	MarkUploading(ctx context.Context, kind models.RecordKind, id string) error
	MarkConfirmed(ctx context.Context, kind models.RecordKind, id string) error
	MarkFailed(ctx context.Context, kind models.RecordKind, id string, reason string) (time.Time, error)
	Stats(ctx context.Context) (models.QueueStats, error)
}

type MetadataUploader interface {
	UploadMetadata(ctx context.Context, p models.MetadataPayload) error
}

type ImageUploader interface {
	UploadImage(ctx context.Context, img *models.ImageRecord) error
}

type SyncOptions struct {
	BatchSize      int
	RequestTimeout time.Duration
	// UploadRate limits image uploads per second; 0 means unlimited.
	UploadRate float64
}

type recordResult int

const (
	resultConfirmed recordResult = iota
	resultFailed
	resultSkipped
)

// SyncService reconciles the local queue with the server. Each tick first
// pushes event metadata, then the images of events the server already knows.
type SyncService struct {
	store   SyncStore
	meta    MetadataUploader
	images  ImageUploader
	limiter *rate.Limiter
	opts    SyncOptions
	stats   *Stats
	logger  logging.Logger
	now     func() time.Time
}

func NewSyncService(store SyncStore, meta MetadataUploader, images ImageUploader, opts SyncOptions, stats *Stats, logger logging.Logger) *SyncService {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	s := &SyncService{
		store:  store,
		meta:   meta,
		images: images,
		opts:   opts,
		stats:  stats,
		logger: logger.With("module", "sync"),
		now:    time.Now,
	}
	if opts.UploadRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.UploadRate), 1)
	}
	return s
}

func (s *SyncService) Name() string { return "sync" }

// Tick processes up to BatchSize events and then up to BatchSize images,
// oldest first. A failing record is marked FAILED and the batch goes on.
func (s *SyncService) Tick(ctx context.Context) Outcome {
	var (
		out  Outcome
		errs []error
	)

	count := func(r recordResult) {
		switch r {
		case resultConfirmed:
			out.Processed++
		case resultFailed:
			out.Failed++
		}
	}

	events, err := s.store.ListPendingEvents(ctx, s.opts.BatchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("list pending events: %w", err))
	}
	for _, ev := range events {
		count(s.syncEvent(ctx, ev))
	}

	images, err := s.store.ListPendingImages(ctx, s.opts.BatchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("list pending images: %w", err))
	}
	for _, img := range images {
		count(s.syncImage(ctx, img))
	}

	s.stats.RecordSync(s.now().UTC(), out.Failed)
	if q, err := s.store.Stats(ctx); err == nil {
		s.stats.RecordQueue(q)
	} else {
		s.logger.Warn(ctx, "queue stats unavailable", "error", err)
	}

	if out.Processed > 0 || out.Failed > 0 {
		s.logger.Info(ctx, "sync pass finished", "confirmed", out.Processed, "failed", out.Failed)
	}
	out.Err = errors.Join(errs...)
	return out
}

func (s *SyncService) syncEvent(ctx context.Context, ev *models.CaptureEvent) recordResult {
	if r, ok := s.claim(ctx, models.KindEvent, ev.ID); !ok {
		return r
	}

	detail, err := s.store.GetEventDetail(ctx, ev.ID)
	if err != nil {
		return s.fail(ctx, models.KindEvent, ev.ID, ev.RetryCount, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	err = s.meta.UploadMetadata(callCtx, models.NewMetadataPayload(detail))
	cancel()
	if err != nil {
		return s.fail(ctx, models.KindEvent, ev.ID, ev.RetryCount, err)
	}

	return s.confirm(ctx, models.KindEvent, ev.ID)
}

func (s *SyncService) syncImage(ctx context.Context, img *models.ImageRecord) recordResult {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Warn(ctx, "upload throttle", "image_id", img.ID, "error", err)
			return resultSkipped
		}
	}

	if r, ok := s.claim(ctx, models.KindImage, img.ID); !ok {
		return r
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	err := s.images.UploadImage(callCtx, img)
	cancel()
	if err != nil {
		return s.fail(ctx, models.KindImage, img.ID, img.RetryCount, err)
	}

	return s.confirm(ctx, models.KindImage, img.ID)
}

// claim moves the record to UPLOADING. Losing the race to another caller is
// not a failure.
func (s *SyncService) claim(ctx context.Context, kind models.RecordKind, id string) (recordResult, bool) {
	err := s.store.MarkUploading(ctx, kind, id)
	switch {
	case err == nil:
		return resultConfirmed, true
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrNotFound):
		s.logger.Debug(ctx, "record no longer pending", "kind", kind, "id", id, "error", err)
		return resultSkipped, false
	default:
		s.logger.Error(ctx, "could not claim record", "kind", kind, "id", id, "error", err)
		return resultFailed, false
	}
}

func (s *SyncService) confirm(ctx context.Context, kind models.RecordKind, id string) recordResult {
	if err := s.store.MarkConfirmed(ctx, kind, id); err != nil {
		// Stays UPLOADING until the store requeues it as stale; the server
		// side is idempotent so the resend is harmless.
		s.logger.Error(ctx, "could not record confirmation", "kind", kind, "id", id, "error", err)
		return resultFailed
	}
	return resultConfirmed
}

func (s *SyncService) fail(ctx context.Context, kind models.RecordKind, id string, retries int, cause error) recordResult {
	attempt := retries + 1

	next, err := s.store.MarkFailed(ctx, kind, id, cause.Error())
	if err != nil {
		s.logger.Error(ctx, "could not record failure", "kind", kind, "id", id, "attempt", attempt, "cause", cause, "error", err)
		return resultFailed
	}

	args := []any{"kind", kind, "id", id, "attempt", attempt, "next_retry_at", next, "error", cause}
	switch {
	case errors.Is(cause, common.ErrIntegrity):
		s.logger.Error(ctx, "image does not match its checksum, local file may be corrupt", args...)
	case errors.Is(cause, common.ErrStillProcessing):
		s.logger.Info(ctx, "server still processing", args...)
	case netx.IsTimeout(cause):
		s.logger.Warn(ctx, "upload timed out", args...)
	default:
		s.logger.Warn(ctx, "upload failed", args...)
	}
	return resultFailed
}
