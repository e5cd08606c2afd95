package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/filex"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"
)

type RetentionStore interface {
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.ImageRecord, error)
	PurgeImage(ctx context.Context, id string, cutoff time.Time) (eventRemoved bool, err error)
	ListPurgeableEvents(ctx context.Context, cutoff time.Time, limit int) ([]*models.CaptureEvent, error)
	PurgeEvent(ctx context.Context, id string, cutoff time.Time) error
}

type RetentionOptions struct {
	Retention time.Duration
	BatchSize int
}

// RetentionService frees disk space taken by data the server has confirmed
// and that is older than the retention window. Anything not CONFIRMED is
// never touched, whatever its age.
type RetentionService struct {
	store  RetentionStore
	opts   RetentionOptions
	logger logging.Logger
	now    func() time.Time
	remove func(path string) (bool, error)
}

func NewRetentionService(store RetentionStore, opts RetentionOptions, logger logging.Logger) *RetentionService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &RetentionService{
		store:  store,
		opts:   opts,
		logger: logger.With("module", "retention"),
		now:    time.Now,
		remove: filex.RemoveIfExists,
	}
}

func (s *RetentionService) Name() string { return "retention" }

// purgeable re-checks what the store already filtered on.
func purgeable(st models.SyncStatus, capturedAt, cutoff time.Time) bool {
	return st == models.StatusConfirmed && capturedAt.Before(cutoff)
}

// Tick purges in batches until nothing eligible is left or a batch makes
// no progress.
func (s *RetentionService) Tick(ctx context.Context) Outcome {
	cutoff := s.now().Add(-s.opts.Retention)

	var (
		out   Outcome
		freed int64
		errs  []error
	)

	for {
		images, err := s.store.ListPurgeable(ctx, cutoff, s.opts.BatchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("list purgeable images: %w", err))
			break
		}

		progress := 0
		for _, img := range images {
			if s.purgeImage(ctx, img, cutoff) {
				progress++
				freed += img.SizeBytes
			} else {
				out.Failed++
			}
		}
		out.Processed += progress

		if len(images) < s.opts.BatchSize || progress == 0 {
			break
		}
	}

	for {
		events, err := s.store.ListPurgeableEvents(ctx, cutoff, s.opts.BatchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("list purgeable events: %w", err))
			break
		}

		progress := 0
		for _, ev := range events {
			if !purgeable(ev.Status, ev.CapturedAt, cutoff) {
				s.logger.Error(ctx, "refusing to purge event", "event_id", ev.ID, "status", ev.Status)
				out.Failed++
				continue
			}
			if err := s.store.PurgeEvent(ctx, ev.ID, cutoff); err != nil {
				s.logger.Error(ctx, "purge event failed", "event_id", ev.ID, "error", err)
				out.Failed++
				continue
			}
			progress++
		}
		out.Processed += progress

		if len(events) < s.opts.BatchSize || progress == 0 {
			break
		}
	}

	if out.Processed > 0 || out.Failed > 0 {
		s.logger.Info(ctx, "retention pass finished",
			"cutoff", cutoff.UTC().Format(time.RFC3339),
			"purged", out.Processed,
			"failed", out.Failed,
			"freed", humanize.Bytes(uint64(freed)),
		)
	}
	out.Err = errors.Join(errs...)
	return out
}

// purgeImage deletes the file first and the row second, so an interruption
// leaves a row that the next pass finds again rather than an untracked file.
func (s *RetentionService) purgeImage(ctx context.Context, img *models.ImageRecord, cutoff time.Time) bool {
	if !purgeable(img.Status, img.CapturedAt, cutoff) {
		s.logger.Error(ctx, "refusing to purge image", "image_id", img.ID, "status", img.Status,
			"captured_at", img.CapturedAt.UTC().Format(time.RFC3339))
		return false
	}

	if _, err := s.remove(img.FilePath); err != nil {
		s.logger.Error(ctx, "remove image file failed", "image_id", img.ID, "path", img.FilePath, "error", err)
		return false
	}

	eventRemoved, err := s.store.PurgeImage(ctx, img.ID, cutoff)
	if err != nil {
		s.logger.Error(ctx, "purge image row failed", "image_id", img.ID, "error", err)
		return false
	}

	s.logger.Debug(ctx, "image purged", "image_id", img.ID, "event_id", img.EventID, "event_removed", eventRemoved)
	return true
}
