package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
)

// ListPurgeable returns CONFIRMED images captured before cutoff, oldest first.
func (s *Store) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.ImageRecord, error) {
	out, err := s.repos.Images(s.db).ListPurgeable(ctx, cutoff, limit)
	if err != nil {
		return nil, storageErr("list purgeable images", err)
	}
	return out, nil
}

// ListPurgeableEvents returns CONFIRMED events captured before cutoff that
// have no images left, e.g. sensor-only captures.
func (s *Store) ListPurgeableEvents(ctx context.Context, cutoff time.Time, limit int) ([]*models.CaptureEvent, error) {
	out, err := s.repos.Events(s.db).ListPurgeable(ctx, cutoff, limit)
	if err != nil {
		return nil, storageErr("list purgeable events", err)
	}
	return out, nil
}

// PurgeImage deletes the image row if, at the moment of deletion, it is
// still CONFIRMED and captured before cutoff. When that leaves its event
// CONFIRMED, expired and image-less, the event (and its readings) goes too.
// ErrNotPurgeable is returned when the guard does not hold.
func (s *Store) PurgeImage(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	eventRemoved, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		ir := s.repos.Images(tx)

		img, err := ir.GetByID(ctx, id)
		if err != nil {
			return false, err
		}

		if err := ir.DeleteIfPurgeable(ctx, id, cutoff); err != nil {
			if errors.Is(err, dbx.ErrNoRowsAffected) {
				return false, fmt.Errorf("image %s is %s captured %s: %w",
					id, img.Status, img.CapturedAt.Format(time.RFC3339), common.ErrNotPurgeable)
			}
			return false, err
		}

		err = s.repos.Events(tx).DeleteIfPurgeable(ctx, img.EventID, cutoff)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, dbx.ErrNoRowsAffected):
			return false, nil
		default:
			return false, err
		}
	})

	switch {
	case err == nil:
		return eventRemoved, nil
	case errors.Is(err, common.ErrNotPurgeable), errors.Is(err, common.ErrNotFound):
		return false, err
	default:
		return false, storageErr("purge image", err)
	}
}

// PurgeEvent deletes an image-less event under the same guard as PurgeImage.
func (s *Store) PurgeEvent(ctx context.Context, id string, cutoff time.Time) error {
	err := s.repos.Events(s.db).DeleteIfPurgeable(ctx, id, cutoff)
	if errors.Is(err, dbx.ErrNoRowsAffected) {
		return fmt.Errorf("event %s: %w", id, common.ErrNotPurgeable)
	}
	if err != nil {
		return storageErr("purge event", err)
	}
	return nil
}

// Stats counts records per status and the bytes referenced on disk.
func (s *Store) Stats(ctx context.Context) (models.QueueStats, error) {
	var q models.QueueStats

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if q.Events, err = s.repos.Events(tx).CountByStatus(ctx); err != nil {
			return err
		}
		if q.Images, err = s.repos.Images(tx).CountByStatus(ctx); err != nil {
			return err
		}
		q.BytesOnDisk, err = s.repos.Images(tx).TotalBytes(ctx)
		return err
	})
	if err != nil {
		return models.QueueStats{}, storageErr("stats", err)
	}
	return q, nil
}
