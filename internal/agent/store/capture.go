package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/dbx"
)

// CreateCaptureEvent stores ev with its readings and images atomically and
// returns the event id. Missing ids are generated; every record starts
// PENDING. Nothing is visible to other callers until the commit.
func (s *Store) CreateCaptureEvent(ctx context.Context, ev *models.CaptureEvent, readings []*models.Reading, images []*models.ImageRecord) (string, error) {
	now := s.now().UTC()

	if ev.ID == "" {
		ev.ID = models.NewID()
	}
	if ev.DeviceID == "" {
		ev.DeviceID = s.deviceID
	}
	if ev.CapturedAt.IsZero() {
		ev.CapturedAt = now
	}
	ev.CreatedAt = now
	ev.SyncState = models.SyncState{Status: models.StatusPending, UpdatedAt: now}

	for _, r := range readings {
		if r.ID == "" {
			r.ID = models.NewID()
		}
		r.EventID = ev.ID
		if r.CapturedAt.IsZero() {
			r.CapturedAt = ev.CapturedAt
		}
	}
	for _, img := range images {
		if img.ID == "" {
			img.ID = models.NewID()
		}
		img.EventID = ev.ID
		if img.CapturedAt.IsZero() {
			img.CapturedAt = ev.CapturedAt
		}
		img.UploadAttempts = 0
		img.LastAttemptAt = time.Time{}
		img.SyncState = models.SyncState{Status: models.StatusPending, UpdatedAt: now}
	}

	id, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		if err := s.repos.Events(tx).Insert(ctx, ev); err != nil {
			return "", err
		}
		rr := s.repos.Readings(tx)
		for _, r := range readings {
			if err := rr.Insert(ctx, r); err != nil {
				return "", err
			}
		}
		ir := s.repos.Images(tx)
		for _, img := range images {
			if err := ir.Insert(ctx, img); err != nil {
				return "", err
			}
		}
		return ev.ID, nil
	})
	if err != nil {
		return "", storageErr("create capture event", err)
	}
	return id, nil
}

// GetEventDetail loads an event with its readings and images.
func (s *Store) GetEventDetail(ctx context.Context, id string) (*models.EventDetail, error) {
	d := &models.EventDetail{}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if d.Event, err = s.repos.Events(tx).GetByID(ctx, id); err != nil {
			return err
		}
		if d.Readings, err = s.repos.Readings(tx).ListByEvent(ctx, id); err != nil {
			return err
		}
		d.Images, err = s.repos.Images(tx).ListByEvent(ctx, id)
		return err
	})
	if err != nil {
		return nil, storageErr("get event detail", err)
	}
	return d, nil
}
