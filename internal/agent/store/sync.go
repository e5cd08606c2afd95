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

// ListPendingEvents first fails events stuck in UPLOADING for longer than
// StaleAfter, returns FAILED events whose backoff has elapsed to PENDING,
// then lists up to limit PENDING events, oldest first.
func (s *Store) ListPendingEvents(ctx context.Context, limit int) ([]*models.CaptureEvent, error) {
	now := s.now()
	var (
		out   []*models.CaptureEvent
		stale int64
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Events(tx)
		var err error
		if stale, err = repo.RecoverUploading(ctx, now.Add(-s.staleAfter), now); err != nil {
			return err
		}
		if _, err := repo.RequeueDue(ctx, now); err != nil {
			return err
		}
		out, err = repo.ListByStatus(ctx, models.StatusPending, limit)
		return err
	})
	if err != nil {
		return nil, storageErr("list pending events", err)
	}
	if stale > 0 {
		s.logger.Warn(ctx, "requeued stale uploads", "kind", models.KindEvent, "count", stale)
	}
	return out, nil
}

// ListPendingImages is ListPendingEvents for images. Only images whose
// parent event is already CONFIRMED are returned.
func (s *Store) ListPendingImages(ctx context.Context, limit int) ([]*models.ImageRecord, error) {
	now := s.now()
	var (
		out   []*models.ImageRecord
		stale int64
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Images(tx)
		var err error
		if stale, err = repo.RecoverUploading(ctx, now.Add(-s.staleAfter), now); err != nil {
			return err
		}
		if _, err := repo.RequeueDue(ctx, now); err != nil {
			return err
		}
		out, err = repo.ListSyncable(ctx, limit)
		return err
	})
	if err != nil {
		return nil, storageErr("list pending images", err)
	}
	if stale > 0 {
		s.logger.Warn(ctx, "requeued stale uploads", "kind", models.KindImage, "count", stale)
	}
	return out, nil
}

// MarkUploading claims a PENDING record for upload.
func (s *Store) MarkUploading(ctx context.Context, kind models.RecordKind, id string) error {
	now := s.now()

	return s.transition(ctx, kind, id, models.StatusPending, models.StatusUploading, func(tx dbx.DBTX) error {
		if kind == models.KindImage {
			return s.repos.Images(tx).Claim(ctx, id, now)
		}
		return s.repos.Events(tx).Transition(ctx, id, models.StatusPending, models.StatusUploading, now)
	})
}

// MarkConfirmed records that the server acknowledged an UPLOADING record.
func (s *Store) MarkConfirmed(ctx context.Context, kind models.RecordKind, id string) error {
	now := s.now()

	return s.transition(ctx, kind, id, models.StatusUploading, models.StatusConfirmed, func(tx dbx.DBTX) error {
		if kind == models.KindImage {
			return s.repos.Images(tx).Transition(ctx, id, models.StatusUploading, models.StatusConfirmed, now)
		}
		return s.repos.Events(tx).Transition(ctx, id, models.StatusUploading, models.StatusConfirmed, now)
	})
}

// MarkFailed moves an UPLOADING record to FAILED, increments its retry count
// and schedules the next attempt with capped exponential backoff. It returns
// the scheduled time.
func (s *Store) MarkFailed(ctx context.Context, kind models.RecordKind, id string, reason string) (time.Time, error) {
	now := s.now()
	var next time.Time

	err := s.transition(ctx, kind, id, models.StatusUploading, models.StatusFailed, func(tx dbx.DBTX) error {
		state, err := s.syncState(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if state.Status != models.StatusUploading {
			return dbx.ErrNoRowsAffected
		}
		next = now.Add(s.backoff.Delay(state.RetryCount + 1))

		if kind == models.KindImage {
			return s.repos.Images(tx).Fail(ctx, id, next, reason, now)
		}
		return s.repos.Events(tx).Fail(ctx, id, next, reason, now)
	})
	if err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// transition runs apply in a transaction and turns a compare-and-set miss
// into ErrNotFound or ErrInvalidTransition, depending on what is stored.
func (s *Store) transition(ctx context.Context, kind models.RecordKind, id string, from, to models.SyncStatus, apply func(tx dbx.DBTX) error) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown record kind %q: %w", kind, common.ErrInvalidTransition)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := apply(tx)
		if !errors.Is(err, dbx.ErrNoRowsAffected) {
			return err
		}

		state, getErr := s.syncState(ctx, tx, kind, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%s %s is %s, cannot move %s -> %s: %w",
			kind, id, state.Status, from, to, common.ErrInvalidTransition)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrNotFound):
		return err
	default:
		return storageErr(fmt.Sprintf("%s %s -> %s", kind, from, to), err)
	}
}

func (s *Store) syncState(ctx context.Context, tx dbx.DBTX, kind models.RecordKind, id string) (models.SyncState, error) {
	if kind == models.KindImage {
		img, err := s.repos.Images(tx).GetByID(ctx, id)
		if err != nil {
			return models.SyncState{}, err
		}
		return img.SyncState, nil
	}
	ev, err := s.repos.Events(tx).GetByID(ctx, id)
	if err != nil {
		return models.SyncState{}, err
	}
	return ev.SyncState, nil
}
