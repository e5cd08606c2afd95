package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/store"
	"github.com/dmitrijs2005/edgekeeper/internal/backoff"
	"github.com/dmitrijs2005/edgekeeper/internal/filex"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type env struct {
	store    *store.Store
	clock    *fakeClock
	imageDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	clock := &fakeClock{t: t0}

	s, err := store.Open(context.Background(), store.Options{
		Path:     filepath.Join(dir, "edge.db"),
		DeviceID: "edge-1",
		Backoff:  backoff.Policy{Base: 30 * time.Second, Max: 10 * time.Minute},
		Now:      clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return &env{store: s, clock: clock, imageDir: filepath.Join(dir, "images")}
}

// burst stores an event with n real image files captured at at.
func (e *env) burst(t *testing.T, n int, at time.Time) (string, []*models.ImageRecord) {
	t.Helper()

	images := make([]*models.ImageRecord, 0, n)
	for i := 0; i < n; i++ {
		id := models.NewID()
		wf, err := filex.WriteFileAtomic(filepath.Join(e.imageDir, id+".jpg"), bytes.NewReader([]byte(fmt.Sprintf("frame %s", id))))
		require.NoError(t, err)
		images = append(images, &models.ImageRecord{
			ID:         id,
			Seq:        i,
			FilePath:   wf.Path,
			Checksum:   wf.Checksum,
			SizeBytes:  wf.Size,
			Format:     "jpeg",
			CapturedAt: at,
		})
	}
	readings := []*models.Reading{{SensorType: "temperature", Value: 20.5, Unit: "C", CapturedAt: at}}

	id, err := e.store.CreateCaptureEvent(context.Background(), &models.CaptureEvent{CapturedAt: at}, readings, images)
	require.NoError(t, err)
	return id, images
}

func (e *env) detail(t *testing.T, id string) *models.EventDetail {
	t.Helper()
	d, err := e.store.GetEventDetail(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (e *env) imageStatus(t *testing.T, eventID, imageID string) models.ImageRecord {
	t.Helper()
	for _, img := range e.detail(t, eventID).Images {
		if img.ID == imageID {
			return *img
		}
	}
	t.Fatalf("image %s not found in event %s", imageID, eventID)
	return models.ImageRecord{}
}

var nop logging.Logger = logging.Nop{}
