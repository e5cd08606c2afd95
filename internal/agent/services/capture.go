package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/devices/camera"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/devices/sensors"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/filex"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"
)

type CaptureStore interface {
	CreateCaptureEvent(ctx context.Context, ev *models.CaptureEvent, readings []*models.Reading, images []*models.ImageRecord) (string, error)
}

type CaptureOptions struct {
	BurstSize  int
	ImageDir   string
	CrateID    string
	CameraName string
}

// CaptureService takes one burst per tick and stores it as a single
// CaptureEvent.
type CaptureService struct {
	store  CaptureStore
	camera camera.Camera
	sensor sensors.Sensor // nil when sensors are disabled
	opts   CaptureOptions
	stats  *Stats
	logger logging.Logger
	now    func() time.Time
}

func NewCaptureService(store CaptureStore, cam camera.Camera, sensor sensors.Sensor, opts CaptureOptions, stats *Stats, logger logging.Logger) *CaptureService {
	return &CaptureService{
		store:  store,
		camera: cam,
		sensor: sensor,
		opts:   opts,
		stats:  stats,
		logger: logger.With("module", "capture"),
		now:    time.Now,
	}
}

func (s *CaptureService) Name() string { return "capture" }

// Tick captures a burst and the current sensor values. Whatever the devices
// return is committed, even a short burst; the tick is abandoned only when
// nothing at all was captured.
func (s *CaptureService) Tick(ctx context.Context) Outcome {
	eventID := models.NewID()
	started := s.now().UTC()

	frames, camErr := s.camera.Capture(ctx, s.opts.BurstSize)
	if camErr != nil {
		s.logger.Warn(ctx, "camera failure", "event_id", eventID, "frames", len(frames), "wanted", s.opts.BurstSize, "error", camErr)
	}

	var samples []models.SensorSample
	if s.sensor != nil {
		var sensErr error
		samples, sensErr = s.sensor.Read(ctx)
		if sensErr != nil {
			s.logger.Warn(ctx, "sensor failure", "event_id", eventID, "samples", len(samples), "error", sensErr)
		}
		camErr = errors.Join(camErr, sensErr)
	}

	if len(frames) == 0 && len(samples) == 0 {
		err := camErr
		if err == nil {
			err = errors.New("no frames and no readings")
		}
		if !errors.Is(err, common.ErrCapture) {
			err = fmt.Errorf("%w: %w", common.ErrCapture, err)
		}
		return Outcome{Failed: 1, Err: fmt.Errorf("capture abandoned: %w", err)}
	}

	images, written := s.writeFrames(ctx, eventID, frames)

	readings := make([]*models.Reading, 0, len(samples))
	for _, smp := range samples {
		readings = append(readings, &models.Reading{
			SensorType: smp.Type,
			Value:      smp.Value,
			Unit:       smp.Unit,
			CapturedAt: smp.CapturedAt,
		})
	}

	if len(images) == 0 && len(readings) == 0 {
		return Outcome{Failed: 1, Err: fmt.Errorf("capture %s abandoned: no frame could be written: %w", eventID, common.ErrStorage)}
	}

	capturedAt := started
	if len(frames) > 0 {
		capturedAt = frames[0].CapturedAt
	}

	ev := &models.CaptureEvent{
		ID:         eventID,
		CrateID:    s.opts.CrateID,
		CameraName: s.opts.CameraName,
		CapturedAt: capturedAt,
	}

	if _, err := s.store.CreateCaptureEvent(ctx, ev, readings, images); err != nil {
		s.removeFiles(ctx, images)
		return Outcome{Failed: 1, Err: fmt.Errorf("store capture %s: %w", eventID, err)}
	}

	s.stats.RecordCapture(capturedAt)
	s.logger.Info(ctx, "burst stored",
		"event_id", eventID,
		"images", len(images),
		"readings", len(readings),
		"size", humanize.Bytes(uint64(written)),
	)
	return Outcome{Processed: 1}
}

// writeFrames persists frames under ImageDir/YYYY/MM/DD. A frame that
// cannot be written is dropped from the burst.
func (s *CaptureService) writeFrames(ctx context.Context, eventID string, frames []models.Frame) ([]*models.ImageRecord, int64) {
	images := make([]*models.ImageRecord, 0, len(frames))
	var total int64

	for seq, f := range frames {
		id := models.NewID()
		dir := filepath.Join(s.opts.ImageDir, f.CapturedAt.UTC().Format("2006/01/02"))

		wf, err := s.writeFrame(dir, id+".jpg", f.Data)
		if err != nil {
			s.logger.Error(ctx, "dropping frame", "event_id", eventID, "seq", seq, "error", err)
			continue
		}

		total += wf.Size
		images = append(images, &models.ImageRecord{
			ID:         id,
			Seq:        seq,
			FilePath:   wf.Path,
			Checksum:   wf.Checksum,
			SizeBytes:  wf.Size,
			Width:      f.Width,
			Height:     f.Height,
			Format:     f.Format,
			CapturedAt: f.CapturedAt,
		})
	}
	return images, total
}

func (s *CaptureService) writeFrame(dir, name string, data []byte) (filex.WrittenFile, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return filex.WrittenFile{}, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	wf, err := filex.WriteFileAtomic(filepath.Join(abs, name), bytes.NewReader(data))
	if err != nil {
		return filex.WrittenFile{}, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return wf, nil
}

func (s *CaptureService) removeFiles(ctx context.Context, images []*models.ImageRecord) {
	for _, img := range images {
		if _, err := filex.RemoveIfExists(img.FilePath); err != nil {
			s.logger.Warn(ctx, "could not remove orphan image", "path", img.FilePath, "error", err)
		}
	}
}
