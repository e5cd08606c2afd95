package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"
)

type Beacon interface {
	SendHeartbeat(ctx context.Context, hb models.Heartbeat) error
}

// HeartbeatService reports liveness. It reads runtime stats only and never
// touches the store; a failed beacon is retried on the next tick.
type HeartbeatService struct {
	beacon   Beacon
	deviceID string
	version  string
	timeout  time.Duration
	stats    *Stats
	logger   logging.Logger
	now      func() time.Time
}

func NewHeartbeatService(beacon Beacon, deviceID, version string, timeout time.Duration, stats *Stats, logger logging.Logger) *HeartbeatService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HeartbeatService{
		beacon:   beacon,
		deviceID: deviceID,
		version:  version,
		timeout:  timeout,
		stats:    stats,
		logger:   logger.With("module", "heartbeat"),
		now:      time.Now,
	}
}

func (s *HeartbeatService) Name() string { return "heartbeat" }

func (s *HeartbeatService) Tick(ctx context.Context) Outcome {
	hb := s.build()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.beacon.SendHeartbeat(callCtx, hb); err != nil {
		s.logger.Warn(ctx, "heartbeat failed", "error", err)
		return Outcome{Failed: 1}
	}
	return Outcome{Processed: 1}
}

func (s *HeartbeatService) build() models.Heartbeat {
	now := s.now().UTC()
	snap := s.stats.Snapshot()

	return models.Heartbeat{
		DeviceID:      s.deviceID,
		Timestamp:     now,
		Online:        true,
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(snap.StartedAt).Seconds()),
		QueueDepth:    snap.Queue.Unconfirmed(),
		LastSyncAt:    snap.LastSyncAt,
		SyncFailures:  snap.SyncFailures,
		LastCaptureAt: snap.LastCaptureAt,
	}
}
