package services

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
)

// Stats is the in-memory runtime picture shared between workers. The sync
// worker feeds it, the heartbeat reads it, so the heartbeat never has to
// touch the store.
type Stats struct {
	mu sync.RWMutex

	startedAt     time.Time
	lastCaptureAt time.Time
	lastSyncAt    time.Time
	syncFailures  int
	queue         models.QueueStats
	haveQueue     bool
}

type StatsSnapshot struct {
	StartedAt     time.Time
	LastCaptureAt time.Time
	LastSyncAt    time.Time
	SyncFailures  int // failures in the most recent sync tick
	Queue         models.QueueStats
	HaveQueue     bool
}

func NewStats(startedAt time.Time) *Stats {
	return &Stats{startedAt: startedAt}
}

func (s *Stats) RecordCapture(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCaptureAt = at
}

func (s *Stats) RecordSync(at time.Time, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSyncAt = at
	s.syncFailures = failures
}

func (s *Stats) RecordQueue(q models.QueueStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = q
	s.haveQueue = true
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		StartedAt:     s.startedAt,
		LastCaptureAt: s.lastCaptureAt,
		LastSyncAt:    s.lastSyncAt,
		SyncFailures:  s.syncFailures,
		Queue:         s.queue,
		HaveQueue:     s.haveQueue,
	}
}
