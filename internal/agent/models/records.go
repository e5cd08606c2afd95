package models

import "time"

// SyncState is the upload bookkeeping carried by events and images.
// NextRetryAt is zero when no retry is scheduled.
type SyncState struct {
	Status      SyncStatus
	RetryCount  int
	NextRetryAt time.Time
	LastError   string
	UpdatedAt   time.Time
}

// CaptureEvent is the root record of one burst. Everything except its sync
// state is immutable after creation.
type CaptureEvent struct {
	ID         string
	DeviceID   string
	CrateID    string
	CameraName string
	CapturedAt time.Time
	CreatedAt  time.Time
	SyncState
}

// Reading is one sensor value taken during a capture cycle.
type Reading struct {
	ID         string
	EventID    string
	SensorType string
	Value      float64
	Unit       string
	CapturedAt time.Time
}

// ImageRecord references one image file on disk. Checksum is the hex
// SHA-256 of the file as written and is never recomputed.
type ImageRecord struct {
	ID             string
	EventID        string
	Seq            int
	FilePath       string
	Checksum       string
	SizeBytes      int64
	Width          int
	Height         int
	Format         string
	CapturedAt     time.Time
	UploadAttempts int
	LastAttemptAt  time.Time
	SyncState
}

// EventDetail is an event together with its children.
type EventDetail struct {
	Event    *CaptureEvent
	Readings []*Reading
	Images   []*ImageRecord
}

// QueueStats summarises the local buffer.
type QueueStats struct {
	Events      map[SyncStatus]int
	Images      map[SyncStatus]int
	BytesOnDisk int64
}

// Unconfirmed counts events and images that still need the server.
func (q QueueStats) Unconfirmed() int {
	n := 0
	for _, s := range []SyncStatus{StatusPending, StatusUploading, StatusFailed} {
		n += q.Events[s] + q.Images[s]
	}
	return n
}
