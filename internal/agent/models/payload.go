package models

import "time"

// MetadataPayload is the body of the idempotent metadata upload, keyed by
// LocalID. Built from stored rows only, so a resend is byte-identical.
type MetadataPayload struct {
	LocalID    string           `json:"local_id"`
	DeviceID   string           `json:"device_id"`
	CrateID    string           `json:"crate_id,omitempty"`
	CameraName string           `json:"camera_name,omitempty"`
	CapturedAt time.Time        `json:"captured_at"`
	Readings   []ReadingPayload `json:"readings"`
	Images     []ImagePayload   `json:"images"`
}

type ReadingPayload struct {
	LocalID    string    `json:"local_id"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	CapturedAt time.Time `json:"captured_at"`
}

type ImagePayload struct {
	LocalID    string    `json:"local_id"`
	Seq        int       `json:"seq"`
	Checksum   string    `json:"checksum"`
	SizeBytes  int64     `json:"size"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Format     string    `json:"format,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewMetadataPayload flattens an event and its children into the wire form.
func NewMetadataPayload(d *EventDetail) MetadataPayload {
	p := MetadataPayload{
		LocalID:    d.Event.ID,
		DeviceID:   d.Event.DeviceID,
		CrateID:    d.Event.CrateID,
		CameraName: d.Event.CameraName,
		CapturedAt: d.Event.CapturedAt.UTC(),
		Readings:   make([]ReadingPayload, 0, len(d.Readings)),
		Images:     make([]ImagePayload, 0, len(d.Images)),
	}
	for _, r := range d.Readings {
		p.Readings = append(p.Readings, ReadingPayload{
			LocalID:    r.ID,
			SensorType: r.SensorType,
			Value:      r.Value,
			Unit:       r.Unit,
			CapturedAt: r.CapturedAt.UTC(),
		})
	}
	for _, img := range d.Images {
		p.Images = append(p.Images, ImagePayload{
			LocalID:    img.ID,
			Seq:        img.Seq,
			Checksum:   img.Checksum,
			SizeBytes:  img.SizeBytes,
			Width:      img.Width,
			Height:     img.Height,
			Format:     img.Format,
			CapturedAt: img.CapturedAt.UTC(),
		})
	}
	return p
}

// MetadataAck is the server's answer to a metadata upload.
type MetadataAck struct {
	LocalID string `json:"local_id"`
	Status  string `json:"status"` // "confirmed" or "processing"
}

const (
	AckConfirmed  = "confirmed"
	AckProcessing = "processing"
)

// Heartbeat is the liveness beacon. It never touches the store; the queue
// figures come from the in-memory runtime stats.
type Heartbeat struct {
	DeviceID      string    `json:"device_id"`
	Timestamp     time.Time `json:"timestamp"`
	Online        bool      `json:"online"`
	Version       string    `json:"version,omitempty"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	QueueDepth    int       `json:"queue_depth"`
	LastSyncAt    time.Time `json:"last_sync_at,omitzero"`
	SyncFailures  int       `json:"sync_failures"`
	LastCaptureAt time.Time `json:"last_capture_at,omitzero"`
}
