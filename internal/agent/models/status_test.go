package models

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []SyncStatus{StatusPending, StatusUploading, StatusConfirmed, StatusFailed}

func TestCanTransition_Matrix(t *testing.T) {
	allowed := map[[2]SyncStatus]bool{
		{StatusPending, StatusUploading}:   true,
		{StatusUploading, StatusConfirmed}: true,
		{StatusUploading, StatusFailed}:    true,
		{StatusFailed, StatusPending}:      true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]SyncStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransition_ConfirmedIsTerminal(t *testing.T) {
	for _, to := range allStatuses {
		err := CheckTransition(StatusConfirmed, to)
		require.ErrorIs(t, err, common.ErrInvalidTransition)
	}
	require.NoError(t, CheckTransition(StatusUploading, StatusConfirmed))
}

func TestSyncStatus_Valid(t *testing.T) {
	assert.True(t, StatusFailed.Valid())
	assert.False(t, SyncStatus("DONE").Valid())
	assert.True(t, KindImage.Valid())
	assert.False(t, RecordKind("reading").Valid())
}

func TestQueueStats_Unconfirmed(t *testing.T) {
	q := QueueStats{
		Events: map[SyncStatus]int{StatusPending: 1, StatusConfirmed: 4},
		Images: map[SyncStatus]int{StatusFailed: 2, StatusUploading: 1, StatusConfirmed: 30},
	}
	assert.Equal(t, 4, q.Unconfirmed())
	assert.Equal(t, 0, QueueStats{}.Unconfirmed())
}

func TestNewMetadataPayload(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.FixedZone("EEST", 3*3600))
	d := &EventDetail{
		Event: &CaptureEvent{ID: "ev-1", DeviceID: "edge-1", CrateID: "crate-3", CameraName: "camera_0", CapturedAt: at},
		Readings: []*Reading{
			{ID: "rd-1", EventID: "ev-1", SensorType: "temperature", Value: 21.5, Unit: "C", CapturedAt: at},
		},
		Images: []*ImageRecord{
			{ID: "im-1", EventID: "ev-1", Seq: 0, Checksum: "abc", SizeBytes: 42, Format: "jpeg", CapturedAt: at},
			{ID: "im-2", EventID: "ev-1", Seq: 1, Checksum: "def", SizeBytes: 43, Format: "jpeg", CapturedAt: at},
		},
	}

	p := NewMetadataPayload(d)

	assert.Equal(t, "ev-1", p.LocalID)
	assert.Equal(t, "crate-3", p.CrateID)
	assert.Equal(t, time.UTC, p.CapturedAt.Location())
	require.Len(t, p.Readings, 1)
	assert.Equal(t, "rd-1", p.Readings[0].LocalID)
	require.Len(t, p.Images, 2)
	assert.Equal(t, "def", p.Images[1].Checksum)
	assert.Equal(t, int64(43), p.Images[1].SizeBytes)

	// deterministic
	assert.Equal(t, p, NewMetadataPayload(d))
}

func TestNewID_UniqueAndOrdered(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup, "id reused: %s", id)
		seen[id] = struct{}{}
		require.Greater(t, id, prev)
		prev = id
	}
}
