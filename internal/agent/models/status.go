// Package models defines the agent's records, their sync state machine and
// the payloads exchanged with the server.
package models

import (
	"fmt"

	"github.com/dmitrijs2005/edgekeeper/internal/common"
)

// SyncStatus is the upload progress of an event or image.
type SyncStatus string

const (
	StatusPending   SyncStatus = "PENDING"
	StatusUploading SyncStatus = "UPLOADING"
	StatusConfirmed SyncStatus = "CONFIRMED"
	StatusFailed    SyncStatus = "FAILED"
)

var transitions = map[SyncStatus][]SyncStatus{
	StatusPending:   {StatusUploading},
	StatusUploading: {StatusConfirmed, StatusFailed},
	StatusFailed:    {StatusPending},
	StatusConfirmed: nil,
}

// Valid reports whether s is a known status.
func (s SyncStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from -> to is allowed. CONFIRMED is
// terminal.
func CanTransition(from, to SyncStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition returning a wrapped ErrInvalidTransition.
func CheckTransition(from, to SyncStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%s -> %s: %w", from, to, common.ErrInvalidTransition)
}

// RecordKind names the table a sync state lives in.
type RecordKind string

const (
	KindEvent RecordKind = "event"
	KindImage RecordKind = "image"
)

func (k RecordKind) Valid() bool {
	return k == KindEvent || k == KindImage
}
