package models

import "github.com/google/uuid"

// NewID returns a fresh local identifier. UUIDv7 ids sort by creation time
// and are never reused, even after the record they named is purged.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
