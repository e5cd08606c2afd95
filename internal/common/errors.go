// Package common defines the error taxonomy and protocol constants shared by
// the agent's components. Callers should use errors.Is to match the sentinels.
package common

import "errors"

var (
	// Failure classes. Concrete errors wrap one of these.
	ErrCapture   = errors.New("capture failure")
	ErrStorage   = errors.New("storage failure")
	ErrNetwork   = errors.New("network failure")
	ErrIntegrity = errors.New("integrity failure")

	// Store errors.
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotPurgeable      = errors.New("record not purgeable")
	ErrDeviceMismatch    = errors.New("database belongs to another device")

	// Server answered but has not finished with the payload yet.
	ErrStillProcessing = errors.New("still processing")
)

// IsNetworkClass reports whether err should be retried like a network
// failure. Integrity failures count as network failures for retry purposes.
func IsNetworkClass(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrIntegrity) || errors.Is(err, ErrStillProcessing)
}
