package dbx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNanosRoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 19, 6, 30, 15, 123456789, time.UTC)
	assert.True(t, at.Equal(FromNanos(Nanos(at))))
	assert.Equal(t, time.UTC, FromNanos(Nanos(at)).Location())
}

func TestNullNanos(t *testing.T) {
	assert.False(t, NullNanos(time.Time{}).Valid)
	assert.True(t, FromNullNanos(NullNanos(time.Time{})).IsZero())

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := NullNanos(at)
	assert.True(t, n.Valid)
	assert.True(t, at.Equal(FromNullNanos(n)))
}
