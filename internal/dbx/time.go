package dbx

import (
	"database/sql"
	"time"
)

// Timestamps are stored as INTEGER unix nanoseconds so ordering and range
// comparisons stay numeric inside SQLite.

// Nanos converts t for storage.
func Nanos(t time.Time) int64 {
	return t.UnixNano()
}

// NullNanos converts t for a nullable column; the zero time becomes NULL.
func NullNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// FromNanos is the inverse of Nanos. Results are in UTC.
func FromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// FromNullNanos maps NULL to the zero time.
func FromNullNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return FromNanos(n.Int64)
}
