package model

import "time"

// Timestamp is a store-assigned instant in milliseconds since the Unix epoch.
// Only the store hands out timestamps; client clocks never order records.
type Timestamp int64

// Time converts the timestamp to a local time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool {
	return t == 0
}
