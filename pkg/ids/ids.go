// Package ids provides the identifier and timestamp conventions shared by
// every other package: UUIDv4 primary keys and microsecond-resolution Unix
// timestamps (UTC) for every persisted row.
package ids

import (
	"time"

	"github.com/google/uuid"
)

// New returns a fresh UUIDv4 string, used for session/stage/interaction
// primary keys and WebSocket connection ids.
func New() string {
	return uuid.NewString()
}

// NowMicros returns the current time as microseconds since the Unix epoch
// (UTC). All timestamp fields in the data model use this unit.
func NowMicros() int64 {
	return ToMicros(time.Now())
}

// ToMicros converts a time.Time to microseconds since the Unix epoch.
func ToMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

// FromMicros converts microseconds since the Unix epoch back to a time.Time.
func FromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
