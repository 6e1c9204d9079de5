package model

// Event is one row on an event-bus channel (spec §3 "Event"). Events are
// owned by nobody and retained independently of session/stage/interaction
// retention (spec §3 "Ownership & lifecycle").
type Event struct {
	ID        int64
	Channel   string
	Payload   []byte // JSON
	CreatedAt int64  // microseconds since epoch, UTC
}

// Well-known channels (spec §4.3).
const (
	ChannelSessions      = "sessions"
	ChannelCancellations = "cancellations"
)

// SessionChannel returns the per-session detail channel name for sessionID.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}
