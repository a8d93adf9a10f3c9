package matchmaking

import "errors"

var (
	// ErrDuplicateConnection is reported to a stale socket whose connection id
	// was taken over by a newer registration.
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrAlreadyQueued       = errors.New("already queued")
	ErrAlreadyMatched      = errors.New("already matched")
	ErrInvalidCriteria     = errors.New("invalid search criteria")
	ErrNotInSession        = errors.New("not in session")
	ErrSessionClosed       = errors.New("session closed")
	ErrPeerGone            = errors.New("peer gone")
	ErrInvalidState        = errors.New("invalid state")
	ErrHubStopped          = errors.New("hub stopped")
)

// Code maps an error to the stable identifier sent to clients.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateConnection):
		return "duplicate_connection"
	case errors.Is(err, ErrUnknownConnection):
		return "unknown_connection"
	case errors.Is(err, ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, ErrAlreadyMatched):
		return "already_matched"
	case errors.Is(err, ErrInvalidCriteria):
		return "invalid_payload"
	case errors.Is(err, ErrNotInSession):
		return "not_in_session"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrPeerGone):
		return "peer_gone"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrHubStopped):
		return "unavailable"
	default:
		return "internal"
	}
}

// IsDropped reports whether err means a relayed message was discarded because
// its session no longer exists. These are expected during teardown and are
// never echoed back to the sender.
func IsDropped(err error) bool {
	return errors.Is(err, ErrNotInSession) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrPeerGone)
}
