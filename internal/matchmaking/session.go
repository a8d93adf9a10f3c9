package matchmaking

import (
	"time"

	"github.com/mossy-p/stranger-signaling/internal/models"
)

// SessionStatus tracks negotiation progress of a pairing
type SessionStatus int

const (
	SessionNegotiating SessionStatus = iota
	SessionActive
	SessionClosed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionNegotiating:
		return "negotiating"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason records why a session ended
type CloseReason string

const (
	CloseDisconnect CloseReason = "disconnect"
	CloseFindNext   CloseReason = "find_next"
	CloseStopSearch CloseReason = "stop_search"
	CloseReplaced   CloseReason = "replaced"
	CloseShutdown   CloseReason = "shutdown"
)

// Session pairs exactly two connections. Receiver was already queued when
// Initiator arrived and found it, so Initiator sends the first offer.
type Session struct {
	ID        string
	Receiver  string
	Initiator string
	Status    SessionStatus
	CreatedAt time.Time
	StartedAt time.Time
	ClosedAt  time.Time
}

// Participants returns (receiver, initiator).
func (s *Session) Participants() [2]string {
	return [2]string{s.Receiver, s.Initiator}
}

func (s *Session) Has(id string) bool {
	return id == s.Receiver || id == s.Initiator
}

// PeerOf returns the other participant.
func (s *Session) PeerOf(id string) (string, bool) {
	switch id {
	case s.Receiver:
		return s.Initiator, true
	case s.Initiator:
		return s.Receiver, true
	}
	return "", false
}

func (s *Session) IsInitiator(id string) bool {
	return id == s.Initiator
}

// Duration is how long the call has been up, for display only. Zero until a
// participant reports the connection established.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !s.ClosedAt.IsZero() {
		end = s.ClosedAt
	}
	return end.Sub(s.StartedAt)
}

func (s *Session) snapshot(now time.Time) models.SessionSnapshot {
	snap := models.SessionSnapshot{
		ID:          s.ID,
		Status:      s.Status.String(),
		InitiatorID: s.Initiator,
		ReceiverID:  s.Receiver,
		CreatedAt:   s.CreatedAt,
		Duration:    s.Duration(now).Truncate(time.Second).String(),
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		snap.StartedAt = &started
	}
	return snap
}

func (s *Session) record(reason CloseReason) models.SessionRecord {
	rec := models.SessionRecord{
		ID:          s.ID,
		InitiatorID: s.Initiator,
		ReceiverID:  s.Receiver,
		CreatedAt:   s.CreatedAt,
		EndedAt:     s.ClosedAt,
		DurationMS:  s.Duration(s.ClosedAt).Milliseconds(),
		CloseReason: string(reason),
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		rec.StartedAt = &started
	}
	return rec
}
