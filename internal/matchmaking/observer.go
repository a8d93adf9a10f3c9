package matchmaking

import (
	"time"

	"github.com/mossy-p/stranger-signaling/internal/models"
)

// SessionInfo describes a session to observers.
type SessionInfo struct {
	ID          string
	InitiatorID string
	ReceiverID  string
	CreatedAt   time.Time
	StartedAt   time.Time
}

// Observer receives hub events. Methods are called on the hub goroutine and
// must not block; implementations hand the event off and return.
type Observer interface {
	CountsChanged(stats models.Stats)
	SessionOpened(info SessionInfo)
	SessionStarted(info SessionInfo)
	SessionClosed(record models.SessionRecord)
}

// Observers fans events out to every member.
type Observers []Observer

func (o Observers) CountsChanged(stats models.Stats) {
	for _, obs := range o {
		obs.CountsChanged(stats)
	}
}

func (o Observers) SessionOpened(info SessionInfo) {
	for _, obs := range o {
		obs.SessionOpened(info)
	}
}

func (o Observers) SessionStarted(info SessionInfo) {
	for _, obs := range o {
		obs.SessionStarted(info)
	}
}

func (o Observers) SessionClosed(record models.SessionRecord) {
	for _, obs := range o {
		obs.SessionClosed(record)
	}
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:          s.ID,
		InitiatorID: s.Initiator,
		ReceiverID:  s.Receiver,
		CreatedAt:   s.CreatedAt,
		StartedAt:   s.StartedAt,
	}
}
