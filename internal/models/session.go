package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SessionRecord is the persisted summary of one finished pairing.
// No message content is ever stored.
type SessionRecord struct {
	bun.BaseModel `bun:"table:session_history,alias:sh"`

	ID          string     `bun:",pk" json:"id"`
	InitiatorID string     `bun:",notnull" json:"initiatorId"`
	ReceiverID  string     `bun:",notnull" json:"receiverId"`
	CreatedAt   time.Time  `bun:",notnull" json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     time.Time  `bun:",notnull" json:"endedAt"`
	DurationMS  int64      `bun:",notnull,default:0" json:"durationMs"`
	CloseReason string     `bun:",notnull" json:"closeReason"`
}

// SessionSnapshot describes a live session for the admin API
type SessionSnapshot struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	InitiatorID string     `json:"initiatorId"`
	ReceiverID  string     `json:"receiverId"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	Duration    string     `json:"duration"`
}

// Stats is the public online summary
type Stats struct {
	Online    int64 `json:"online"`
	Searching int64 `json:"searching"`
	Sessions  int64 `json:"sessions"`
}
