package models

import (
	"encoding/json"
	"time"
)

// MessageType tags every envelope exchanged over the signaling socket
type MessageType string

// Inbound message types (client -> server)
const (
	TypeRegister         MessageType = "register"
	TypeSearch           MessageType = "search"
	TypeStopSearch       MessageType = "stop_search"
	TypeFindNext         MessageType = "find_next"
	TypeOffer            MessageType = "webrtc_offer"
	TypeAnswer           MessageType = "webrtc_answer"
	TypeICECandidate     MessageType = "webrtc_ice_candidate"
	TypeChatMessage      MessageType = "chat_message"
	TypeSessionConnected MessageType = "session_connected"
)

// Outbound message types (server -> client)
const (
	TypeRegistered       MessageType = "registered"
	TypeOnlineCount      MessageType = "online_count"
	TypeMatched          MessageType = "matched"
	TypePeerDisconnected MessageType = "peer_disconnected"
	TypeSessionStarted   MessageType = "session_started"
	TypeError            MessageType = "error"
)

// IsRelayed reports whether messages of this type are forwarded to the peer
func (t MessageType) IsRelayed() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate, TypeChatMessage:
		return true
	}
	return false
}

// Gender is both a declared attribute and a filter preference.
type Gender string

const (
	GenderAny    Gender = "any"
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderBoth   Gender = "both"
)

// Filters are a searcher's matching preferences
type Filters struct {
	Gender   Gender `json:"gender,omitempty"`
	Location string `json:"location,omitempty"`
}

// Profile holds what a searcher declares about themselves
type Profile struct {
	Gender  Gender `json:"gender,omitempty"`
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Area    string `json:"area,omitempty"`
}

// Envelope is the inbound union. Only the fields relevant to Type are set.
type Envelope struct {
	Type         MessageType     `json:"type"`
	ConnectionID string          `json:"connectionId,omitempty"`
	SessionID    string          `json:"sessionId,omitempty"`
	Filters      *Filters        `json:"filters,omitempty"`
	Profile      *Profile        `json:"profile,omitempty"`
	SDP          json.RawMessage `json:"sdp,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	Text         string          `json:"text,omitempty"`
}

// RegisteredMessage acknowledges a register request
type RegisteredMessage struct {
	Type         MessageType `json:"type"`
	ConnectionID string      `json:"connectionId"`
}

// OnlineCountMessage reports how many connections are online and searching
type OnlineCountMessage struct {
	Type      MessageType `json:"type"`
	Count     int64       `json:"count"`
	Searching int64       `json:"searching"`
}

// MatchedMessage tells a searcher it has a peer
type MatchedMessage struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"sessionId"`
	IsInitiator bool        `json:"isInitiator"`
}

// PeerDisconnectedMessage tells a participant its peer left the session
type PeerDisconnectedMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
}

// SessionStartedMessage carries the stamp used for call duration display
type SessionStartedMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	StartedAt time.Time   `json:"startedAt"`
}

// ErrorMessage reports a rejected client message
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Error   string      `json:"error"`
	Request MessageType `json:"request,omitempty"`
}
