package call

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Signal types
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
)

// Status values
const (
	StatusRinging  = "ringing"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusBusy     = "busy"
	StatusEnded    = "ended"
)

// Call types
const (
	TypeAudio = "audio"
	TypeVideo = "video"
)

// Signal is an in-flight WebRTC negotiation payload. Never persisted.
type Signal struct {
	ConversationID uuid.UUID       `json:"conversation_id"`
	FromID         uuid.UUID       `json:"from_id"`
	ToID           uuid.UUID       `json:"to_id"`
	Type           string          `json:"type"`
	CallType       string          `json:"call_type"`
	Payload        json.RawMessage `json:"payload"`
}

// StatusChange is an in-flight call status overlay. A nil ToID addresses
// the whole conversation.
type StatusChange struct {
	ConversationID uuid.UUID      `json:"conversation_id"`
	FromID         uuid.UUID      `json:"from_id"`
	ToID           *uuid.UUID     `json:"to_id,omitempty"`
	Status         string         `json:"status"`
	CallType       string         `json:"call_type"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func ValidSignalType(t string) bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

func ValidStatus(s string) bool {
	switch s {
	case StatusRinging, StatusAccepted, StatusRejected, StatusBusy, StatusEnded:
		return true
	}
	return false
}

func ValidCallType(t string) bool {
	return t == TypeAudio || t == TypeVideo
}
