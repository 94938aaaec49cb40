package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SenderPayload struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
}

type AttachmentPayload struct {
	ID            uuid.UUID `json:"id"`
	FileName      string    `json:"file_name"`
	FilePath      string    `json:"file_path"`
	FileType      string    `json:"file_type"`
	FileSize      int64     `json:"file_size"`
	ThumbnailPath *string   `json:"thumbnail_path"`
}

type ReplyPayload struct {
	ID         uuid.UUID `json:"id"`
	Content    string    `json:"content"`
	SenderName string    `json:"sender_name"`
}

// MessagePayload is the denormalized body of message.sent. Receivers
// render it without a follow-up fetch.
type MessagePayload struct {
	ID             uuid.UUID           `json:"id"`
	ConversationID uuid.UUID           `json:"conversation_id"`
	SenderID       uuid.UUID           `json:"sender_id"`
	Sender         SenderPayload       `json:"sender"`
	Content        *string             `json:"content"`
	Type           string              `json:"type"`
	Metadata       map[string]any      `json:"metadata"`
	Attachments    []AttachmentPayload `json:"attachments"`
	ReplyTo        *ReplyPayload       `json:"reply_to"`
	IsEdited       bool                `json:"is_edited"`
	CreatedAt      time.Time           `json:"created_at"`
}

type MessageDeletedPayload struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	DeletedBy      uuid.UUID `json:"deleted_by"`
}

type FriendRequestPayload struct {
	FriendshipID uuid.UUID     `json:"friendship_id"`
	From         SenderPayload `json:"from"`
	Status       string        `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

type GuestChatStartedPayload struct {
	SessionID      uuid.UUID `json:"session_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	GuestName      string    `json:"guest_name"`
	Contact        string    `json:"contact"`
	ContactType    string    `json:"contact_type"`
	FirstMessage   string    `json:"first_message"`
	StartedAt      time.Time `json:"started_at"`
}

type GuestChatAssignedPayload struct {
	SessionID      uuid.UUID     `json:"session_id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	Staff          SenderPayload `json:"staff"`
}

type GuestChatClosedPayload struct {
	SessionID      uuid.UUID `json:"session_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Reason         string    `json:"reason"`
}

type CallSignalPayload struct {
	ConversationID uuid.UUID       `json:"conversation_id"`
	FromID         uuid.UUID       `json:"from_id"`
	ToID           uuid.UUID       `json:"to_id"`
	Type           string          `json:"type"`
	CallType       string          `json:"call_type"`
	Payload        json.RawMessage `json:"payload"`
}

type CallStatusPayload struct {
	ConversationID uuid.UUID      `json:"conversation_id"`
	FromID         uuid.UUID      `json:"from_id"`
	ToID           *uuid.UUID     `json:"to_id"`
	Status         string         `json:"status"`
	CallType       string         `json:"call_type"`
	Metadata       map[string]any `json:"metadata"`
}

type PresencePayload struct {
	Channel string        `json:"channel"`
	Member  SenderPayload `json:"member"`
}
