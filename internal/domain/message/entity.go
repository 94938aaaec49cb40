package message

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	TypeText   = "text"
	TypeImage  = "image"
	TypeFile   = "file"
	TypeSystem = "system"
)

// Metadata keys set on guest-authored messages.
const (
	MetaGuestName      = "guest_name"
	MetaGuestSessionID = "guest_session_id"
)

// Metadata is a free-form JSON object stored in a jsonb column.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("metadata: unsupported scan type")
	}
	return json.Unmarshal(raw, m)
}

// Message represents the messages table
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	// SenderID is uuid.Nil for guest-authored messages.
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Content   *string
	Type      string     `gorm:"type:varchar(16);not null;default:'text'"`
	Metadata  Metadata   `gorm:"type:jsonb"`
	ReplyToID *uuid.UUID `gorm:"type:uuid"`
	IsEdited  bool       `gorm:"default:false"`
	DeletedAt *time.Time
	CreatedAt time.Time `gorm:"index:idx_messages_conversation_created,priority:2"`
	UpdatedAt time.Time

	// Relationships
	Attachments []Attachment `gorm:"foreignKey:MessageID"`
	ReplyTo     *Message     `gorm:"foreignKey:ReplyToID"`
}

// Attachment represents the message_attachments table
type Attachment struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID     uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName      string    `gorm:"not null"`
	FilePath      string    `gorm:"not null"`
	FileType      string
	FileSize      int64
	ThumbnailPath *string
}

func (Message) TableName() string {
	return "messages"
}

func (Attachment) TableName() string {
	return "message_attachments"
}

func ValidType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeSystem:
		return true
	}
	return false
}

func (m Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Snippet returns at most n runes of the content.
func (m Message) Snippet(n int) string {
	if m.Content == nil {
		return ""
	}
	r := []rune(*m.Content)
	if len(r) <= n {
		return *m.Content
	}
	return string(r[:n])
}
