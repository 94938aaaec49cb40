package guest

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"

	ContactEmail = "email"
	ContactPhone = "phone"
)

// Session is an anonymous visitor's chat identity. Only the hash of the
// opaque token is stored.
type Session struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TokenHash       string    `gorm:"size:64;uniqueIndex;not null"`
	Name            string    `gorm:"not null"`
	Contact         string
	ContactType     string     `gorm:"type:varchar(8)"`
	ConversationID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	AssignedStaffID *uuid.UUID `gorm:"type:uuid"`
	Status          string     `gorm:"type:varchar(8);not null;index"`
	MessageCount    int
	LastActivityAt  time.Time `gorm:"index"`
	CreatedAt       time.Time
	ClosedAt        *time.Time
}

func (Session) TableName() string {
	return "guest_sessions"
}

func (s Session) IsOpen() bool {
	return s.Status == StatusOpen
}

func ValidContactType(t string) bool {
	return t == ContactEmail || t == ContactPhone
}
