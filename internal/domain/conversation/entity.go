package conversation

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypePrivate = "private"
	TypeGroup   = "group"

	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Conversation represents the conversations table
type Conversation struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name            *string
	Type            string `gorm:"type:varchar(16);not null"`
	Avatar          string
	CreatedBy       uuid.UUID  `gorm:"type:uuid;not null"`
	LatestMessageID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Relationships
	Members []Member `gorm:"foreignKey:ConversationID"`
}

// Member is the conversation/identity join row.
type Member struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Role           string    `gorm:"type:varchar(16);not null;default:'member'"`
	LastReadAt     *time.Time
	IsMuted        bool `gorm:"default:false"`
	IsPinned       bool `gorm:"default:false"`
	JoinedAt       time.Time
}

// ReadState is the per-member state a client may change.
type ReadState struct {
	LastReadAt *time.Time
	IsMuted    *bool
	IsPinned   *bool
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Member) TableName() string {
	return "conversation_members"
}

func (c Conversation) IsGroup() bool {
	return c.Type == TypeGroup
}

// MemberIDs returns the ids of the loaded members.
func (c Conversation) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func ValidType(t string) bool {
	return t == TypePrivate || t == TypeGroup
}
