package social

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipBlocked  = "blocked"
)

// Friendship is stored once per pair; RequesterID is whoever acted first
// (or whoever blocked).
type Friendship struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequesterID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair,priority:1"`
	AddresseeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair,priority:2"`
	Status      string    `gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Friendship) TableName() string {
	return "friendships"
}

// Involves reports whether id is one side of the friendship.
func (f Friendship) Involves(id uuid.UUID) bool {
	return f.RequesterID == id || f.AddresseeID == id
}

// Other returns the side of the friendship that is not id.
func (f Friendship) Other(id uuid.UUID) uuid.UUID {
	if f.RequesterID == id {
		return f.AddresseeID
	}
	return f.RequesterID
}

// Notification is a generic per-identity event record.
type Notification struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type        string          `gorm:"not null"`
	SubjectType string          `gorm:"not null"`
	SubjectID   uuid.UUID       `gorm:"type:uuid"`
	Data        json.RawMessage `gorm:"type:jsonb"`
	ReadAt      *time.Time
	CreatedAt   time.Time
}

func (Notification) TableName() string {
	return "notifications"
}
