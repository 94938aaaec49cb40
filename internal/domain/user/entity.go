package user

import (
	"context"

	"github.com/google/uuid"
)

// Profile is the public descriptor of an identity. It is what presence
// channels announce and what pushed payloads embed as the sender.
type Profile struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
	// Staff is true for back-office identities allowed on the guest desk.
	Staff bool `json:"-"`
}

// ProfileLookup resolves profiles from the account collaborator.
type ProfileLookup interface {
	GetProfile(ctx context.Context, id uuid.UUID) (Profile, error)
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error)
}

// Account is the read model of the users table owned by the admin system.
type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	AvatarURL string
	IsStaff   bool
}

func (Account) TableName() string {
	return "users"
}

func (a Account) Profile() Profile {
	return Profile{ID: a.ID, Name: a.Name, Avatar: a.AvatarURL, Staff: a.IsStaff}
}
