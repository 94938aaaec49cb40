package httpdto

import (
	"encoding/json"
	"time"

	"shopdesk-realtime/internal/domain/social"
)

type FriendRequestRequest struct {
	AddresseeID string `json:"addressee_id" binding:"required"`
}

type FriendshipDTO struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	AddresseeID string    `json:"addressee_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NotificationDTO struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	SubjectType string          `json:"subject_type"`
	SubjectID   string          `json:"subject_id"`
	Data        json.RawMessage `json:"data,omitempty"`
	ReadAt      *time.Time      `json:"read_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int64             `json:"total"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

func FromFriendship(f social.Friendship) FriendshipDTO {
	return FriendshipDTO{
		ID:          f.ID.String(),
		RequesterID: f.RequesterID.String(),
		AddresseeID: f.AddresseeID.String(),
		Status:      f.Status,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func FromNotification(n social.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID.String(),
		Type:        n.Type,
		SubjectType: n.SubjectType,
		SubjectID:   n.SubjectID.String(),
		Data:        n.Data,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
}
