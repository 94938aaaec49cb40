package httpdto

import (
	"time"

	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/services"
)

type StartGuestSessionRequest struct {
	Name        string `json:"name" binding:"required"`
	Contact     string `json:"contact"`
	ContactType string `json:"contact_type"`
}

type StartGuestSessionResponse struct {
	Token          string `json:"token"`
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
}

type GuestMessageRequest struct {
	Content     *string             `json:"content"`
	Attachments []AttachmentRequest `json:"attachments"`
}

type GuestStaffDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type GuestSessionDTO struct {
	SessionID      string         `json:"session_id"`
	ConversationID string         `json:"conversation_id"`
	Name           string         `json:"name"`
	Contact        string         `json:"contact,omitempty"`
	ContactType    string         `json:"contact_type,omitempty"`
	Status         string         `json:"status"`
	AssignedStaff  *GuestStaffDTO `json:"assigned_staff"`
	MessageCount   int            `json:"message_count"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

type GuestStatusDTO struct {
	Status         string         `json:"status"`
	AssignedStaff  *GuestStaffDTO `json:"assigned_staff"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

type GuestMessagesResponse struct {
	Messages []events.MessagePayload `json:"messages"`
}

func fromStaff(p *user.Profile) *GuestStaffDTO {
	if p == nil {
		return nil
	}
	return &GuestStaffDTO{ID: p.ID.String(), Name: p.Name, Avatar: p.Avatar}
}

func FromGuestSession(info services.GuestSessionInfo) GuestSessionDTO {
	return GuestSessionDTO{
		SessionID:      info.SessionID.String(),
		ConversationID: info.ConversationID.String(),
		Name:           info.Name,
		Contact:        info.Contact,
		ContactType:    info.ContactType,
		Status:         info.Status,
		AssignedStaff:  fromStaff(info.AssignedStaff),
		MessageCount:   info.MessageCount,
		CreatedAt:      info.CreatedAt,
		LastActivityAt: info.LastActivityAt,
	}
}

func FromGuestStatus(status services.GuestSessionStatus) GuestStatusDTO {
	return GuestStatusDTO{
		Status:         status.Status,
		AssignedStaff:  fromStaff(status.AssignedStaff),
		LastActivityAt: status.LastActivityAt,
	}
}
