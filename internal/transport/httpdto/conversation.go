package httpdto

import (
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/events"
)

type CreateConversationRequest struct {
	Type      string   `json:"type" binding:"required"`
	Name      string   `json:"name"`
	Avatar    string   `json:"avatar"`
	MemberIDs []string `json:"member_ids" binding:"required"`
}

type AddMembersRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

type UpdateConversationSettingsRequest struct {
	IsMuted  *bool `json:"is_muted"`
	IsPinned *bool `json:"is_pinned"`
}

type MemberDTO struct {
	UserID     string     `json:"user_id"`
	Role       string     `json:"role"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
	IsMuted    bool       `json:"is_muted"`
	IsPinned   bool       `json:"is_pinned"`
	JoinedAt   time.Time  `json:"joined_at"`
}

type ConversationDTO struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Name          *string                `json:"name"`
	Avatar        string                 `json:"avatar,omitempty"`
	CreatedBy     string                 `json:"created_by"`
	Members       []MemberDTO            `json:"members,omitempty"`
	LatestMessage *events.MessagePayload `json:"latest_message,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type ConversationListResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Total         int64             `json:"total"`
}

func FromMember(m conversation.Member) MemberDTO {
	return MemberDTO{
		UserID:     m.UserID.String(),
		Role:       m.Role,
		LastReadAt: m.LastReadAt,
		IsMuted:    m.IsMuted,
		IsPinned:   m.IsPinned,
		JoinedAt:   m.JoinedAt,
	}
}

func FromMembers(members []conversation.Member) []MemberDTO {
	out := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, FromMember(m))
	}
	return out
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:        c.ID.String(),
		Type:      c.Type,
		Name:      c.Name,
		Avatar:    c.Avatar,
		CreatedBy: c.CreatedBy.String(),
		Members:   FromMembers(c.Members),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
