package handler

import (
	"context"
	"net/http"

	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// MessageRenderer turns a stored message into the payload shape clients
// also receive over the socket.
type MessageRenderer interface {
	MessagePayload(ctx context.Context, msg message.Message) events.MessagePayload
}

type ConversationHandler struct {
	service  *services.ConversationService
	messages *services.MessageService
	renderer MessageRenderer
}

func NewConversationHandler(service *services.ConversationService, messages *services.MessageService, renderer MessageRenderer) *ConversationHandler {
	return &ConversationHandler{service: service, messages: messages, renderer: renderer}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	memberIDs, err := parseUUIDs(req.MemberIDs)
	if err != nil {
		badRequest(c, "invalid member_ids")
		return
	}

	conv, created, err := h.service.Create(c.Request.Context(), services.CreateConversationInput{
		CreatorID: requester.ID,
		Type:      req.Type,
		Name:      req.Name,
		Avatar:    req.Avatar,
		MemberIDs: memberIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	requester, ok := identity(c)
	if !ok {
		return
	}
	page, limit, ok := pagination(c)
	if !ok {
		return
	}

	views, total, err := h.service.List(c.Request.Context(), requester.ID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.ConversationDTO, 0, len(views))
	for _, v := range views {
		dto := httpdto.FromConversation(v.Conversation)
		if v.LatestMessage != nil {
			payload := h.renderer.MessagePayload(c.Request.Context(), *v.LatestMessage)
			dto.LatestMessage = &payload
		}
		out = append(out, dto)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConversationListResponse{Conversations: out, Total: total}))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	conv, err := h.service.Get(c.Request.Context(), id, requester.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	if err := h.messages.MarkRead(c.Request.Context(), id, requester.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *ConversationHandler) UpdateSettings(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.UpdateConversationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	if err := h.service.UpdateSettings(c.Request.Context(), id, requester.ID, req.IsMuted, req.IsPinned); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *ConversationHandler) AddMembers(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userIDs, err := parseUUIDs(req.UserIDs)
	if err != nil {
		badRequest(c, "invalid user_ids")
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}

	added, err := h.service.AddMembers(c.Request.Context(), id, requester.ID, userIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMembers(added)))
}

func (h *ConversationHandler) RemoveMember(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), id, requester.ID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
