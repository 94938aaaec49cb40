package handler

import (
	"net/http"
	"time"

	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service  *services.MessageService
	renderer MessageRenderer
}

func NewMessageHandler(service *services.MessageService, renderer MessageRenderer) *MessageHandler {
	return &MessageHandler{service: service, renderer: renderer}
}

func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	sender, ok := identity(c)
	if !ok {
		return
	}

	var replyTo *uuid.UUID
	if req.ReplyToID != "" {
		id, err := uuid.Parse(req.ReplyToID)
		if err != nil {
			badRequest(c, "invalid reply_to_id")
			return
		}
		replyTo = &id
	}

	msg, err := h.service.Send(c.Request.Context(), services.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       sender.ID,
		Content:        req.Content,
		Type:           req.Type,
		Metadata:       req.Metadata,
		ReplyToID:      replyTo,
		Attachments:    toAttachmentInputs(req.Attachments),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(h.renderer.MessagePayload(c.Request.Context(), msg)))
}

// List pages backwards with ?before=<RFC3339 created_at>.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, "invalid before")
			return
		}
		before = &t
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil || limit < 0 || limit > maxPageSize {
		badRequest(c, "invalid limit")
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}

	msgs, err := h.service.List(c.Request.Context(), conversationID, requester.ID, before, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]events.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, h.renderer.MessagePayload(c.Request.Context(), m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessageListResponse{Messages: out}))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	msg, err := h.service.Edit(c.Request.Context(), id, requester.ID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.renderer.MessagePayload(c.Request.Context(), msg)))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, requester.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
