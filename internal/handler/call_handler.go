package handler

import (
	"net/http"

	"shopdesk-realtime/internal/domain/call"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CallHandler relays WebRTC negotiation between two members. Nothing about
// a call is stored.
type CallHandler struct {
	relay *services.CallRelay
}

func NewCallHandler(relay *services.CallRelay) *CallHandler {
	return &CallHandler{relay: relay}
}

func (h *CallHandler) Signal(c *gin.Context) {
	var req httpdto.CallSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		badRequest(c, "invalid conversation_id")
		return
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		badRequest(c, "invalid to_id")
		return
	}
	from, ok := identity(c)
	if !ok {
		return
	}

	err = h.relay.Signal(c.Request.Context(), call.Signal{
		ConversationID: conversationID,
		FromID:         from.ID,
		ToID:           toID,
		Type:           req.Type,
		CallType:       req.CallType,
		Payload:        req.Payload,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse[any](nil))
}

func (h *CallHandler) Status(c *gin.Context) {
	var req httpdto.CallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		badRequest(c, "invalid conversation_id")
		return
	}
	var toID *uuid.UUID
	if req.ToID != "" {
		id, err := uuid.Parse(req.ToID)
		if err != nil {
			badRequest(c, "invalid to_id")
			return
		}
		toID = &id
	}
	from, ok := identity(c)
	if !ok {
		return
	}

	err = h.relay.StatusChanged(c.Request.Context(), call.StatusChange{
		ConversationID: conversationID,
		FromID:         from.ID,
		ToID:           toID,
		Status:         req.Status,
		CallType:       req.CallType,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse[any](nil))
}
