package handler

import (
	"net/http"

	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GuestTokenHeader carries the opaque token StartSession hands out.
const GuestTokenHeader = "X-Guest-Token"

type GuestHandler struct {
	bridge   *services.GuestBridge
	renderer MessageRenderer
}

func NewGuestHandler(bridge *services.GuestBridge, renderer MessageRenderer) *GuestHandler {
	return &GuestHandler{bridge: bridge, renderer: renderer}
}

func (h *GuestHandler) Start(c *gin.Context) {
	var req httpdto.StartGuestSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	start, err := h.bridge.StartSession(c.Request.Context(), services.StartGuestInput{
		Name:        req.Name,
		Contact:     req.Contact,
		ContactType: req.ContactType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.StartGuestSessionResponse{
		Token:          start.Token,
		SessionID:      start.SessionID.String(),
		ConversationID: start.ConversationID.String(),
	}))
}

func (h *GuestHandler) SendMessage(c *gin.Context) {
	var req httpdto.GuestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	content := ""
	if req.Content != nil {
		content = *req.Content
	}
	msg, err := h.bridge.SendMessage(c.Request.Context(), c.GetHeader(GuestTokenHeader), content, toAttachmentInputs(req.Attachments))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(h.renderer.MessagePayload(c.Request.Context(), msg)))
}

func (h *GuestHandler) Messages(c *gin.Context) {
	msgs, err := h.bridge.GetMessages(c.Request.Context(), c.GetHeader(GuestTokenHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]events.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, h.renderer.MessagePayload(c.Request.Context(), m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.GuestMessagesResponse{Messages: out}))
}

func (h *GuestHandler) Session(c *gin.Context) {
	info, err := h.bridge.GetSessionInfo(c.Request.Context(), c.GetHeader(GuestTokenHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGuestSession(info)))
}

func (h *GuestHandler) Status(c *gin.Context) {
	status, err := h.bridge.GetSessionStatus(c.Request.Context(), c.GetHeader(GuestTokenHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGuestStatus(status)))
}

func (h *GuestHandler) End(c *gin.Context) {
	if err := h.bridge.EndSession(c.Request.Context(), c.GetHeader(GuestTokenHeader)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

type assignStaffRequest struct {
	StaffID string `json:"staff_id"`
}

// Assign is the staff side: a staff identity picks up a session, for
// themselves or for a colleague named by staff_id.
func (h *GuestHandler) Assign(c *gin.Context) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	staffID, ok := h.assignee(c)
	if !ok {
		return
	}
	info, err := h.bridge.AssignStaffToSession(c.Request.Context(), sessionID, staffID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGuestSession(info)))
}

// AssignByToken serves staff tools embedded next to the guest widget, which
// hold the guest token rather than the session id.
func (h *GuestHandler) AssignByToken(c *gin.Context) {
	staffID, ok := h.assignee(c)
	if !ok {
		return
	}
	info, err := h.bridge.AssignStaff(c.Request.Context(), c.GetHeader(GuestTokenHeader), staffID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGuestSession(info)))
}

func (h *GuestHandler) assignee(c *gin.Context) (uuid.UUID, bool) {
	requester, ok := identity(c)
	if !ok {
		return uuid.Nil, false
	}
	if !requester.Staff {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("staff only", "FORBIDDEN"))
		return uuid.Nil, false
	}
	var req assignStaffRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return uuid.Nil, false
		}
	}
	if req.StaffID == "" {
		return requester.ID, true
	}
	id, err := uuid.Parse(req.StaffID)
	if err != nil {
		badRequest(c, "invalid staff_id")
		return uuid.Nil, false
	}
	return id, true
}
