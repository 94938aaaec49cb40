package handler

import (
	"context"
	"net/http"

	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SocialHandler struct {
	friends       *services.FriendshipService
	notifications *services.NotificationService
}

func NewSocialHandler(friends *services.FriendshipService, notifications *services.NotificationService) *SocialHandler {
	return &SocialHandler{friends: friends, notifications: notifications}
}

func (h *SocialHandler) ListFriends(c *gin.Context) {
	requester, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.friends.List(c.Request.Context(), requester.ID, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.FriendshipDTO, 0, len(list))
	for _, f := range list {
		out = append(out, httpdto.FromFriendship(f))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *SocialHandler) SendRequest(c *gin.Context) {
	var req httpdto.FriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	addressee, err := uuid.Parse(req.AddresseeID)
	if err != nil {
		badRequest(c, "invalid addressee_id")
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	f, err := h.friends.SendRequest(c.Request.Context(), requester.ID, addressee)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromFriendship(f)))
}

func (h *SocialHandler) AcceptRequest(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	f, err := h.friends.Accept(c.Request.Context(), id, requester.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromFriendship(f)))
}

func (h *SocialHandler) RejectRequest(c *gin.Context) {
	h.actOnID(c, h.friends.Reject)
}

func (h *SocialHandler) CancelRequest(c *gin.Context) {
	h.actOnID(c, h.friends.Cancel)
}

// actOnID runs fn for the :id path param on behalf of the caller.
func (h *SocialHandler) actOnID(c *gin.Context, fn func(ctx context.Context, id, userID uuid.UUID) error) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), id, requester.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *SocialHandler) Unfriend(c *gin.Context) {
	other, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	if err := h.friends.Unfriend(c.Request.Context(), requester.ID, other); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *SocialHandler) Block(c *gin.Context) {
	other, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}
	f, err := h.friends.Block(c.Request.Context(), requester.ID, other)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromFriendship(f)))
}

func (h *SocialHandler) ListNotifications(c *gin.Context) {
	requester, ok := identity(c)
	if !ok {
		return
	}
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	list, total, err := h.notifications.List(c.Request.Context(), requester.ID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.NotificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, httpdto.FromNotification(n))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NotificationListResponse{Notifications: out, Total: total}))
}

func (h *SocialHandler) UnreadCount(c *gin.Context) {
	requester, ok := identity(c)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(c.Request.Context(), requester.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{Count: count}))
}

func (h *SocialHandler) MarkNotificationRead(c *gin.Context) {
	h.actOnID(c, h.notifications.MarkRead)
}

func (h *SocialHandler) MarkAllNotificationsRead(c *gin.Context) {
	requester, ok := identity(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkAllRead(c.Request.Context(), requester.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *SocialHandler) DeleteNotification(c *gin.Context) {
	h.actOnID(c, h.notifications.Delete)
}
