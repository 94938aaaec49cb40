package handler

import (
	"net/http"

	"shopdesk-realtime/internal/transport/httpdto"
	"shopdesk-realtime/internal/websocket"

	"github.com/gin-gonic/gin"
)

// BroadcastHandler answers the subscription auth call client libraries
// make before joining a private or presence channel.
type BroadcastHandler struct {
	gateway *websocket.Gateway
}

func NewBroadcastHandler(gateway *websocket.Gateway) *BroadcastHandler {
	return &BroadcastHandler{gateway: gateway}
}

func (h *BroadcastHandler) Auth(c *gin.Context) {
	var req httpdto.ChannelAuthRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "channel_name is required")
		return
	}
	requester, ok := identity(c)
	if !ok {
		return
	}

	auth, err := h.gateway.Authorize(c.Request.Context(), &requester, req.ChannelName)
	if err != nil {
		writeError(c, err)
		return
	}
	if auth.Presence == nil {
		c.JSON(http.StatusOK, true)
		return
	}
	c.JSON(http.StatusOK, httpdto.PresenceChannelData{
		ChannelData: httpdto.PresenceUser{
			UserID: auth.Presence.ID.String(),
			UserInfo: map[string]string{
				"name":   auth.Presence.Name,
				"avatar": auth.Presence.Avatar,
			},
		},
	})
}
