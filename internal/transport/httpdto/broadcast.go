package httpdto

// ChannelAuthRequest is the form a client library posts to
// /broadcasting/auth before subscribing to a private or presence channel.
type ChannelAuthRequest struct {
	ChannelName string `json:"channel_name" form:"channel_name" binding:"required"`
	SocketID    string `json:"socket_id" form:"socket_id"`
}

// PresenceChannelData is returned for presence channels instead of a bare
// true.
type PresenceChannelData struct {
	ChannelData PresenceUser `json:"channel_data"`
}

type PresenceUser struct {
	UserID   string            `json:"user_id"`
	UserInfo map[string]string `json:"user_info"`
}
