package events

// Event names pushed to clients. Clients match on these strings, so they
// must not change.
const (
	EventMessageSent       = "message.sent"
	EventMessageUpdated    = "message.updated"
	EventMessageDeleted    = "message.deleted"
	EventFriendRequest     = "friend.request"
	EventGuestChatStarted  = "guest.chat.started"
	EventGuestChatAssigned = "guest.chat.assigned"
	EventGuestChatClosed   = "guest.chat.closed"
	EventCallSignal        = "call.signal"
	EventCallStatusChanged = "call.status_changed"
	EventPresenceJoined    = "presence.joined"
	EventPresenceLeft      = "presence.left"
)

// Record kinds handed to the record sink after persistence.
const (
	RecordMessage      = "message"
	RecordGuestSession = "guest_session"
	RecordFriendship   = "friendship"
	RecordNotification = "notification"
)
