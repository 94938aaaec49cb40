// Package channels names and parses the pub/sub destinations clients
// subscribe to. Every channel name used anywhere in the service is built
// here so that the authorization gateway and the dispatcher agree on the
// exact shape.
package channels

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	PrivatePrefix  = "private-"
	PresencePrefix = "presence-"

	// StaffGuests carries guest-desk events to back-office consoles.
	StaffGuests = "staff.guests"
)

var ErrUnknownChannel = errors.New("unknown channel")

// Kind tags a parsed descriptor.
type Kind string

const (
	KindUser                 Kind = "user"
	KindConversation         Kind = "conversation"
	KindPresenceConversation Kind = "presence_conversation"
	KindStaffGuests          Kind = "staff_guests"
)

// Descriptor is a parsed channel name.
type Descriptor interface {
	Kind() Kind
	// Name is the canonical channel name, without any kind prefix.
	Name() string
}

type UserChannel struct{ UserID uuid.UUID }

type ConversationChannel struct{ ConversationID uuid.UUID }

type PresenceConversationChannel struct{ ConversationID uuid.UUID }

type StaffGuestsChannel struct{}

func (UserChannel) Kind() Kind                 { return KindUser }
func (ConversationChannel) Kind() Kind         { return KindConversation }
func (PresenceConversationChannel) Kind() Kind { return KindPresenceConversation }
func (StaffGuestsChannel) Kind() Kind          { return KindStaffGuests }

func (c UserChannel) Name() string         { return User(c.UserID) }
func (c ConversationChannel) Name() string { return Conversation(c.ConversationID) }
func (c PresenceConversationChannel) Name() string {
	return PresenceConversation(c.ConversationID)
}
func (StaffGuestsChannel) Name() string { return StaffGuests }

func User(id uuid.UUID) string {
	return "user." + id.String()
}

func Conversation(id uuid.UUID) string {
	return "conversation." + id.String()
}

func PresenceConversation(id uuid.UUID) string {
	return "presence.conversation." + id.String()
}

type matcher struct {
	prefix string
	build  func(id uuid.UUID) Descriptor
}

// Order matters: first match wins, and "presence.conversation." must be
// tried before any shorter prefix could swallow it.
var matchers = []matcher{
	{prefix: "user.", build: func(id uuid.UUID) Descriptor { return UserChannel{UserID: id} }},
	{prefix: "App.Models.User.", build: func(id uuid.UUID) Descriptor { return UserChannel{UserID: id} }},
	{prefix: "conversation.", build: func(id uuid.UUID) Descriptor { return ConversationChannel{ConversationID: id} }},
	{prefix: "presence.conversation.", build: func(id uuid.UUID) Descriptor {
		return PresenceConversationChannel{ConversationID: id}
	}},
}

// Normalize strips the channel-kind prefix and reports whether the client
// asked for a presence channel.
func Normalize(name string) (string, bool) {
	if strings.HasPrefix(name, PresencePrefix) {
		return strings.TrimPrefix(name, PresencePrefix), true
	}
	return strings.TrimPrefix(name, PrivatePrefix), false
}

// Parse resolves a client-supplied channel name into a typed descriptor.
// The kind prefix must agree with the shape: "presence-" only names
// presence channels and "private-" never does.
func Parse(name string) (Descriptor, error) {
	normalized, presence := Normalize(name)
	desc, err := parseNormalized(normalized)
	if err != nil {
		return nil, err
	}
	isPresence := desc.Kind() == KindPresenceConversation
	if presence && !isPresence {
		return nil, ErrUnknownChannel
	}
	if isPresence && strings.HasPrefix(name, PrivatePrefix) {
		return nil, ErrUnknownChannel
	}
	return desc, nil
}

func parseNormalized(normalized string) (Descriptor, error) {
	if normalized == StaffGuests {
		return StaffGuestsChannel{}, nil
	}
	for _, m := range matchers {
		if !strings.HasPrefix(normalized, m.prefix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimPrefix(normalized, m.prefix))
		if err != nil {
			return nil, ErrUnknownChannel
		}
		return m.build(id), nil
	}
	return nil, ErrUnknownChannel
}
