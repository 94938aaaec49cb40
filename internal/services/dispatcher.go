package services

import (
	"context"
	"fmt"

	"shopdesk-realtime/internal/channels"
	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/metrics"
	shopdesk_errors "shopdesk-realtime/pkg/errors"
	"shopdesk-realtime/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const replySnippetLength = 100

// Dispatcher pushes events to channels right after the write that caused
// them committed. A push failure only delays delivery (clients recover by
// polling), so it is logged and counted but never returned.
type Dispatcher struct {
	members   *MembershipStore
	profiles  user.ProfileLookup
	publisher events.Publisher
	sink      events.RecordSink
	logger    *logger.Logger
}

func NewDispatcher(members *MembershipStore, profiles user.ProfileLookup, publisher events.Publisher, sink events.RecordSink, log *logger.Logger) *Dispatcher {
	if sink == nil {
		sink = events.NopSink{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		members:   members,
		profiles:  profiles,
		publisher: publisher,
		sink:      sink,
		logger:    log.Named("dispatcher"),
	}
}

// MessageChannels is the destination set of a message event: the
// conversation channel plus the private channel of every member except
// the sender.
func (d *Dispatcher) MessageChannels(ctx context.Context, conversationID, senderID uuid.UUID) ([]string, error) {
	memberIDs, err := d.members.MembersOf(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(memberIDs)+1)
	out = append(out, channels.Conversation(conversationID))
	for _, id := range memberIDs {
		if id == senderID {
			continue
		}
		out = append(out, channels.User(id))
	}
	return out, nil
}

// DispatchMessage sends message.sent for a persisted message. The envelope
// id is the message id on every channel, so a client subscribed to both
// the conversation and its own channel applies it once.
func (d *Dispatcher) DispatchMessage(ctx context.Context, msg message.Message) {
	d.DispatchMessageEvent(ctx, events.EventMessageSent, msg.ID.String(), msg, d.MessagePayload(ctx, msg))
}

// DispatchMessageEvent sends a message-scoped event to the message
// destination set.
func (d *Dispatcher) DispatchMessageEvent(ctx context.Context, event, id string, msg message.Message, data any) {
	targets, err := d.MessageChannels(ctx, msg.ConversationID, msg.SenderID)
	if err != nil {
		d.fail(ctx, event, channels.Conversation(msg.ConversationID), err)
		return
	}
	d.fanout(ctx, id, event, targets, data)
}

func (d *Dispatcher) DispatchToUser(ctx context.Context, userID uuid.UUID, event string, data any) {
	d.fanout(ctx, "", event, []string{channels.User(userID)}, data)
}

func (d *Dispatcher) DispatchToConversation(ctx context.Context, conversationID uuid.UUID, event string, data any) {
	d.fanout(ctx, "", event, []string{channels.Conversation(conversationID)}, data)
}

func (d *Dispatcher) DispatchToChannels(ctx context.Context, event string, targets []string, data any) {
	d.fanout(ctx, "", event, targets, data)
}

// Record hands a persisted entity to downstream collaborators.
func (d *Dispatcher) Record(ctx context.Context, kind, key string, payload any) {
	if err := d.sink.Emit(ctx, events.Record{Kind: kind, Key: key, Payload: payload}); err != nil {
		d.logger.WithContext(ctx).Warn("record export failed",
			zap.String("kind", kind),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// fanout publishes one logical event, sharing one envelope id across every
// channel.
func (d *Dispatcher) fanout(ctx context.Context, id, event string, targets []string, data any) {
	if id == "" {
		id = uuid.NewString()
	}
	for _, channel := range targets {
		env, err := events.NewEnvelope(id, event, channel, data)
		if err != nil {
			d.fail(ctx, event, channel, err)
			continue
		}
		frame, err := env.Marshal()
		if err != nil {
			d.fail(ctx, event, channel, err)
			continue
		}
		if err := d.publisher.Publish(ctx, channel, frame); err != nil {
			d.fail(ctx, event, channel, err)
			continue
		}
		metrics.DispatchTotal.WithLabelValues(event, "ok").Inc()
	}
}

func (d *Dispatcher) fail(ctx context.Context, event, channel string, cause error) {
	err := fmt.Errorf("%w: %s on %s: %v", shopdesk_errors.ErrDispatchFailure, event, channel, cause)
	metrics.DispatchTotal.WithLabelValues(event, "error").Inc()
	d.logger.WithContext(ctx).Warn("dispatch failed",
		zap.String("event", event),
		zap.String("channel", channel),
		zap.Error(err),
	)
}

// MessagePayload denormalizes a message so receivers can render it
// without a follow-up fetch. Guest messages carry the guest's name from
// the message metadata.
func (d *Dispatcher) MessagePayload(ctx context.Context, msg message.Message) events.MessagePayload {
	ids := []uuid.UUID{msg.SenderID}
	if msg.ReplyTo != nil {
		ids = append(ids, msg.ReplyTo.SenderID)
	}
	profiles, err := d.profiles.GetProfiles(ctx, ids)
	if err != nil {
		d.logger.WithContext(ctx).Warn("profile lookup failed", zap.Error(err))
		profiles = nil
	}

	payload := events.MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Sender:         senderPayload(msg, profiles),
		Content:        msg.Content,
		Type:           msg.Type,
		Metadata:       msg.Metadata,
		Attachments:    make([]events.AttachmentPayload, 0, len(msg.Attachments)),
		IsEdited:       msg.IsEdited,
		CreatedAt:      msg.CreatedAt,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, events.AttachmentPayload{
			ID:            a.ID,
			FileName:      a.FileName,
			FilePath:      a.FilePath,
			FileType:      a.FileType,
			FileSize:      a.FileSize,
			ThumbnailPath: a.ThumbnailPath,
		})
	}
	if msg.ReplyTo != nil {
		payload.ReplyTo = &events.ReplyPayload{
			ID:         msg.ReplyTo.ID,
			Content:    msg.ReplyTo.Snippet(replySnippetLength),
			SenderName: senderPayload(*msg.ReplyTo, profiles).Name,
		}
	}
	return payload
}

func senderPayload(msg message.Message, profiles map[uuid.UUID]user.Profile) events.SenderPayload {
	if msg.SenderID == uuid.Nil {
		name, _ := msg.Metadata[message.MetaGuestName].(string)
		return events.SenderPayload{ID: uuid.Nil, Name: name}
	}
	p, ok := profiles[msg.SenderID]
	if !ok {
		return events.SenderPayload{ID: msg.SenderID}
	}
	return events.SenderPayload{ID: p.ID, Name: p.Name, Avatar: p.Avatar}
}

func profilePayload(p user.Profile) events.SenderPayload {
	return events.SenderPayload{ID: p.ID, Name: p.Name, Avatar: p.Avatar}
}
