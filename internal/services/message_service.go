package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/repository"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

type MessageService struct {
	store      repository.Store
	members    *MembershipStore
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewMessageService(store repository.Store, members *MembershipStore, dispatcher *Dispatcher) *MessageService {
	return &MessageService{store: store, members: members, dispatcher: dispatcher, now: time.Now}
}

type AttachmentInput struct {
	FileName      string
	FilePath      string
	FileType      string
	FileSize      int64
	ThumbnailPath *string
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        *string
	Type           string
	Metadata       map[string]any
	ReplyToID      *uuid.UUID
	Attachments    []AttachmentInput
}

func (in SendMessageInput) validate() error {
	if in.ConversationID == uuid.Nil || in.SenderID == uuid.Nil {
		return shopdesk_errors.ErrInvalidInput
	}
	if in.Type != "" && !message.ValidType(in.Type) {
		return shopdesk_errors.ErrInvalidInput
	}
	hasContent := in.Content != nil && strings.TrimSpace(*in.Content) != ""
	if !hasContent && len(in.Attachments) == 0 {
		return shopdesk_errors.ErrInvalidInput
	}
	for _, a := range in.Attachments {
		if a.FileName == "" || a.FilePath == "" {
			return shopdesk_errors.ErrInvalidInput
		}
	}
	return nil
}

// Send persists a message and dispatches it in the same step, so messages
// of one conversation reach its channel in creation order. A dispatch
// failure does not fail the send: the message is already stored.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (message.Message, error) {
	if err := in.validate(); err != nil {
		return message.Message{}, err
	}
	ok, err := s.members.IsMember(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return message.Message{}, err
	}
	if !ok {
		return message.Message{}, shopdesk_errors.ErrForbidden
	}

	msg := newMessage(in.ConversationID, in.SenderID, in.Content, in.Type, in.Metadata, in.Attachments, s.now())
	msg.ReplyToID = in.ReplyToID
	msg, err = persistMessage(ctx, s.store, msg)
	if err != nil {
		return message.Message{}, err
	}

	s.dispatcher.DispatchMessage(ctx, msg)
	s.dispatcher.Record(ctx, events.RecordMessage, msg.ConversationID.String(), msg)
	return msg, nil
}

func (s *MessageService) List(ctx context.Context, conversationID, userID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	ok, err := s.members.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shopdesk_errors.ErrForbidden
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.Messages().ListByConversation(ctx, conversationID, before, limit)
}

// Edit replaces the content of the caller's own message.
func (s *MessageService) Edit(ctx context.Context, messageID, userID uuid.UUID, content string) (message.Message, error) {
	if strings.TrimSpace(content) == "" {
		return message.Message{}, shopdesk_errors.ErrInvalidInput
	}
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.IsDeleted() {
		return message.Message{}, shopdesk_errors.ErrNotFound
	}
	if msg.SenderID != userID {
		return message.Message{}, shopdesk_errors.ErrForbidden
	}

	msg.Content = &content
	msg.IsEdited = true
	if err := s.store.Messages().Update(ctx, msg); err != nil {
		return message.Message{}, err
	}
	msg.UpdatedAt = s.now()

	s.dispatcher.DispatchMessageEvent(ctx, events.EventMessageUpdated, "", msg, s.dispatcher.MessagePayload(ctx, msg))
	s.dispatcher.Record(ctx, events.RecordMessage, msg.ConversationID.String(), msg)
	return msg, nil
}

// Delete marks a message deleted. The sender and conversation admins may
// delete.
func (s *MessageService) Delete(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted() {
		return shopdesk_errors.ErrNotFound
	}
	if msg.SenderID != userID {
		admin, err := s.members.IsAdmin(ctx, msg.ConversationID, userID)
		if err != nil {
			return err
		}
		if !admin {
			return shopdesk_errors.ErrForbidden
		}
	}

	at := s.now()
	if err := s.store.Messages().SoftDelete(ctx, messageID, at); err != nil {
		return err
	}
	msg.DeletedAt = &at

	s.dispatcher.DispatchMessageEvent(ctx, events.EventMessageDeleted, "", msg, events.MessageDeletedPayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		DeletedBy:      userID,
	})
	s.dispatcher.Record(ctx, events.RecordMessage, msg.ConversationID.String(), msg)
	return nil
}

// MarkRead moves the caller's read marker to now.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	at := s.now()
	err := s.members.UpdateReadState(ctx, conversationID, userID, conversation.ReadState{LastReadAt: &at})
	if errors.Is(err, shopdesk_errors.ErrNotFound) {
		return shopdesk_errors.ErrForbidden
	}
	return err
}

func newMessage(conversationID, senderID uuid.UUID, content *string, msgType string, metadata map[string]any, attachments []AttachmentInput, now time.Time) message.Message {
	if msgType == "" {
		msgType = message.TypeText
		if content == nil && len(attachments) > 0 {
			msgType = message.TypeFile
		}
	}
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, a := range attachments {
		msg.Attachments = append(msg.Attachments, message.Attachment{
			ID:            uuid.New(),
			MessageID:     msg.ID,
			FileName:      a.FileName,
			FilePath:      a.FilePath,
			FileType:      a.FileType,
			FileSize:      a.FileSize,
			ThumbnailPath: a.ThumbnailPath,
		})
	}
	return msg
}

// persistMessage stores msg and moves the conversation's latest-message
// pointer in one transaction, then reloads it with its reply resolved.
func persistMessage(ctx context.Context, store repository.Store, msg message.Message) (message.Message, error) {
	if msg.ReplyToID != nil {
		parent, err := store.Messages().GetByID(ctx, *msg.ReplyToID)
		if err != nil {
			if errors.Is(err, shopdesk_errors.ErrNotFound) {
				return message.Message{}, shopdesk_errors.ErrInvalidInput
			}
			return message.Message{}, err
		}
		if parent.ConversationID != msg.ConversationID {
			return message.Message{}, shopdesk_errors.ErrInvalidInput
		}
	}
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Messages().Create(ctx, &msg); err != nil {
			return err
		}
		if err := tx.Conversations().SetLatestMessage(ctx, msg.ConversationID, msg.ID); err != nil {
			return err
		}
		// Staff replies keep a guest session alive as much as guest messages do.
		return tx.GuestSessions().TouchByConversation(ctx, msg.ConversationID, msg.CreatedAt)
	})
	if err != nil {
		return message.Message{}, err
	}
	return store.Messages().GetByID(ctx, msg.ID)
}
