package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopdesk-realtime/internal/channels"
	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/domain/guest"
	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/metrics"
	"shopdesk-realtime/internal/repository"
	shopdesk_errors "shopdesk-realtime/pkg/errors"
	"shopdesk-realtime/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	guestTokenBytes  = 32
	guestSweepBatch  = 100
	guestHistorySize = 100

	CloseReasonEnded = "ended"
	CloseReasonIdle  = "idle"
)

type GuestConfig struct {
	// DeskUserID owns every guest conversation and always stays a member,
	// so unassigned chats still reach the staff desk.
	DeskUserID  uuid.UUID
	IdleTimeout time.Duration
}

// GuestBridge maps anonymous visitor sessions onto conversations. The
// visitor holds only an opaque token; the session row stores its hash.
type GuestBridge struct {
	store      repository.Store
	members    *MembershipStore
	dispatcher *Dispatcher
	cfg        GuestConfig
	logger     *logger.Logger
	now        func() time.Time
}

func NewGuestBridge(store repository.Store, members *MembershipStore, dispatcher *Dispatcher, cfg GuestConfig, log *logger.Logger) *GuestBridge {
	if log == nil {
		log = logger.NewNop()
	}
	return &GuestBridge{
		store:      store,
		members:    members,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log.Named("guest"),
		now:        time.Now,
	}
}

type StartGuestInput struct {
	Name        string
	Contact     string
	ContactType string
}

type GuestStart struct {
	Token          string
	SessionID      uuid.UUID
	ConversationID uuid.UUID
}

type GuestSessionInfo struct {
	SessionID      uuid.UUID
	ConversationID uuid.UUID
	Name           string
	Contact        string
	ContactType    string
	Status         string
	AssignedStaff  *user.Profile
	MessageCount   int
	CreatedAt      time.Time
	LastActivityAt time.Time
}

type GuestSessionStatus struct {
	Status         string
	AssignedStaff  *user.Profile
	LastActivityAt time.Time
}

// StartSession creates a session with a fresh conversation owned by the
// guest desk. Every call issues a new token; sessions are never reused.
func (b *GuestBridge) StartSession(ctx context.Context, in StartGuestInput) (GuestStart, error) {
	name := strings.TrimSpace(in.Name)
	contact := strings.TrimSpace(in.Contact)
	if name == "" || contact == "" || !guest.ValidContactType(in.ContactType) {
		return GuestStart{}, shopdesk_errors.ErrInvalidInput
	}
	token, err := newGuestToken()
	if err != nil {
		return GuestStart{}, err
	}

	now := b.now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Name:      &name,
		Type:      conversation.TypePrivate,
		CreatedBy: b.cfg.DeskUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	conv.Members = []conversation.Member{{
		ConversationID: conv.ID,
		UserID:         b.cfg.DeskUserID,
		Role:           conversation.RoleAdmin,
		JoinedAt:       now,
	}}
	session := guest.Session{
		ID:             uuid.New(),
		TokenHash:      hashGuestToken(token),
		Name:           name,
		Contact:        contact,
		ContactType:    in.ContactType,
		ConversationID: conv.ID,
		Status:         guest.StatusOpen,
		LastActivityAt: now,
		CreatedAt:      now,
	}

	err = b.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Conversations().Create(ctx, &conv); err != nil {
			return err
		}
		return tx.GuestSessions().Create(ctx, &session)
	})
	if err != nil {
		return GuestStart{}, err
	}

	metrics.GuestSessionsTotal.WithLabelValues("started").Inc()
	b.dispatcher.Record(ctx, events.RecordGuestSession, session.ID.String(), session)
	return GuestStart{Token: token, SessionID: session.ID, ConversationID: conv.ID}, nil
}

// SendMessage persists a guest message and dispatches it like any other
// message. The first message of a session is also announced to staff
// consoles on the staff.guests channel.
func (b *GuestBridge) SendMessage(ctx context.Context, token, content string, attachments []AttachmentInput) (message.Message, error) {
	session, err := b.openSession(ctx, token)
	if err != nil {
		return message.Message{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return message.Message{}, shopdesk_errors.ErrInvalidInput
	}
	var body *string
	if content != "" {
		body = &content
	}

	metadata := map[string]any{
		message.MetaGuestName:      session.Name,
		message.MetaGuestSessionID: session.ID.String(),
	}
	msg := newMessage(session.ConversationID, uuid.Nil, body, "", metadata, attachments, b.now())
	// The count comes from the row itself, so of two concurrent first
	// messages only one sees 1. A closed session rolls the message back.
	var count int
	err = b.store.WithinTx(ctx, func(tx repository.Store) error {
		stored, err := persistMessage(ctx, tx, msg)
		if err != nil {
			return err
		}
		msg = stored
		count, err = tx.GuestSessions().RecordMessage(ctx, session.ID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return message.Message{}, err
	}

	b.dispatcher.DispatchMessage(ctx, msg)
	if count == 1 {
		b.dispatcher.DispatchToChannels(ctx, events.EventGuestChatStarted, []string{channels.StaffGuests}, events.GuestChatStartedPayload{
			SessionID:      session.ID,
			ConversationID: session.ConversationID,
			GuestName:      session.Name,
			Contact:        session.Contact,
			ContactType:    session.ContactType,
			FirstMessage:   content,
			StartedAt:      session.CreatedAt,
		})
	}
	b.dispatcher.Record(ctx, events.RecordMessage, msg.ConversationID.String(), msg)
	return msg, nil
}

// AssignStaff makes staffID a member of the guest conversation and points
// the session at them. Reassigning replaces the pointer; the previous
// staff member keeps their membership.
func (b *GuestBridge) AssignStaff(ctx context.Context, token string, staffID uuid.UUID) (GuestSessionInfo, error) {
	session, err := b.openSession(ctx, token)
	if err != nil {
		return GuestSessionInfo{}, err
	}
	return b.assign(ctx, session, staffID)
}

// AssignStaffToSession is AssignStaff for the staff desk, which only knows
// session ids from guest.chat.started.
func (b *GuestBridge) AssignStaffToSession(ctx context.Context, sessionID, staffID uuid.UUID) (GuestSessionInfo, error) {
	session, err := b.store.GuestSessions().GetByID(ctx, sessionID)
	if err != nil {
		return GuestSessionInfo{}, err
	}
	if !session.IsOpen() || b.expired(session) {
		return GuestSessionInfo{}, shopdesk_errors.ErrNotFound
	}
	return b.assign(ctx, session, staffID)
}

func (b *GuestBridge) assign(ctx context.Context, session guest.Session, staffID uuid.UUID) (GuestSessionInfo, error) {
	staff, err := b.store.Users().GetProfile(ctx, staffID)
	if err != nil {
		return GuestSessionInfo{}, err
	}
	if !staff.Staff {
		return GuestSessionInfo{}, shopdesk_errors.ErrForbidden
	}

	_, err = b.members.AddMember(ctx, session.ConversationID, staffID, conversation.RoleAdmin)
	if err != nil && !errors.Is(err, shopdesk_errors.ErrAlreadyExists) {
		return GuestSessionInfo{}, err
	}
	now := b.now()
	if err := b.store.GuestSessions().AssignStaff(ctx, session.ID, staffID, now); err != nil {
		return GuestSessionInfo{}, err
	}
	session.AssignedStaffID = &staffID
	if now.After(session.LastActivityAt) {
		session.LastActivityAt = now
	}

	metrics.GuestSessionsTotal.WithLabelValues("assigned").Inc()
	b.dispatcher.DispatchToChannels(ctx, events.EventGuestChatAssigned,
		[]string{channels.Conversation(session.ConversationID), channels.StaffGuests},
		events.GuestChatAssignedPayload{
			SessionID:      session.ID,
			ConversationID: session.ConversationID,
			Staff:          profilePayload(staff),
		})
	b.dispatcher.Record(ctx, events.RecordGuestSession, session.ID.String(), session)
	return b.info(session, &staff), nil
}

// GetMessages is the polling read path for guests without a socket.
func (b *GuestBridge) GetMessages(ctx context.Context, token string) ([]message.Message, error) {
	session, err := b.openSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return b.store.Messages().ListByConversation(ctx, session.ConversationID, nil, guestHistorySize)
}

func (b *GuestBridge) GetSessionInfo(ctx context.Context, token string) (GuestSessionInfo, error) {
	session, err := b.openSession(ctx, token)
	if err != nil {
		return GuestSessionInfo{}, err
	}
	staff, err := b.assignedStaff(ctx, session)
	if err != nil {
		return GuestSessionInfo{}, err
	}
	return b.info(session, staff), nil
}

// GetSessionStatus also answers for closed sessions, so a polling guest
// learns that the chat ended.
func (b *GuestBridge) GetSessionStatus(ctx context.Context, token string) (GuestSessionStatus, error) {
	session, err := b.sessionByToken(ctx, token)
	if err != nil {
		return GuestSessionStatus{}, err
	}
	status := session.Status
	if session.IsOpen() && b.expired(session) {
		status = guest.StatusClosed
	}
	staff, err := b.assignedStaff(ctx, session)
	if err != nil {
		return GuestSessionStatus{}, err
	}
	return GuestSessionStatus{Status: status, AssignedStaff: staff, LastActivityAt: session.LastActivityAt}, nil
}

// EndSession closes the session at the guest's request.
func (b *GuestBridge) EndSession(ctx context.Context, token string) error {
	session, err := b.openSession(ctx, token)
	if err != nil {
		return err
	}
	return b.close(ctx, session, CloseReasonEnded, time.Time{})
}

// CloseIdle closes open sessions idle longer than the configured timeout
// and returns how many it closed. A session that saw activity after it was
// listed is left open.
func (b *GuestBridge) CloseIdle(ctx context.Context) (int, error) {
	cutoff := b.now().Add(-b.cfg.IdleTimeout)
	closed := 0
	for {
		idle, err := b.store.GuestSessions().ListIdle(ctx, cutoff, guestSweepBatch)
		if err != nil {
			return closed, err
		}
		for _, s := range idle {
			err := b.close(ctx, s, CloseReasonIdle, cutoff)
			if errors.Is(err, shopdesk_errors.ErrNotFound) {
				continue
			}
			if err != nil {
				return closed, err
			}
			closed++
		}
		if len(idle) < guestSweepBatch {
			return closed, nil
		}
	}
}

// RunSweeper calls CloseIdle every interval until ctx is done.
func (b *GuestBridge) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.CloseIdle(ctx)
			if err != nil {
				b.logger.WithContext(ctx).Warn("guest sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				b.logger.Infof("closed %d idle guest sessions", n)
			}
		}
	}
}

func (b *GuestBridge) close(ctx context.Context, session guest.Session, reason string, idleBefore time.Time) error {
	at := b.now()
	if err := b.store.GuestSessions().Close(ctx, session.ID, at, idleBefore); err != nil {
		return fmt.Errorf("close guest session %s: %w", session.ID, err)
	}
	session.Status = guest.StatusClosed
	session.ClosedAt = &at
	metrics.GuestSessionsTotal.WithLabelValues("closed_" + reason).Inc()
	b.dispatcher.DispatchToChannels(ctx, events.EventGuestChatClosed,
		[]string{channels.Conversation(session.ConversationID), channels.StaffGuests},
		events.GuestChatClosedPayload{
			SessionID:      session.ID,
			ConversationID: session.ConversationID,
			Reason:         reason,
		})
	b.dispatcher.Record(ctx, events.RecordGuestSession, session.ID.String(), session)
	return nil
}

func (b *GuestBridge) sessionByToken(ctx context.Context, token string) (guest.Session, error) {
	if token == "" {
		return guest.Session{}, shopdesk_errors.ErrNotFound
	}
	return b.store.GuestSessions().GetByTokenHash(ctx, hashGuestToken(token))
}

// openSession resolves a token to a live session. Closed sessions and
// sessions past the idle timeout read as not found: the client must start
// over rather than retry.
func (b *GuestBridge) openSession(ctx context.Context, token string) (guest.Session, error) {
	session, err := b.sessionByToken(ctx, token)
	if err != nil {
		return guest.Session{}, err
	}
	if !session.IsOpen() || b.expired(session) {
		return guest.Session{}, shopdesk_errors.ErrNotFound
	}
	return session, nil
}

func (b *GuestBridge) expired(s guest.Session) bool {
	return b.cfg.IdleTimeout > 0 && b.now().Sub(s.LastActivityAt) > b.cfg.IdleTimeout
}

func (b *GuestBridge) assignedStaff(ctx context.Context, s guest.Session) (*user.Profile, error) {
	if s.AssignedStaffID == nil {
		return nil, nil
	}
	p, err := b.store.Users().GetProfile(ctx, *s.AssignedStaffID)
	if errors.Is(err, shopdesk_errors.ErrNotFound) {
		return &user.Profile{ID: *s.AssignedStaffID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *GuestBridge) info(s guest.Session, staff *user.Profile) GuestSessionInfo {
	return GuestSessionInfo{
		SessionID:      s.ID,
		ConversationID: s.ConversationID,
		Name:           s.Name,
		Contact:        s.Contact,
		ContactType:    s.ContactType,
		Status:         s.Status,
		AssignedStaff:  staff,
		MessageCount:   s.MessageCount,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
	}
}

func newGuestToken() (string, error) {
	buf := make([]byte, guestTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate guest token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashGuestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
