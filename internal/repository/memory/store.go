// Package memory holds in-process repositories. They back the
// STORAGE_DRIVER=memory development mode and the service tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/domain/guest"
	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/domain/social"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/repository"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

type memberKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

// Store keeps every table in maps guarded by one lock.
type Store struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]conversation.Conversation
	members       map[memberKey]conversation.Member
	messages      map[uuid.UUID]message.Message
	friendships   map[uuid.UUID]social.Friendship
	notifications map[uuid.UUID]social.Notification
	guests        map[uuid.UUID]guest.Session
	profiles      map[uuid.UUID]user.Profile
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		members:       make(map[memberKey]conversation.Member),
		messages:      make(map[uuid.UUID]message.Message),
		friendships:   make(map[uuid.UUID]social.Friendship),
		notifications: make(map[uuid.UUID]social.Notification),
		guests:        make(map[uuid.UUID]guest.Session),
		profiles:      make(map[uuid.UUID]user.Profile),
	}
}

// PutProfile seeds the profile table the account collaborator would own.
func (s *Store) PutProfile(p user.Profile) {
	s.mu.Lock()
	s.profiles[p.ID] = p
	s.mu.Unlock()
}

func (s *Store) Conversations() repository.ConversationRepository { return (*conversations)(s) }
func (s *Store) Messages() repository.MessageRepository           { return (*messages)(s) }
func (s *Store) Friendships() repository.FriendshipRepository     { return (*friendships)(s) }
func (s *Store) Notifications() repository.NotificationRepository { return (*notifications)(s) }
func (s *Store) GuestSessions() repository.GuestSessionRepository { return (*guests)(s) }
func (s *Store) Users() repository.UserRepository                 { return (*users)(s) }

// WithinTx runs fn against the store and, if fn fails, puts every table
// back the way it was when fn started. It is not isolated: other callers
// see fn's writes as they happen, and a rollback also drops whatever they
// wrote in the meantime.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type tables struct {
	conversations map[uuid.UUID]conversation.Conversation
	members       map[memberKey]conversation.Member
	messages      map[uuid.UUID]message.Message
	friendships   map[uuid.UUID]social.Friendship
	notifications map[uuid.UUID]social.Notification
	guests        map[uuid.UUID]guest.Session
}

func (s *Store) snapshot() tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tables{
		conversations: maps.Clone(s.conversations),
		members:       maps.Clone(s.members),
		messages:      maps.Clone(s.messages),
		friendships:   maps.Clone(s.friendships),
		notifications: maps.Clone(s.notifications),
		guests:        maps.Clone(s.guests),
	}
}

func (s *Store) restore(t tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = t.conversations
	s.members = t.members
	s.messages = t.messages
	s.friendships = t.friendships
	s.notifications = t.notifications
	s.guests = t.guests
}

func page(total, p, limit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if p <= 0 {
		p = 1
	}
	start := (p - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}

// --- conversations ---

type conversations Store

func (r *conversations) withMembers(c conversation.Conversation) conversation.Conversation {
	c.Members = nil
	for k, m := range r.members {
		if k.conversationID == c.ID {
			c.Members = append(c.Members, m)
		}
	}
	sort.Slice(c.Members, func(i, j int) bool { return c.Members[i].JoinedAt.Before(c.Members[j].JoinedAt) })
	return c
}

func (r *conversations) Create(ctx context.Context, c *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[c.ID]; ok {
		return shopdesk_errors.ErrAlreadyExists
	}
	for _, m := range c.Members {
		m.ConversationID = c.ID
		r.members[memberKey{c.ID, m.UserID}] = m
	}
	stored := *c
	stored.Members = nil
	r.conversations[c.ID] = stored
	return nil
}

func (r *conversations) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return conversation.Conversation{}, shopdesk_errors.ErrNotFound
	}
	return r.withMembers(c), nil
}

func (r *conversations) GetPrivateBetween(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.conversations {
		if c.Type != conversation.TypePrivate {
			continue
		}
		_, ok1 := r.members[memberKey{id, userID1}]
		_, ok2 := r.members[memberKey{id, userID2}]
		if ok1 && ok2 {
			return r.withMembers(c), nil
		}
	}
	return conversation.Conversation{}, shopdesk_errors.ErrNotFound
}

func (r *conversations) ListForUser(ctx context.Context, userID uuid.UUID, p, limit int) ([]conversation.Conversation, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []conversation.Conversation
	for k := range r.members {
		if k.userID == userID {
			all = append(all, r.withMembers(r.conversations[k.conversationID]))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	start, end := page(len(all), p, limit)
	return all[start:end], int64(len(all)), nil
}

func (r *conversations) SetLatestMessage(ctx context.Context, conversationID, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return shopdesk_errors.ErrNotFound
	}
	c.LatestMessageID = &messageID
	c.UpdatedAt = time.Now()
	r.conversations[conversationID] = c
	return nil
}

func (r *conversations) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return shopdesk_errors.ErrNotFound
	}
	delete(r.conversations, id)
	for k := range r.members {
		if k.conversationID == id {
			delete(r.members, k)
		}
	}
	return nil
}

func (r *conversations) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[memberKey{conversationID, userID}]
	return ok, nil
}

func (r *conversations) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberKey{conversationID, userID}]
	if !ok {
		return conversation.Member{}, shopdesk_errors.ErrNotFound
	}
	return m, nil
}

func (r *conversations) ListMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	return r.withMembers(c).MemberIDs(), nil
}

func (r *conversations) AddMember(ctx context.Context, m *conversation.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[m.ConversationID]; !ok {
		return shopdesk_errors.ErrNotFound
	}
	key := memberKey{m.ConversationID, m.UserID}
	if _, ok := r.members[key]; ok {
		return shopdesk_errors.ErrAlreadyExists
	}
	r.members[key] = *m
	return nil
}

func (r *conversations) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey{conversationID, userID}
	if _, ok := r.members[key]; !ok {
		return shopdesk_errors.ErrNotFound
	}
	delete(r.members, key)
	return nil
}

func (r *conversations) UpdateReadState(ctx context.Context, conversationID, userID uuid.UUID, state conversation.ReadState) error {
	if state.LastReadAt == nil && state.IsMuted == nil && state.IsPinned == nil {
		return shopdesk_errors.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey{conversationID, userID}
	m, ok := r.members[key]
	if !ok {
		return shopdesk_errors.ErrNotFound
	}
	if state.LastReadAt != nil {
		t := *state.LastReadAt
		m.LastReadAt = &t
	}
	if state.IsMuted != nil {
		m.IsMuted = *state.IsMuted
	}
	if state.IsPinned != nil {
		m.IsPinned = *state.IsPinned
	}
	r.members[key] = m
	return nil
}

func (r *conversations) LockConversation(ctx context.Context, conversationID uuid.UUID, fn func(repository.ConversationRepository) error) error {
	r.mu.RLock()
	_, ok := r.conversations[conversationID]
	r.mu.RUnlock()
	if !ok {
		return shopdesk_errors.ErrNotFound
	}
	return fn(r)
}

// --- messages ---

type messages Store

func (r *messages) resolve(m message.Message) message.Message {
	if m.ReplyToID != nil {
		if parent, ok := r.messages[*m.ReplyToID]; ok {
			parent.ReplyTo = nil
			m.ReplyTo = &parent
		}
	}
	return m
}

func (r *messages) Create(ctx context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; ok {
		return shopdesk_errors.ErrAlreadyExists
	}
	stored := *m
	stored.ReplyTo = nil
	r.messages[m.ID] = stored
	return nil
}

func (r *messages) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, shopdesk_errors.ErrNotFound
	}
	return r.resolve(m), nil
}

func (r *messages) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []message.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID || m.DeletedAt != nil {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, r.resolve(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *messages) Update(ctx context.Context, m message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.messages[m.ID]
	if !ok {
		return shopdesk_errors.ErrNotFound
	}
	existing.Content = m.Content
	existing.Metadata = m.Metadata
	existing.IsEdited = m.IsEdited
	existing.UpdatedAt = time.Now()
	r.messages[m.ID] = existing
	return nil
}

func (r *messages) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.DeletedAt != nil {
		return shopdesk_errors.ErrNotFound
	}
	m.DeletedAt = &at
	r.messages[id] = m
	return nil
}

// --- friendships ---

type friendships Store

func (r *friendships) Create(ctx context.Context, f *social.Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.friendships {
		if existing.Involves(f.RequesterID) && existing.Involves(f.AddresseeID) {
			return shopdesk_errors.ErrAlreadyExists
		}
	}
	r.friendships[f.ID] = *f
	return nil
}

func (r *friendships) GetByID(ctx context.Context, id uuid.UUID) (social.Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.friendships[id]
	if !ok {
		return social.Friendship{}, shopdesk_errors.ErrNotFound
	}
	return f, nil
}

func (r *friendships) GetBetween(ctx context.Context, userID1, userID2 uuid.UUID) (social.Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.friendships {
		if f.Involves(userID1) && f.Involves(userID2) {
			return f, nil
		}
	}
	return social.Friendship{}, shopdesk_errors.ErrNotFound
}

func (r *friendships) Update(ctx context.Context, f social.Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.friendships[f.ID]; !ok {
		return shopdesk_errors.ErrNotFound
	}
	f.UpdatedAt = time.Now()
	r.friendships[f.ID] = f
	return nil
}

func (r *friendships) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.friendships[id]; !ok {
		return shopdesk_errors.ErrNotFound
	}
	delete(r.friendships, id)
	return nil
}

func (r *friendships) ListForUser(ctx context.Context, userID uuid.UUID, status string) ([]social.Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []social.Friendship
	for _, f := range r.friendships {
		if f.Involves(userID) && (status == "" || f.Status == status) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// --- notifications ---

type notifications Store

func (r *notifications) Create(ctx context.Context, n *social.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.ID] = *n
	return nil
}

func (r *notifications) ListForUser(ctx context.Context, userID uuid.UUID, p, limit int) ([]social.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []social.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start, end := page(len(all), p, limit)
	return all[start:end], int64(len(all)), nil
}

func (r *notifications) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *notifications) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return shopdesk_errors.ErrNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
		r.notifications[id] = n
	}
	return nil
}

func (r *notifications) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			r.notifications[id] = n
		}
	}
	return nil
}

func (r *notifications) Delete(ctx context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return shopdesk_errors.ErrNotFound
	}
	delete(r.notifications, id)
	return nil
}

// --- guest sessions ---

type guests Store

func (r *guests) Create(ctx context.Context, s *guest.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.guests {
		if existing.TokenHash == s.TokenHash {
			return shopdesk_errors.ErrAlreadyExists
		}
	}
	r.guests[s.ID] = *s
	return nil
}

func (r *guests) GetByID(ctx context.Context, id uuid.UUID) (guest.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.guests[id]
	if !ok {
		return guest.Session{}, shopdesk_errors.ErrNotFound
	}
	return s, nil
}

func (r *guests) GetByTokenHash(ctx context.Context, hash string) (guest.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.guests {
		if s.TokenHash == hash {
			return s, nil
		}
	}
	return guest.Session{}, shopdesk_errors.ErrNotFound
}

func (r *guests) RecordMessage(ctx context.Context, id uuid.UUID, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.guests[id]
	if !ok || s.Status != guest.StatusOpen {
		return 0, shopdesk_errors.ErrNotFound
	}
	s.MessageCount++
	if at.After(s.LastActivityAt) {
		s.LastActivityAt = at
	}
	r.guests[id] = s
	return s.MessageCount, nil
}

func (r *guests) TouchByConversation(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.guests {
		if s.ConversationID == conversationID && s.Status == guest.StatusOpen && at.After(s.LastActivityAt) {
			s.LastActivityAt = at
			r.guests[id] = s
		}
	}
	return nil
}

func (r *guests) AssignStaff(ctx context.Context, id, staffID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.guests[id]
	if !ok || s.Status != guest.StatusOpen {
		return shopdesk_errors.ErrNotFound
	}
	s.AssignedStaffID = &staffID
	if at.After(s.LastActivityAt) {
		s.LastActivityAt = at
	}
	r.guests[id] = s
	return nil
}

func (r *guests) Close(ctx context.Context, id uuid.UUID, at, idleBefore time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.guests[id]
	if !ok || s.Status != guest.StatusOpen {
		return shopdesk_errors.ErrNotFound
	}
	if !idleBefore.IsZero() && !s.LastActivityAt.Before(idleBefore) {
		return shopdesk_errors.ErrNotFound
	}
	s.Status = guest.StatusClosed
	s.ClosedAt = &at
	r.guests[id] = s
	return nil
}

func (r *guests) ListIdle(ctx context.Context, lastActivityBefore time.Time, limit int) ([]guest.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []guest.Session
	for _, s := range r.guests {
		if s.Status == guest.StatusOpen && s.LastActivityAt.Before(lastActivityBefore) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Before(out[j].LastActivityAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- users ---

type users Store

func (r *users) GetProfile(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return user.Profile{}, shopdesk_errors.ErrNotFound
	}
	return p, nil
}

func (r *users) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID]user.Profile, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
