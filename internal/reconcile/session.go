package reconcile

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"shopdesk-realtime/internal/events"

	"github.com/google/uuid"
)

// Entry is one message in a conversation timeline. Pending entries are
// optimistic local sends keyed by a client-generated id until confirmed.
type Entry struct {
	Key     string
	Message events.MessagePayload
	Pending bool
}

// Session is the state of one signed-in client: the dedup cache plus a
// timeline per conversation. It is created at sign-in and torn down with
// Close at sign-out.
type Session struct {
	mu        sync.Mutex
	seen      *DedupCache
	timelines map[uuid.UUID][]Entry
	closed    bool
	now       func() time.Time
}

func NewSession(seen *DedupCache) *Session {
	if seen == nil {
		seen = NewDedupCache(DefaultCapacity, DefaultTTL)
	}
	return &Session{
		seen:      seen,
		timelines: make(map[uuid.UUID][]Entry),
		now:       time.Now,
	}
}

// ApplyPush merges one pushed envelope and reports whether it changed
// state. Duplicates, unknown events and undecodable payloads are ignored.
func (s *Session) ApplyPush(env events.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || env.ID == "" || s.seen.CheckAndAdd(env.ID) {
		return false
	}

	switch env.Event {
	case events.EventMessageSent, events.EventMessageUpdated:
		var msg events.MessagePayload
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return false
		}
		// The poll path keys messages by their id; mark it so a later
		// poll of the same message is skipped.
		s.seen.Add(msg.ID.String())
		return s.upsert(msg)
	case events.EventMessageDeleted:
		var del events.MessageDeletedPayload
		if err := json.Unmarshal(env.Data, &del); err != nil {
			return false
		}
		return s.removeKey(del.ConversationID, del.ID.String())
	}
	return true
}

// ApplyPoll merges messages fetched by polling and returns how many were
// new.
func (s *Session) ApplyPoll(msgs []events.MessagePayload) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	applied := 0
	for _, msg := range msgs {
		if s.seen.CheckAndAdd(msg.ID.String()) {
			continue
		}
		if s.upsert(msg) {
			applied++
		}
	}
	return applied
}

// AddOptimistic shows a local send before the server confirms it.
func (s *Session) AddOptimistic(tempID string, msg events.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.timelines[msg.ConversationID] = append(s.timelines[msg.ConversationID], Entry{Key: tempID, Message: msg, Pending: true})
}

// Confirm swaps the optimistic entry for the stored message and marks the
// message seen, so its push echo is not applied a second time.
func (s *Session) Confirm(tempID string, msg events.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.removeKey(msg.ConversationID, tempID)
	if !s.seen.CheckAndAdd(msg.ID.String()) {
		s.upsert(msg)
	}
}

// Revert drops an optimistic entry after the send failed.
func (s *Session) Revert(conversationID uuid.UUID, tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeKey(conversationID, tempID)
}

// Timeline returns a copy of a conversation's entries: confirmed messages
// by creation time, then pending sends.
func (s *Session) Timeline(conversationID uuid.UUID) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.timelines[conversationID]))
	copy(out, s.timelines[conversationID])
	return out
}

// Close forgets everything. Later calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.seen.Clear()
	s.timelines = make(map[uuid.UUID][]Entry)
}

func (s *Session) upsert(msg events.MessagePayload) bool {
	key := msg.ID.String()
	timeline := s.timelines[msg.ConversationID]
	for i := range timeline {
		if timeline[i].Key == key {
			timeline[i].Message = msg
			return true
		}
	}
	timeline = append(timeline, Entry{Key: key, Message: msg})
	sort.SliceStable(timeline, func(i, j int) bool {
		a, b := timeline[i], timeline[j]
		if a.Pending != b.Pending {
			return !a.Pending
		}
		if !a.Message.CreatedAt.Equal(b.Message.CreatedAt) {
			return a.Message.CreatedAt.Before(b.Message.CreatedAt)
		}
		return a.Key < b.Key
	})
	s.timelines[msg.ConversationID] = timeline
	return true
}

func (s *Session) removeKey(conversationID uuid.UUID, key string) bool {
	timeline := s.timelines[conversationID]
	for i := range timeline {
		if timeline[i].Key == key {
			s.timelines[conversationID] = append(timeline[:i], timeline[i+1:]...)
			return true
		}
	}
	return false
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
