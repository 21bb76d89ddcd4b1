package chatstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fitwellhq/supportchat/internal/models"
)

// MemoryStore implements Store in process memory. It backs development
// mode (no REDIS_URL) and tests; subscription semantics match the
// Redis store.
type MemoryStore struct {
	mu        sync.Mutex
	messages  map[string][]models.Message
	summaries map[string]models.Conversation
	subs      map[string]map[*Subscription]struct{}
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:  make(map[string][]models.Message),
		summaries: make(map[string]models.Conversation),
		subs:      make(map[string]map[*Subscription]struct{}),
	}
}

// Close tears down all subscriptions.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	subs := make([]*Subscription, 0)
	for _, set := range s.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	s.closed = true
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

// Ping reports store health.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store closed")
	}
	return nil
}

// Append stores a message and notifies subscribers with a fresh
// snapshot.
func (s *MemoryStore) Append(ctx context.Context, msg *models.Message) error {
	if msg.ConversationID == "" {
		return errors.New("message has no conversation id")
	}

	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	msg.Status = models.StatusSent

	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	feed := append(s.messages[msg.ConversationID], *msg)
	// keep ascending timestamp order; stable so same-millisecond
	// messages keep append order
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp < feed[j].Timestamp
	})
	s.messages[msg.ConversationID] = feed

	snapshot := snapshotCopy(feed)
	subs := make([]*Subscription, 0, len(s.subs[msg.ConversationID]))
	for sub := range s.subs[msg.ConversationID] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(snapshot)
	}
	return nil
}

// Messages returns the conversation feed ordered by timestamp ascending.
func (s *MemoryStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotCopy(s.messages[conversationID]), nil
}

// Subscribe registers a subscription and delivers the current snapshot.
func (s *MemoryStore) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("store closed")
	}

	var sub *Subscription
	sub = newSubscription(func() {
		s.mu.Lock()
		delete(s.subs[conversationID], sub)
		s.mu.Unlock()
	})

	if s.subs[conversationID] == nil {
		s.subs[conversationID] = make(map[*Subscription]struct{})
	}
	s.subs[conversationID][sub] = struct{}{}
	snapshot := snapshotCopy(s.messages[conversationID])
	s.mu.Unlock()

	sub.deliver(snapshot)
	return sub, nil
}

// TouchSummary updates the conversation's denormalized summary fields.
func (s *MemoryStore) TouchSummary(ctx context.Context, conv models.Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[conv.ID] = conv
	return nil
}

// Conversations lists all conversation summaries.
func (s *MemoryStore) Conversations(ctx context.Context) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations := make([]models.Conversation, 0, len(s.summaries))
	for _, conv := range s.summaries {
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func snapshotCopy(feed []models.Message) []models.Message {
	out := make([]models.Message, len(feed))
	copy(out, feed)
	return out
}
