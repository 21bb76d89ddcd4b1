// Package chatstore bridges the session layer to the realtime
// per-conversation message feed.
package chatstore

import (
	"context"
	"sync"

	"github.com/fitwellhq/supportchat/internal/models"
)

// Store is the realtime feed interface. RedisStore implements it for
// production; MemoryStore serves development and tests.
type Store interface {
	// Connection management
	Close() error
	Ping(ctx context.Context) error

	// Append persists a message into its conversation's feed. ID,
	// timestamp and delivery status are filled in if unset; the
	// message is only marked sent once the write is acknowledged.
	Append(ctx context.Context, msg *models.Message) error

	// Messages returns the conversation's full feed ordered by
	// creation timestamp ascending.
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)

	// Subscribe opens a standing subscription on the conversation.
	// Each change redelivers the full ordered snapshot.
	Subscribe(ctx context.Context, conversationID string) (*Subscription, error)

	// TouchSummary updates the conversation's denormalized
	// last-message summary and timestamp.
	TouchSummary(ctx context.Context, conv models.Conversation) error

	// Conversations lists all conversation summaries.
	Conversations(ctx context.Context) ([]models.Conversation, error)
}

// Subscription is a live, ordered, restartable message feed for one
// conversation. Snapshots are push-based and latest-wins: a slow
// consumer observes the newest state, not every intermediate one.
// After Close no further snapshots or errors are delivered.
type Subscription struct {
	snapshots chan []models.Message
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newSubscription(onClose func()) *Subscription {
	return &Subscription{
		snapshots: make(chan []models.Message, 1),
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
		onClose:   onClose,
	}
}

// Snapshots returns the snapshot delivery channel.
func (s *Subscription) Snapshots() <-chan []models.Message {
	return s.snapshots
}

// Errors returns the channel carrying the terminal subscription error,
// distinct from an empty conversation.
func (s *Subscription) Errors() <-chan error {
	return s.errs
}

// Done is closed when the subscription has been torn down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close tears the subscription down. It is safe to call repeatedly.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// deliver pushes a snapshot, replacing any undrained one.
func (s *Subscription) deliver(msgs []models.Message) {
	for {
		select {
		case <-s.done:
			return
		case s.snapshots <- msgs:
			return
		default:
		}
		// drop the stale snapshot and retry
		select {
		case <-s.snapshots:
		default:
		}
	}
}

// fail surfaces a terminal error, once.
func (s *Subscription) fail(err error) {
	select {
	case <-s.done:
	case s.errs <- err:
	default:
	}
}
