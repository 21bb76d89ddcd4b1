package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fitwellhq/supportchat/internal/metrics"
	"github.com/fitwellhq/supportchat/internal/models"
)

// reconnectDelay is the pause before the single bounded reconnect
// attempt on a feed error.
const reconnectDelay = 2 * time.Second

// RedisStore implements Store on Redis: messages live in a sorted set
// scored by creation timestamp, summaries in a hash, and change
// notification rides pub/sub.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Redis client for middleware that
// shares the connection (rate limiting).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// messagesKey returns the key for a conversation's message sorted set.
func messagesKey(conversationID string) string {
	return fmt.Sprintf("conv:%s:messages", conversationID)
}

// summaryKey returns the key for a conversation's summary hash.
func summaryKey(conversationID string) string {
	return fmt.Sprintf("conv:%s:summary", conversationID)
}

// eventsChannel returns the pub/sub channel for a conversation.
func eventsChannel(conversationID string) string {
	return fmt.Sprintf("conv:%s:events", conversationID)
}

// conversationsKey indexes all known conversation ids.
const conversationsKey = "conversations"

// Append stores a message and publishes a change event. The sent
// status is written with the message itself, so observing it in the
// feed is the delivery acknowledgment.
func (s *RedisStore) Append(ctx context.Context, msg *models.Message) error {
	if msg.ConversationID == "" {
		return errors.New("message has no conversation id")
	}

	// Generate ULID if not set: time-ordered with a random suffix
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

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.client.ZAdd(ctx, messagesKey(msg.ConversationID), redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	// Change notification is best-effort: subscribers reload the
	// snapshot on receipt, so a lost event only delays redelivery.
	_ = s.client.Publish(ctx, eventsChannel(msg.ConversationID), msg.ID).Err()

	return nil
}

// Messages retrieves the conversation feed ordered by timestamp ascending.
func (s *RedisStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	start := time.Now()
	results, err := s.client.ZRange(ctx, messagesKey(conversationID), 0, -1).Result()
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Subscribe opens a pub/sub driven subscription. The current snapshot
// is delivered immediately; every change event triggers a reload. On a
// feed error one delayed reconnect is attempted before the error is
// surfaced and the subscription closed.
func (s *RedisStore) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	pubsub := s.client.Subscribe(ctx, eventsChannel(conversationID))

	// Confirm the subscription before handing it out, so teardown
	// ordering on conversation switches is deterministic.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := newSubscription(func() {
		pubsub.Close()
		metrics.ActiveSubscriptions.Dec()
	})
	metrics.ActiveSubscriptions.Inc()

	initial, err := s.Messages(ctx, conversationID)
	if err != nil {
		sub.Close()
		return nil, err
	}
	sub.deliver(initial)

	go s.pump(ctx, conversationID, pubsub, sub)

	return sub, nil
}

// pump reloads and redelivers the snapshot on every change event.
func (s *RedisStore) pump(ctx context.Context, conversationID string, pubsub *redis.PubSub, sub *Subscription) {
	retried := false
	for {
		_, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				sub.Close()
				return
			default:
			}

			if !retried {
				// Single bounded reconnect; ReceiveMessage picks the
				// subscription back up once the connection recovers.
				retried = true
				metrics.SubscriptionReconnects.Inc()
				select {
				case <-time.After(reconnectDelay):
					continue
				case <-sub.done:
					return
				}
			}

			sub.fail(err)
			sub.Close()
			return
		}
		retried = false

		snapshot, err := s.Messages(ctx, conversationID)
		if err != nil {
			sub.fail(err)
			sub.Close()
			return
		}
		sub.deliver(snapshot)
	}
}

// TouchSummary updates the conversation's denormalized summary fields.
func (s *RedisStore) TouchSummary(ctx context.Context, conv models.Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation has no id")
	}

	start := time.Now()
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, summaryKey(conv.ID), map[string]any{
		"user_id":      conv.UserID,
		"user_name":    conv.UserName,
		"area":         conv.Area,
		"last_message": conv.LastMessage,
		"last_kind":    string(conv.LastKind),
		"updated_at":   strconv.FormatInt(conv.UpdatedAt, 10),
	})
	pipe.SAdd(ctx, conversationsKey, conv.ID)
	_, err := pipe.Exec(ctx)
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	return err
}

// Conversations lists all conversation summaries.
func (s *RedisStore) Conversations(ctx context.Context) ([]models.Conversation, error) {
	ids, err := s.client.SMembers(ctx, conversationsKey).Result()
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, summaryKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}

		updatedAt, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
		conversations = append(conversations, models.Conversation{
			ID:          id,
			UserID:      fields["user_id"],
			UserName:    fields["user_name"],
			Area:        fields["area"],
			LastMessage: fields["last_message"],
			LastKind:    models.MessageKind(fields["last_kind"]),
			UpdatedAt:   updatedAt,
		})
	}

	return conversations, nil
}
