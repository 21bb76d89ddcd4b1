package chatstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fitwellhq/supportchat/internal/metrics"
	"github.com/fitwellhq/supportchat/internal/models"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisAppendAndMessages(t *testing.T) {
	store, _ := newTestRedisStore(t)

	for _, ts := range []int64{2000, 1000, 3000} {
		appendMessage(t, store, &models.Message{
			ConversationID: "u1_admin",
			SenderID:       "admin",
			Kind:           models.KindText,
			Text:           "m",
			Timestamp:      ts,
		})
	}

	msgs, err := store.Messages(context.Background(), "u1_admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp < msgs[i-1].Timestamp {
			t.Fatalf("feed out of order at %d", i)
		}
	}
	if msgs[0].Status != models.StatusSent {
		t.Fatalf("persisted message must be sent, got %q", msgs[0].Status)
	}
}

func TestRedisSubscribeDeliversOnAppend(t *testing.T) {
	store, _ := newTestRedisStore(t)

	sub, err := store.Subscribe(context.Background(), "u2_admin")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	waitSnapshot(t, sub)

	appendMessage(t, store, &models.Message{
		ConversationID: "u2_admin",
		SenderID:       "u2",
		Kind:           models.KindText,
		Text:           "hello",
	})

	snapshot := waitSnapshot(t, sub)
	if len(snapshot) != 1 || snapshot[0].Text != "hello" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestRedisSummaries(t *testing.T) {
	store, _ := newTestRedisStore(t)

	conv := models.Conversation{
		ID:          "u3_admin",
		UserID:      "u3",
		UserName:    "Dana",
		Area:        "north",
		LastMessage: "bye",
		LastKind:    models.KindText,
		UpdatedAt:   4200,
	}
	if err := store.TouchSummary(context.Background(), conv); err != nil {
		t.Fatal(err)
	}

	conversations, err := store.Conversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(conversations))
	}
	if conversations[0] != conv {
		t.Fatalf("summary round-trip mismatch: %+v", conversations[0])
	}
}

func TestRedisFeedErrorAfterBoundedReconnect(t *testing.T) {
	store, mr := newTestRedisStore(t)

	sub, err := store.Subscribe(context.Background(), "u4_admin")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	waitSnapshot(t, sub)

	before := testutil.ToFloat64(metrics.SubscriptionReconnects)

	// kill the server: the pump retries once, then surfaces the error
	mr.Close()

	select {
	case err := <-sub.Errors():
		if err == nil {
			t.Fatal("expected a terminal feed error")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the terminal feed error")
	}

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription must close after the terminal error")
	}

	if delta := testutil.ToFloat64(metrics.SubscriptionReconnects) - before; delta != 1 {
		t.Fatalf("expected exactly one reconnect attempt, got %v", delta)
	}
}
