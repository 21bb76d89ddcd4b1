package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fitwellhq/supportchat/internal/catalog"
	"github.com/fitwellhq/supportchat/internal/chatstore"
	"github.com/fitwellhq/supportchat/internal/media"
	"github.com/fitwellhq/supportchat/internal/models"
	"github.com/fitwellhq/supportchat/internal/upload"
)

type fakeBlobStore struct {
	ref string
	err error
}

func (f *fakeBlobStore) Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

type fakeDirectory struct {
	users []models.User
}

func (f *fakeDirectory) Users(ctx context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeDirectory) UserByID(ctx context.Context, id string) (*models.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, nil
}

func newTestController(t *testing.T, blobs *fakeBlobStore, users []models.User) (*Controller, chatstore.Store) {
	t.Helper()
	store := chatstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	cat := catalog.New([]models.Command{
		{ID: "1", Title: "greeting", Kind: models.CommandText, Body: "Hello!"},
		{ID: "2", Title: "welcome", Kind: models.CommandAudio, AudioRef: "uploads/welcome.mp3"},
	})
	uploader := upload.NewUploader(blobs, upload.NewResolver("http://localhost:3002/api/v1"))
	ctrl := NewController(store, uploader, cat, &fakeDirectory{users: users}, "admin", "Support", zerolog.Nop())
	t.Cleanup(ctrl.Close)
	return ctrl, store
}

func readCloser(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func testOperator() models.Operator {
	return models.Operator{ID: "op1", Name: "Op", Role: "super"}
}

func TestSendText(t *testing.T) {
	ctrl, store := newTestController(t, &fakeBlobStore{}, []models.User{
		{ID: "u1", Name: "Dana", Area: "north"},
	})
	sess := ctrl.Session(testOperator())

	if _, err := sess.Select(context.Background(), "u1_admin"); err != nil {
		t.Fatal(err)
	}

	msg, err := sess.SendText(context.Background(), "  hello  ")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "hello" {
		t.Fatalf("text not trimmed: %q", msg.Text)
	}
	if msg.SenderID != "admin" || msg.SenderName != "Support" {
		t.Fatalf("wrong sender identity: %+v", msg)
	}
	if msg.Status != models.StatusSent {
		t.Fatalf("acknowledged send must be sent, got %q", msg.Status)
	}
	if len(sess.Pending()) != 0 {
		t.Fatal("pending set must be empty after ack")
	}

	msgs, err := store.Messages(context.Background(), "u1_admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hello" {
		t.Fatalf("unexpected feed: %+v", msgs)
	}

	conversations, err := store.Conversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(conversations))
	}
	conv := conversations[0]
	if conv.UserID != "u1" || conv.UserName != "Dana" || conv.Area != "north" {
		t.Fatalf("summary not enriched from directory: %+v", conv)
	}
	if conv.LastMessage != "hello" || conv.LastKind != models.KindText {
		t.Fatalf("summary preview mismatch: %+v", conv)
	}
}

func TestSendTextValidation(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeBlobStore{}, nil)
	sess := ctrl.Session(testOperator())

	if _, err := sess.SendText(context.Background(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := sess.SendText(context.Background(), "hi"); !errors.Is(err, ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
}

func TestSelectTearsDownPreviousSubscription(t *testing.T) {
	ctrl, store := newTestController(t, &fakeBlobStore{}, nil)
	sess := ctrl.Session(testOperator())

	subA, err := sess.Select(context.Background(), "a_admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Select(context.Background(), "b_admin"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-subA.Done():
	default:
		t.Fatal("previous subscription must be closed on select")
	}

	if err := store.Append(context.Background(), &models.Message{
		ConversationID: "a_admin", SenderID: "a", Kind: models.KindText, Text: "stale",
	}); err != nil {
		t.Fatal(err)
	}
	if sess.Conversation() != "b_admin" {
		t.Fatalf("active conversation = %q", sess.Conversation())
	}
}

func TestRecordAndSendVoice(t *testing.T) {
	blobs := &fakeBlobStore{ref: "uploads/voice_x.webm"}
	ctrl, store := newTestController(t, blobs, nil)
	sess := ctrl.Session(testOperator())

	if _, err := sess.Select(context.Background(), "u1_admin"); err != nil {
		t.Fatal(err)
	}

	dev := media.NewReaderDevice(readCloser("opus-bytes"), "audio/webm;codecs=opus")
	if err := sess.StartRecording(context.Background(), dev); err != nil {
		t.Fatal(err)
	}
	if state, _ := sess.ComposeState(); state != StateRecording {
		t.Fatalf("expected recording state, got %v", state)
	}

	blob, err := sess.StopRecording()
	if err != nil {
		t.Fatal(err)
	}
	if string(blob.Data) != "opus-bytes" {
		t.Fatalf("unexpected capture %q", blob.Data)
	}
	if state, _ := sess.ComposeState(); state != StateVoiceReady {
		t.Fatalf("expected voice-ready state, got %v", state)
	}

	msg, err := sess.SendVoice(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != models.KindVoice {
		t.Fatalf("expected voice message, got %+v", msg)
	}
	if msg.AudioURL != "http://localhost:3002/api/v1/uploads/voice_x.webm" {
		t.Fatalf("unresolved audio url %q", msg.AudioURL)
	}

	msgs, err := store.Messages(context.Background(), "u1_admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].AudioURL == "" {
		t.Fatalf("voice message not persisted: %+v", msgs)
	}
	if state, _ := sess.ComposeState(); state != StateIdle {
		t.Fatalf("compose must reset after send, got %v", state)
	}
}

func TestSendVoiceKeepsBlobOnUploadFailure(t *testing.T) {
	blobs := &fakeBlobStore{err: errors.New("storage down")}
	ctrl, store := newTestController(t, blobs, nil)
	sess := ctrl.Session(testOperator())

	if _, err := sess.Select(context.Background(), "u1_admin"); err != nil {
		t.Fatal(err)
	}
	dev := media.NewReaderDevice(readCloser("take-one"), "audio/webm")
	if err := sess.StartRecording(context.Background(), dev); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.StopRecording(); err != nil {
		t.Fatal(err)
	}

	if _, err := sess.SendVoice(context.Background()); err == nil {
		t.Fatal("expected upload failure")
	}
	if state, _ := sess.ComposeState(); state != StateVoiceReady {
		t.Fatalf("failed upload must keep voice-ready, got %v", state)
	}

	// the recording survives the failure, so retrying needs no re-capture
	blobs.err = nil
	blobs.ref = "uploads/voice_retry.webm"
	if _, err := sess.SendVoice(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	msgs, err := store.Messages(context.Background(), "u1_admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after retry, got %d", len(msgs))
	}
}

func TestSendVoiceWithoutRecording(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeBlobStore{}, nil)
	sess := ctrl.Session(testOperator())

	if _, err := sess.Select(context.Background(), "u1_admin"); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.SendVoice(context.Background()); !errors.Is(err, ErrNoRecording) {
		t.Fatalf("expected ErrNoRecording, got %v", err)
	}
}

func TestChooseStoredAudioSendsImmediately(t *testing.T) {
	ctrl, store := newTestController(t, &fakeBlobStore{}, nil)
	sess := ctrl.Session(testOperator())

	if _, err := sess.Select(context.Background(), "u1_admin"); err != nil {
		t.Fatal(err)
	}
	sess.Input("/wel")

	choice, msg, err := sess.Choose(context.Background(), "2")
	if err != nil {
		t.Fatal(err)
	}
	if choice.Action != ChoiceSendAudio {
		t.Fatalf("expected send_audio, got %v", choice.Action)
	}
	if msg == nil || msg.AudioURL != "http://localhost:3002/api/v1/uploads/welcome.mp3" {
		t.Fatalf("unexpected sent message %+v", msg)
	}

	msgs, err := store.Messages(context.Background(), "u1_admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if state, _ := sess.ComposeState(); state != StateIdle {
		t.Fatalf("compose must reset after template send, got %v", state)
	}
}

// gatedStore holds Append until released, so the optimistic sending
// state stays observable.
type gatedStore struct {
	chatstore.Store
	gate chan struct{}
}

func (g *gatedStore) Append(ctx context.Context, msg *models.Message) error {
	<-g.gate
	return g.Store.Append(ctx, msg)
}

func TestPendingVisibleWhileSending(t *testing.T) {
	mem := chatstore.NewMemoryStore()
	defer mem.Close()
	store := &gatedStore{Store: mem, gate: make(chan struct{})}

	uploader := upload.NewUploader(&fakeBlobStore{}, upload.NewResolver("http://localhost:3002/api/v1"))
	ctrl := NewController(store, uploader, catalog.New(nil), &fakeDirectory{}, "admin", "Support", zerolog.Nop())
	defer ctrl.Close()

	sess := ctrl.Session(testOperator())
	if _, err := sess.Select(context.Background(), "u1_admin"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := sess.SendText(context.Background(), "hello")
		done <- err
	}()

	deadline := time.After(time.Second)
	for len(sess.Pending()) == 0 {
		select {
		case <-deadline:
			t.Fatal("optimistic message never appeared")
		case <-time.After(5 * time.Millisecond):
		}
	}

	pending := sess.Pending()
	if pending[0].Status != models.StatusSending {
		t.Fatalf("in-flight message status = %q, want sending", pending[0].Status)
	}
	if pending[0].Text != "hello" {
		t.Fatalf("unexpected pending message %+v", pending[0])
	}

	// a feed snapshot surfaces the sending message before the ack
	merged := sess.MergePending(nil)
	if len(merged) != 1 || merged[0].Status != models.StatusSending {
		t.Fatalf("snapshot must carry the sending message, got %+v", merged)
	}

	close(store.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(sess.Pending()) != 0 {
		t.Fatal("pending must clear after the ack")
	}

	// after the ack, the store copy wins over any stale pending twin
	msgs, err := mem.Messages(context.Background(), "u1_admin")
	if err != nil {
		t.Fatal(err)
	}
	merged = sess.MergePending(msgs)
	if len(merged) != 1 || merged[0].Status != models.StatusSent {
		t.Fatalf("acknowledged snapshot mismatch: %+v", merged)
	}
}

func TestSessionReusePerOperator(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeBlobStore{}, nil)

	a := ctrl.Session(models.Operator{ID: "op1"})
	b := ctrl.Session(models.Operator{ID: "op1"})
	other := ctrl.Session(models.Operator{ID: "op2"})

	if a != b {
		t.Fatal("same operator must get the same session")
	}
	if a == other {
		t.Fatal("different operators must get different sessions")
	}
}
