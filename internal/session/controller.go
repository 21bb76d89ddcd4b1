// Package session implements the chat session controller: per-operator
// sessions that own the active conversation subscription, drive the
// compose state machine, and run the send pipelines.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/fitwellhq/supportchat/internal/catalog"
	"github.com/fitwellhq/supportchat/internal/chatstore"
	"github.com/fitwellhq/supportchat/internal/media"
	"github.com/fitwellhq/supportchat/internal/metrics"
	"github.com/fitwellhq/supportchat/internal/models"
	"github.com/fitwellhq/supportchat/internal/upload"
)

// Per-action in-flight guard names. One flag per logical action, so a
// rapid double click cannot double-submit any of them.
const (
	actionText   = "text"
	actionVoice  = "voice"
	actionRecord = "record"
)

var (
	// ErrActionInFlight rejects a re-entrant operation while the same
	// action is still awaiting the backend.
	ErrActionInFlight = errors.New("action already in flight")

	ErrNoConversation = errors.New("no conversation selected")
	ErrNoRecording    = errors.New("no finished recording to send")
	ErrEmptyText      = errors.New("message text is empty")
)

// Controller wires the session layer's collaborators together and
// hands out per-operator sessions. The support identity is injected,
// not hardcoded.
type Controller struct {
	store     chatstore.Store
	uploader  *upload.Uploader
	catalog   *catalog.Catalog
	users     UserSource
	adminID   string
	adminName string
	logger    zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewController creates a controller sending as the given support
// identity.
func NewController(store chatstore.Store, uploader *upload.Uploader, cat *catalog.Catalog, users UserSource, adminID, adminName string, logger zerolog.Logger) *Controller {
	return &Controller{
		store:     store,
		uploader:  uploader,
		catalog:   cat,
		users:     users,
		adminID:   adminID,
		adminName: adminName,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// ConversationFor derives the thread id for a platform user under the
// controller's support identity.
func (c *Controller) ConversationFor(userID string) string {
	return models.ConversationID(userID, c.adminID)
}

// Session returns the operator's session, creating it on first use.
func (c *Controller) Session(op models.Operator) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[op.ID]; ok {
		return s
	}
	s := &Session{
		ctrl:     c,
		operator: op,
		compose:  NewCompose(c.catalog),
		inflight: make(map[string]bool),
		pending:  make(map[string]models.Message),
	}
	c.sessions[op.ID] = s
	return s
}

// Close tears down all sessions.
func (c *Controller) Close() {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Session is one operator's console state: the active conversation
// subscription, compose box, recorder, and in-flight guards.
type Session struct {
	ctrl     *Controller
	operator models.Operator

	mu             sync.Mutex
	conversationID string
	sub            *chatstore.Subscription
	compose        *Compose
	recorder       *media.Recorder
	blob           *media.Blob
	inflight       map[string]bool
	pending        map[string]models.Message
}

// begin acquires the in-flight guard for an action.
func (s *Session) begin(action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[action] {
		return fmt.Errorf("%w: %s", ErrActionInFlight, action)
	}
	s.inflight[action] = true
	return nil
}

func (s *Session) end(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, action)
}

// Select makes the conversation active. The previous subscription is
// torn down first so a stale listener can never double-deliver, the
// compose box and any recording are reset, and a fresh subscription is
// opened on the new conversation.
func (s *Session) Select(ctx context.Context, conversationID string) (*chatstore.Subscription, error) {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	if s.recorder != nil {
		s.recorder.Close()
		s.recorder = nil
	}
	s.blob = nil
	s.compose.Reset()
	s.conversationID = conversationID
	s.mu.Unlock()

	sub, err := s.ctrl.store.Subscribe(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// a concurrent Select may have won; hand the feed over only if we
	// are still the active conversation
	if s.conversationID != conversationID {
		s.mu.Unlock()
		sub.Close()
		return nil, fmt.Errorf("conversation switched during select")
	}
	s.sub = sub
	s.mu.Unlock()

	return sub, nil
}

// Conversation returns the active conversation id.
func (s *Session) Conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Input feeds the operator's compose-box text through the state
// machine and returns command suggestions when in suggesting state.
func (s *Session) Input(text string) []models.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose.Input(text)
}

// ComposeState exposes the compose-box state for the console.
func (s *Session) ComposeState() (ComposeState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose.State(), s.compose.Text()
}

// Pending returns optimistic in-flight messages (status "sending")
// that have not yet been acknowledged by the store.
func (s *Session) Pending() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0, len(s.pending))
	for _, msg := range s.pending {
		out = append(out, msg)
	}
	return out
}

// MergePending overlays the optimistic in-flight messages onto a store
// snapshot, so consumers see the "sending" state before the ack lands.
// Messages the store has already acknowledged win over their pending
// twin.
func (s *Session) MergePending(snapshot []models.Message) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return snapshot
	}

	seen := make(map[string]struct{}, len(snapshot))
	for _, msg := range snapshot {
		seen[msg.ID] = struct{}{}
	}

	merged := snapshot
	for _, msg := range s.pending {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		merged = append(merged, msg)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// Choose selects a suggested template. Text templates refill the
// compose box; audio templates with a stored reference are sent
// immediately and the sent message is returned; audio templates
// without one switch into recording.
func (s *Session) Choose(ctx context.Context, commandID string) (*Choice, *models.Message, error) {
	s.mu.Lock()
	choice, err := s.compose.Choose(commandID)
	s.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	if choice.Action != ChoiceSendAudio {
		return choice, nil, nil
	}

	msg, err := s.sendCatalogAudio(ctx, choice.Command)
	if err != nil {
		return choice, nil, err
	}

	s.mu.Lock()
	s.compose.Reset()
	s.mu.Unlock()
	return choice, msg, nil
}

// StartRecording begins capturing from the given device. Re-entrant
// starts are rejected by the per-action guard before the device is
// touched.
func (s *Session) StartRecording(ctx context.Context, dev media.Device) error {
	if err := s.begin(actionRecord); err != nil {
		return err
	}
	defer s.end(actionRecord)

	s.mu.Lock()
	if s.conversationID == "" {
		s.mu.Unlock()
		return ErrNoConversation
	}
	if s.recorder != nil && s.recorder.Recording() {
		s.mu.Unlock()
		return media.ErrAlreadyRecording
	}
	rec := media.NewRecorder(dev)
	s.recorder = rec
	s.mu.Unlock()

	if err := rec.Start(ctx); err != nil {
		s.mu.Lock()
		s.recorder = nil
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.compose.BeginRecording()
	s.mu.Unlock()
	return nil
}

// StopRecording finalizes the capture. The blob stays with the session
// until it is sent or the conversation changes.
func (s *Session) StopRecording() (*media.Blob, error) {
	s.mu.Lock()
	rec := s.recorder
	s.mu.Unlock()

	if rec == nil {
		return nil, media.ErrNotRecording
	}

	blob, err := rec.Stop()
	if err != nil {
		s.mu.Lock()
		s.recorder = nil
		s.compose.Reset()
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.recorder = nil
	s.blob = blob
	s.compose.RecordingDone()
	s.mu.Unlock()
	return blob, nil
}

// SendText sends a text message. The message is tracked as pending
// (status "sending") until the store acknowledges the write, at which
// point it is promoted to sent.
func (s *Session) SendText(ctx context.Context, text string) (*models.Message, error) {
	if err := s.begin(actionText); err != nil {
		return nil, err
	}
	defer s.end(actionText)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	conversationID := s.conversationID
	if conversationID == "" {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}

	msg := &models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       s.ctrl.adminID,
		SenderName:     s.ctrl.adminName,
		Kind:           models.KindText,
		Text:           text,
		Status:         models.StatusSending,
		Timestamp:      time.Now().UnixMilli(),
	}
	s.pending[msg.ID] = *msg
	// compose box clears immediately, before the append settles
	s.compose.Reset()
	s.mu.Unlock()

	err := s.ctrl.store.Append(ctx, msg)

	s.mu.Lock()
	delete(s.pending, msg.ID)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(models.KindText)).Inc()
	s.touchSummary(ctx, msg)
	return msg, nil
}

// SendVoice uploads the finished recording and appends the voice
// message. The upload is awaited before the append, so no optimistic
// "sending" voice message exists. On upload failure the blob is kept
// so the operator can retry.
func (s *Session) SendVoice(ctx context.Context) (*models.Message, error) {
	if err := s.begin(actionVoice); err != nil {
		return nil, err
	}
	defer s.end(actionVoice)

	s.mu.Lock()
	conversationID := s.conversationID
	blob := s.blob
	s.mu.Unlock()

	if conversationID == "" {
		return nil, ErrNoConversation
	}
	if blob == nil {
		return nil, ErrNoRecording
	}

	audioURL, err := s.ctrl.uploader.UploadBlob(ctx, blob)
	if err != nil {
		// blob stays; the operator retries from voice-ready
		s.ctrl.logger.Error().Err(err).Str("conversation", conversationID).Msg("voice upload failed")
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       s.ctrl.adminID,
		SenderName:     s.ctrl.adminName,
		Kind:           models.KindVoice,
		AudioURL:       audioURL,
	}
	if err := s.ctrl.store.Append(ctx, msg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.blob = nil
	s.compose.Reset()
	s.mu.Unlock()

	metrics.MessagesSent.WithLabelValues(string(models.KindVoice)).Inc()
	s.touchSummary(ctx, msg)
	return msg, nil
}

// sendCatalogAudio sends a template's stored audio reference.
func (s *Session) sendCatalogAudio(ctx context.Context, cmd models.Command) (*models.Message, error) {
	if err := s.begin(actionVoice); err != nil {
		return nil, err
	}
	defer s.end(actionVoice)

	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()
	if conversationID == "" {
		return nil, ErrNoConversation
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       s.ctrl.adminID,
		SenderName:     s.ctrl.adminName,
		Kind:           models.KindVoice,
		AudioURL:       s.ctrl.uploader.Resolve(cmd.AudioRef),
	}
	if err := s.ctrl.store.Append(ctx, msg); err != nil {
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(models.KindVoice)).Inc()
	metrics.CommandSends.Inc()
	s.touchSummary(ctx, msg)
	return msg, nil
}

// touchSummary refreshes the conversation's denormalized summary after
// a send. Failures are logged, not surfaced: the message itself is
// already persisted.
func (s *Session) touchSummary(ctx context.Context, msg *models.Message) {
	userID := participantID(msg.ConversationID, s.ctrl.adminID)

	conv := models.Conversation{
		ID:          msg.ConversationID,
		UserID:      userID,
		LastMessage: summaryText(msg),
		LastKind:    msg.Kind,
		UpdatedAt:   msg.Timestamp,
	}
	if user, err := s.ctrl.users.UserByID(ctx, userID); err == nil && user != nil {
		conv.UserName = user.Name
		conv.Area = user.Area
	}

	if err := s.ctrl.store.TouchSummary(ctx, conv); err != nil {
		s.ctrl.logger.Error().Err(err).Str("conversation", msg.ConversationID).Msg("summary update failed")
	}
}

func summaryText(msg *models.Message) string {
	if msg.Kind == models.KindVoice {
		return "[voice]"
	}
	return msg.Text
}

// Close releases everything the session holds: the subscription, the
// recorder (and with it the capture device), and any pending blob.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	if s.recorder != nil {
		s.recorder.Close()
		s.recorder = nil
	}
	s.blob = nil
	s.compose.Reset()
	s.conversationID = ""
}
