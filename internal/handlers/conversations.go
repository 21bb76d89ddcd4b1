package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fitwellhq/supportchat/internal/api/middleware"
	"github.com/fitwellhq/supportchat/internal/models"
)

// streamHeartbeat keeps idle SSE connections alive through proxies.
const streamHeartbeat = 15 * time.Second

// RosterResponse represents the conversation list response.
type RosterResponse struct {
	Conversations []models.Conversation `json:"conversations"`
	Total         int                   `json:"total"`
}

// Roster handles the operator's conversation list, with the optional
// q= substring filter.
func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	op := middleware.GetOperator(r.Context())
	if op == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversations, err := h.ctrl.Roster(r.Context(), *op, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error().Err(err).Msg("roster assembly failed")
		h.Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	h.JSON(w, http.StatusOK, RosterResponse{
		Conversations: conversations,
		Total:         len(conversations),
	})
}

// SelectResponse represents the conversation selection response.
type SelectResponse struct {
	ConversationID string `json:"conversation_id"`
	State          string `json:"state"`
}

// Select makes a conversation the operator's active one, tearing down
// the previous subscription and compose state.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	op := middleware.GetOperator(r.Context())
	if op == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	conversationID := chi.URLParam(r, "id")
	// The console may open a chat by user rather than by thread; the
	// thread id is derived from the pair.
	if user := r.URL.Query().Get("user"); user != "" {
		conversationID = h.ctrl.ConversationFor(user)
	}

	s := h.ctrl.Session(*op)
	if _, err := s.Select(r.Context(), conversationID); err != nil {
		h.logger.Error().Err(err).Str("conversation", conversationID).Msg("select failed")
		h.Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	state, _ := s.ComposeState()
	h.JSON(w, http.StatusOK, SelectResponse{
		ConversationID: conversationID,
		State:          state.String(),
	})
}

// Stream serves the conversation's live feed as server-sent events.
// Every change redelivers the full ordered snapshot. Selecting another
// conversation closes the stream, as does a terminal feed error after
// the store's bounded reconnect.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	op := middleware.GetOperator(r.Context())
	if op == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	conversationID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	s := h.ctrl.Session(*op)
	sub, err := s.Select(r.Context(), conversationID)
	if err != nil {
		h.logger.Error().Err(err).Str("conversation", conversationID).Msg("subscribe failed")
		h.Error(w, http.StatusInternalServerError, "failed to open feed")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-sub.Done():
			// A terminal feed error closes the subscription right after
			// surfacing it, so both channels can be ready at once. Drain
			// the error here or the close races it away.
			select {
			case err := <-sub.Errors():
				h.feedError(w, flusher, conversationID, err)
			default:
			}
			return

		case err := <-sub.Errors():
			h.feedError(w, flusher, conversationID, err)
			return

		case snapshot := <-sub.Snapshots():
			snapshot = s.MergePending(snapshot)
			data, err := json.Marshal(snapshot)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// feedError emits the SSE error event so clients can tell a broken feed
// apart from an empty conversation or a clean close.
func (h *Handler) feedError(w http.ResponseWriter, flusher http.Flusher, conversationID string, err error) {
	h.logger.Error().Err(err).Str("conversation", conversationID).Msg("feed error")
	fmt.Fprintf(w, "event: error\ndata: {\"error\":\"feed unavailable\"}\n\n")
	flusher.Flush()
}
