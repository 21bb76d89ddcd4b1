package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fitwellhq/supportchat/internal/api/middleware"
	"github.com/fitwellhq/supportchat/internal/models"
	"github.com/fitwellhq/supportchat/internal/session"
)

// SendTextRequest represents the text send request.
type SendTextRequest struct {
	Text string `json:"text"`
}

// SendText handles sending a text message into a conversation.
func (h *Handler) SendText(w http.ResponseWriter, r *http.Request) {
	op := middleware.GetOperator(r.Context())
	if op == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s, err := h.activeSession(r.Context(), *op, chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	msg, err := s.SendText(r.Context(), req.Text)
	if err != nil {
		h.sendError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// InputRequest represents the compose-box input notification.
type InputRequest struct {
	Text string `json:"text"`
}

// InputResponse carries the compose state and any command suggestions.
type InputResponse struct {
	State       string           `json:"state"`
	Text        string           `json:"text"`
	Suggestions []models.Command `json:"suggestions,omitempty"`
}

// Input feeds the operator's compose text through the state machine.
func (h *Handler) Input(w http.ResponseWriter, r *http.Request) {
	op := middleware.GetOperator(r.Context())
	if op == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s, err := h.activeSession(r.Context(), *op, chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	suggestions := s.Input(req.Text)
	state, text := s.ComposeState()

	h.JSON(w, http.StatusOK, InputResponse{
		State:       state.String(),
		Text:        text,
		Suggestions: suggestions,
	})
}

// ChooseResponse represents the template selection outcome.
type ChooseResponse struct {
	Action  string          `json:"action"`
	State   string          `json:"state"`
	Text    string          `json:"text,omitempty"`
	Message *models.Message `json:"message,omitempty"`
}

// Choose selects a suggested reply template.
func (h *Handler) Choose(w http.ResponseWriter, r *http.Request) {
	op := middleware.GetOperator(r.Context())
	if op == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	s, err := h.activeSession(r.Context(), *op, chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	choice, msg, err := s.Choose(r.Context(), chi.URLParam(r, "commandID"))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotSuggesting), errors.Is(err, session.ErrUnknownCommand):
			h.Error(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.sendError(w, err)
		}
		return
	}

	state, text := s.ComposeState()
	h.JSON(w, http.StatusOK, ChooseResponse{
		Action:  string(choice.Action),
		State:   state.String(),
		Text:    text,
		Message: msg,
	})
}

// activeSession returns the operator's session with the conversation
// selected, reusing the existing subscription when it already is.
func (h *Handler) activeSession(ctx context.Context, op models.Operator, conversationID string) (*session.Session, error) {
	s := h.ctrl.Session(op)
	if s.Conversation() == conversationID {
		return s, nil
	}
	if _, err := s.Select(ctx, conversationID); err != nil {
		return nil, err
	}
	return s, nil
}

// sendError maps send-pipeline failures to HTTP statuses.
func (h *Handler) sendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrActionInFlight):
		h.Error(w, http.StatusConflict, "send already in progress")
	case errors.Is(err, session.ErrEmptyText):
		h.Error(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, session.ErrNoConversation):
		h.Error(w, http.StatusBadRequest, "no conversation selected")
	case errors.Is(err, session.ErrNoRecording):
		h.Error(w, http.StatusBadRequest, "no recording to send")
	default:
		h.logger.Error().Err(err).Msg("send failed")
		h.Error(w, http.StatusInternalServerError, "failed to send message")
	}
}
