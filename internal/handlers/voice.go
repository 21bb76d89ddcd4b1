package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fitwellhq/supportchat/internal/api/middleware"
	"github.com/fitwellhq/supportchat/internal/media"
)

// RecordingResponse represents a finalized recording.
type RecordingResponse struct {
	State    string `json:"state"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// Recording receives a voice capture as the request body: the console
// streams encoded chunks while the operator records, and finishing the
// body finalizes the blob. The blob stays with the session until sent
// or discarded by a conversation switch.
func (h *Handler) Recording(w http.ResponseWriter, r *http.Request) {
	op := middleware.GetOperator(r.Context())
	if op == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		h.Error(w, http.StatusBadRequest, "content-type with the capture encoding is required")
		return
	}

	s, err := h.activeSession(r.Context(), *op, chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	// Buffer the capture fully before handing it to the recorder, so
	// Stop never truncates a stream still in flight.
	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "capture stream interrupted")
		return
	}

	dev := media.NewReaderDevice(io.NopCloser(bytes.NewReader(data)), contentType)
	if err := s.StartRecording(r.Context(), dev); err != nil {
		h.recordError(w, err)
		return
	}

	blob, err := s.StopRecording()
	if err != nil {
		h.recordError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, RecordingResponse{
		State:    "voice_ready",
		MIMEType: blob.MIMEType,
		Size:     len(blob.Data),
	})
}

// SendVoice uploads the finished recording and appends the voice
// message. On upload failure the blob is kept for retry.
func (h *Handler) SendVoice(w http.ResponseWriter, r *http.Request) {
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

	msg, err := s.SendVoice(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// recordError maps capture failures to HTTP statuses.
func (h *Handler) recordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, media.ErrPermissionDenied):
		h.Error(w, http.StatusForbidden, "capture permission denied")
	case errors.Is(err, media.ErrAlreadyRecording):
		h.Error(w, http.StatusConflict, "recording already in progress")
	case errors.Is(err, media.ErrNotRecording):
		h.Error(w, http.StatusBadRequest, "no recording in progress")
	default:
		h.logger.Error().Err(err).Msg("recording failed")
		h.Error(w, http.StatusInternalServerError, "recording failed")
	}
}
