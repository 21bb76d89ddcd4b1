package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fitwellhq/supportchat/internal/catalog"
	"github.com/fitwellhq/supportchat/internal/chatstore"
	"github.com/fitwellhq/supportchat/internal/directory"
	"github.com/fitwellhq/supportchat/internal/session"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	ctrl    *session.Controller
	store   chatstore.Store
	cache   *directory.Cache
	catalog *catalog.Catalog
	logger  zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(ctrl *session.Controller, store chatstore.Store, cache *directory.Cache, cat *catalog.Catalog, logger zerolog.Logger) *Handler {
	return &Handler{
		ctrl:    ctrl,
		store:   store,
		cache:   cache,
		catalog: cat,
		logger:  logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
