package handlers

import (
	"net/http"

	"github.com/fitwellhq/supportchat/internal/models"
)

// CommandsResponse represents the reply-template catalog response.
type CommandsResponse struct {
	Commands []models.Command `json:"commands"`
	Total    int              `json:"total"`
}

// ListCommands returns the full reply-template catalog.
func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	commands := h.catalog.Commands()
	h.JSON(w, http.StatusOK, CommandsResponse{
		Commands: commands,
		Total:    len(commands),
	})
}

// SuggestCommands filters the catalog by substring match on title.
func (h *Handler) SuggestCommands(w http.ResponseWriter, r *http.Request) {
	matches := h.catalog.Suggest(r.URL.Query().Get("q"))
	h.JSON(w, http.StatusOK, CommandsResponse{
		Commands: matches,
		Total:    len(matches),
	})
}
