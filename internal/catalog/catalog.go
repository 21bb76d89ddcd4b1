// Package catalog holds the reply-template catalog that drives the
// "/" command autocomplete in the compose box.
package catalog

import (
	"context"
	"strings"

	"github.com/fitwellhq/supportchat/internal/models"
)

// Trigger is the compose-box character that opens command suggestion.
const Trigger = "/"

// Lister fetches the current reply-template catalog. Satisfied by the
// backend REST client.
type Lister interface {
	ListCommands(ctx context.Context) ([]models.Command, error)
}

// Catalog is an immutable snapshot of the reply templates, loaded once
// per session mount. Management screens own the CRUD side.
type Catalog struct {
	commands []models.Command
}

// Load fetches the catalog from the backend.
func Load(ctx context.Context, lister Lister) (*Catalog, error) {
	commands, err := lister.ListCommands(ctx)
	if err != nil {
		return nil, err
	}
	return New(commands), nil
}

// New builds a catalog from an already-fetched template list.
func New(commands []models.Command) *Catalog {
	return &Catalog{commands: commands}
}

// Commands returns all templates.
func (c *Catalog) Commands() []models.Command {
	return c.commands
}

// Get returns the template with the given id, or nil.
func (c *Catalog) Get(id string) *models.Command {
	for i := range c.commands {
		if c.commands[i].ID == id {
			return &c.commands[i]
		}
	}
	return nil
}

// Suggest filters templates by case-insensitive substring match on the
// title. An empty query returns the full catalog.
func (c *Catalog) Suggest(query string) []models.Command {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return c.commands
	}

	matches := make([]models.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		if strings.Contains(strings.ToLower(cmd.Title), query) {
			matches = append(matches, cmd)
		}
	}
	return matches
}

// ParseTrigger splits compose-box input into a command query if the
// input begins with the trigger character. The second return reports
// whether suggestion mode is active.
func ParseTrigger(input string) (string, bool) {
	if !strings.HasPrefix(input, Trigger) {
		return "", false
	}
	return strings.TrimPrefix(input, Trigger), true
}
