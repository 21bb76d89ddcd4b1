package session

import (
	"context"
	"sort"
	"strings"

	"github.com/fitwellhq/supportchat/internal/models"
)

// UserSource resolves directory data for roster assembly. Satisfied by
// the directory cache.
type UserSource interface {
	Users(ctx context.Context) ([]models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// Roster assembles the operator's conversation list: one entry per
// far-end participant, directory data merged in, branch scoping
// applied, newest first.
func (c *Controller) Roster(ctx context.Context, op models.Operator, filter string) ([]models.Conversation, error) {
	conversations, err := c.store.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	users, err := c.users.Users(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	// Dedupe by participant. Multiple records for the same user can
	// exist (e.g. re-derived conversation ids); the most recently
	// updated one wins, not whichever iterates last.
	byUser := make(map[string]models.Conversation)
	for _, conv := range conversations {
		if conv.UserID == "" {
			conv.UserID = participantID(conv.ID, c.adminID)
		}
		if prev, ok := byUser[conv.UserID]; ok && prev.UpdatedAt >= conv.UpdatedAt {
			continue
		}
		byUser[conv.UserID] = conv
	}

	roster := make([]models.Conversation, 0, len(byUser))
	for userID, conv := range byUser {
		user, known := byID[userID]
		if known {
			if user.Name != "" {
				conv.UserName = user.Name
			}
			if user.Area != "" {
				conv.Area = user.Area
			}
		}

		// Branch scoping. A conversation without branch metadata stays
		// visible (fail-open).
		if op.BranchScoped() && known && user.BranchID != "" {
			if !contains(op.Branches, user.BranchID) {
				continue
			}
		}

		if filter != "" && !matchesFilter(conv, user, filter) {
			continue
		}

		roster = append(roster, conv)
	}

	sort.Slice(roster, func(i, j int) bool {
		return roster[i].UpdatedAt > roster[j].UpdatedAt
	})
	return roster, nil
}

// participantID recovers the far-end participant from a derived
// conversation id.
func participantID(conversationID, adminID string) string {
	return strings.TrimSuffix(conversationID, "_"+adminID)
}

// matchesFilter applies the client-side substring filter across
// display name, contact field and area tag.
func matchesFilter(conv models.Conversation, user models.User, filter string) bool {
	filter = strings.ToLower(filter)
	for _, field := range []string{conv.UserName, user.Phone, conv.Area} {
		if strings.Contains(strings.ToLower(field), filter) {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
