package models

// Conversation is a 1:1 support thread between a platform user and the
// support identity, plus the denormalized last-message summary shown in
// the console roster.
type Conversation struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	UserName    string      `json:"user_name,omitempty"`
	Area        string      `json:"area,omitempty"` // role/area tag from the directory
	LastMessage string      `json:"last_message,omitempty"`
	LastKind    MessageKind `json:"last_kind,omitempty"`
	UpdatedAt   int64       `json:"updated_at"` // Unix ms
}

// ConversationID derives the thread identifier from the two participant
// identifiers. The derivation is a pure function: the same pair always
// yields the same id, and the user side always comes first.
func ConversationID(userID, adminID string) string {
	return userID + "_" + adminID
}
