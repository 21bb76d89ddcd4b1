package models

// CommandKind discriminates reply-template payloads.
type CommandKind string

const (
	CommandText  CommandKind = "text"
	CommandAudio CommandKind = "audio"
)

// Command is an admin-curated canned reply. The title doubles as the
// "/" autocomplete keyword in the compose box.
type Command struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Kind     CommandKind `json:"kind"`
	Body     string      `json:"body,omitempty"`      // text kind
	AudioRef string      `json:"audio_ref,omitempty"` // audio kind, backend-relative
}
