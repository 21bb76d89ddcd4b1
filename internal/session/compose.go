package session

import (
	"errors"
	"fmt"

	"github.com/fitwellhq/supportchat/internal/catalog"
	"github.com/fitwellhq/supportchat/internal/models"
)

// ComposeState is the compose-box state.
type ComposeState int

const (
	StateIdle ComposeState = iota
	StateComposing
	StateSuggesting
	StateRecording
	StateVoiceReady
)

func (s ComposeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateSuggesting:
		return "suggesting"
	case StateRecording:
		return "recording"
	case StateVoiceReady:
		return "voice_ready"
	}
	return "unknown"
}

// ChoiceAction is the outcome of selecting a suggested template.
type ChoiceAction string

const (
	// ChoiceCompose refills the compose box with the template title so
	// the operator can append free text.
	ChoiceCompose ChoiceAction = "compose"

	// ChoiceSendAudio sends the template's stored audio immediately,
	// bypassing the compose box.
	ChoiceSendAudio ChoiceAction = "send_audio"

	// ChoiceRecord starts a fresh recording for an audio template
	// without a stored reference.
	ChoiceRecord ChoiceAction = "record"
)

// Choice describes what selecting a template leads to.
type Choice struct {
	Action  ChoiceAction
	Text    string // populated compose text for ChoiceCompose
	Command models.Command
}

var (
	ErrNotSuggesting  = errors.New("no suggestion in progress")
	ErrUnknownCommand = errors.New("unknown command")
)

// Compose is the compose-box state machine. It is not safe for
// concurrent use; the owning session serializes access.
type Compose struct {
	catalog     *catalog.Catalog
	state       ComposeState
	text        string
	suggestions []models.Command
}

// NewCompose creates an idle compose box over the given catalog.
func NewCompose(cat *catalog.Catalog) *Compose {
	return &Compose{catalog: cat, state: StateIdle}
}

func (c *Compose) State() ComposeState           { return c.state }
func (c *Compose) Text() string                  { return c.text }
func (c *Compose) Suggestions() []models.Command { return c.suggestions }

// Input updates the compose box with the operator's current text.
// Text starting with the command trigger switches into suggesting and
// returns the filtered catalog.
func (c *Compose) Input(text string) []models.Command {
	switch c.state {
	case StateRecording, StateVoiceReady:
		// typing does not interrupt a voice flow
		return nil
	}

	c.text = text
	if text == "" {
		c.state = StateIdle
		c.suggestions = nil
		return nil
	}

	if query, ok := catalog.ParseTrigger(text); ok {
		c.state = StateSuggesting
		c.suggestions = c.catalog.Suggest(query)
		return c.suggestions
	}

	c.state = StateComposing
	c.suggestions = nil
	return nil
}

// Choose selects a suggested template by id.
func (c *Compose) Choose(id string) (*Choice, error) {
	if c.state != StateSuggesting {
		return nil, ErrNotSuggesting
	}

	cmd := c.catalog.Get(id)
	if cmd == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}

	switch {
	case cmd.Kind == models.CommandText:
		// refill with the trigger-prefixed title; focus returns to the
		// input so the operator can append free text
		c.text = catalog.Trigger + cmd.Title + " "
		c.state = StateComposing
		c.suggestions = nil
		return &Choice{Action: ChoiceCompose, Text: c.text, Command: *cmd}, nil

	case cmd.AudioRef != "":
		return &Choice{Action: ChoiceSendAudio, Command: *cmd}, nil

	default:
		c.state = StateRecording
		c.text = ""
		c.suggestions = nil
		return &Choice{Action: ChoiceRecord, Command: *cmd}, nil
	}
}

// BeginRecording flips into the recording state.
func (c *Compose) BeginRecording() {
	c.state = StateRecording
	c.text = ""
	c.suggestions = nil
}

// RecordingDone flips from recording to voice-ready.
func (c *Compose) RecordingDone() {
	if c.state == StateRecording {
		c.state = StateVoiceReady
	}
}

// Reset clears the compose box and suggestion state.
func (c *Compose) Reset() {
	c.state = StateIdle
	c.text = ""
	c.suggestions = nil
}
