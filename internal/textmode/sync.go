// internal/textmode/sync.go
package textmode

import (
	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
)

// Mode is the active editing representation.
type Mode string

const (
	ModeVisual Mode = "visual"
	ModeText   Mode = "text"
)

// Sync keeps a graph model and its text form in step. The model is only
// replaced when the text parses; a failed parse leaves the model untouched and
// keeps the editor in text mode.
type Sync struct {
	model  *graph.Model
	format Format
	mode   Mode
	text   string
}

// NewSync starts in visual mode.
func NewSync(m *graph.Model, format Format) *Sync {
	if format == "" {
		format = FormatJSON
	}
	return &Sync{model: m, format: format, mode: ModeVisual}
}

// Mode returns the active mode.
func (s *Sync) Mode() Mode { return s.mode }

// Format returns the text notation in use.
func (s *Sync) Format() Format { return s.format }

// Text returns the current text buffer. It is empty in visual mode.
func (s *Sync) Text() string { return s.text }

// EnterTextMode serialises the model and switches to text mode. Calling it
// again while already in text mode returns the pending text unchanged.
func (s *Sync) EnterTextMode() (string, error) {
	if s.mode == ModeText {
		return s.text, nil
	}
	text, err := Encode(s.model.Scenes(), s.format)
	if err != nil {
		return "", err
	}
	s.text = text
	s.mode = ModeText
	return text, nil
}

// SetText replaces the text buffer. It reports false in visual mode.
func (s *Sync) SetText(text string) bool {
	if s.mode != ModeText {
		return false
	}
	s.text = text
	return true
}

// LeaveTextMode parses the buffer and, on success, replaces the model's scenes
// and returns to visual mode.
func (s *Sync) LeaveTextMode() error {
	if s.mode != ModeText {
		return nil
	}
	scenes, err := Decode(s.text, s.format)
	if err != nil {
		return err
	}
	s.model.ReplaceAll(scenes)
	s.mode = ModeVisual
	s.text = ""
	return nil
}

// DiscardText drops pending text edits and returns to visual mode.
func (s *Sync) DiscardText() {
	s.mode = ModeVisual
	s.text = ""
}

// PrepareSave returns the scene collection to persist. In text mode the
// buffer is parsed and applied first, and a parse failure blocks the save.
// The editor stays in whichever mode it was in.
func (s *Sync) PrepareSave() ([]models.Scene, error) {
	if s.mode == ModeText {
		scenes, err := Decode(s.text, s.format)
		if err != nil {
			return nil, err
		}
		s.model.ReplaceAll(scenes)
	}
	return s.model.Scenes(), nil
}
