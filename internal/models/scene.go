// internal/models/scene.go
package models

// Position is a node's location on the canvas in world units. It is used only
// for layout and rendering, never for identity or traversal.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Scene is one node of the narrative graph
type Scene struct {
	ID              string    `json:"id" yaml:"id" validate:"required"`
	Title           string    `json:"title" yaml:"title"`
	Segments        []Segment `json:"segments" yaml:"segments" validate:"dive"`
	Choices         []Choice  `json:"choices" yaml:"choices" validate:"dive"`
	IsEnding        bool      `json:"is_ending" yaml:"is_ending"`
	Ending          *Ending   `json:"ending,omitempty" yaml:"ending,omitempty"`
	Position        Position  `json:"position" yaml:"position"`
	BackgroundAudio string    `json:"background_audio,omitempty" yaml:"background_audio,omitempty"`
}

// Segment is one displayed beat inside a scene
type Segment struct {
	Text       string `json:"text" yaml:"text"`
	Image      string `json:"image" yaml:"image"`
	DurationMs int    `json:"duration_ms" yaml:"duration_ms" validate:"gte=0"`
}

// Choice is an outgoing edge. A nil TargetSceneID means the choice leads
// nowhere; that is distinct from an authored ending.
type Choice struct {
	ID            string  `json:"id" yaml:"id" validate:"required"`
	Text          string  `json:"text" yaml:"text"`
	TargetSceneID *string `json:"target_scene_id" yaml:"target_scene_id"`
	Cost          int     `json:"cost" yaml:"cost"`
}

// Ending holds display metadata for terminal scenes
type Ending struct {
	Type        string `json:"type" yaml:"type"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Image       string `json:"image" yaml:"image"`
}

// Target returns the choice target and whether one is set.
func (c Choice) Target() (string, bool) {
	if c.TargetSceneID == nil {
		return "", false
	}
	return *c.TargetSceneID, true
}

// StringPtr is a small helper for building optional targets.
func StringPtr(s string) *string {
	return &s
}

// Clone returns a deep copy of the scene.
func (s Scene) Clone() Scene {
	out := s
	if s.Segments != nil {
		out.Segments = make([]Segment, len(s.Segments))
		copy(out.Segments, s.Segments)
	}
	if s.Choices != nil {
		out.Choices = make([]Choice, len(s.Choices))
		for i, c := range s.Choices {
			out.Choices[i] = c
			if c.TargetSceneID != nil {
				out.Choices[i].TargetSceneID = StringPtr(*c.TargetSceneID)
			}
		}
	}
	if s.Ending != nil {
		ending := *s.Ending
		out.Ending = &ending
	}
	return out
}

// CloneScenes deep-copies a scene list, preserving nil vs empty.
func CloneScenes(scenes []Scene) []Scene {
	if scenes == nil {
		return nil
	}
	out := make([]Scene, len(scenes))
	for i, s := range scenes {
		out[i] = s.Clone()
	}
	return out
}
