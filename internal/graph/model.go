// internal/graph/model.go
package graph

import (
	"github.com/90n9/talepick/internal/models"
)

const (
	// DefaultSceneTitle is the title given to scenes created by AddScene.
	DefaultSceneTitle = "New Scene"
	// DefaultSegmentDurationMs is used for segments created without a duration.
	DefaultSegmentDurationMs = 3000

	newSceneOriginX = 100
	newSceneOriginY = 100
	newSceneStep    = 40
)

// Model owns the scene collection of one story. All mutation goes through its
// methods; reads return deep copies so callers can never alias internal state.
//
// Model is not safe for concurrent use. Callers serialise access per story.
type Model struct {
	scenes  []models.Scene
	startID string
	version uint64
	ids     IDGenerator
}

// ScenePatch is a partial scene update. Nil fields are left untouched.
type ScenePatch struct {
	Title           *string
	IsEnding        *bool
	Ending          **models.Ending
	BackgroundAudio *string
}

// ChoicePatch is a partial choice update. ClearTarget takes precedence over
// TargetSceneID.
type ChoicePatch struct {
	Text          *string
	TargetSceneID *string
	ClearTarget   bool
	Cost          *int
}

// SegmentPatch is a partial segment update.
type SegmentPatch struct {
	Text       *string
	Image      *string
	DurationMs *int
}

// New creates a model from a scene collection. The input is copied.
func New(scenes []models.Scene, startID string) *Model {
	m := &Model{
		scenes:  models.CloneScenes(scenes),
		startID: startID,
	}
	if m.scenes == nil {
		m.scenes = []models.Scene{}
	}
	return m
}

// Version increases by one on every successful mutation.
func (m *Model) Version() uint64 {
	return m.version
}

// Len returns the number of scenes.
func (m *Model) Len() int {
	return len(m.scenes)
}

// Scenes returns a deep copy of all scenes in insertion order.
func (m *Model) Scenes() []models.Scene {
	return models.CloneScenes(m.scenes)
}

// Scene returns a deep copy of one scene.
func (m *Model) Scene(id string) (models.Scene, bool) {
	i := m.indexOf(id)
	if i < 0 {
		return models.Scene{}, false
	}
	return m.scenes[i].Clone(), true
}

// StartSceneID returns the designated start scene, falling back to the first
// scene when none is set.
func (m *Model) StartSceneID() string {
	return models.ResolveStart(m.startID, m.scenes)
}

// SetStartScene designates the start scene.
func (m *Model) SetStartScene(id string) bool {
	if m.indexOf(id) < 0 {
		return false
	}
	m.startID = id
	m.touch()
	return true
}

// AddScene appends an empty scene with a fresh id.
func (m *Model) AddScene() models.Scene {
	id := m.ids.Next("scene")
	for m.indexOf(id) >= 0 {
		id = m.ids.Next("scene")
	}

	pos := models.Position{X: newSceneOriginX, Y: newSceneOriginY}
	if n := len(m.scenes); n > 0 {
		last := m.scenes[n-1].Position
		pos = models.Position{X: last.X + newSceneStep, Y: last.Y + newSceneStep}
	}

	scene := models.Scene{
		ID:       id,
		Title:    DefaultSceneTitle,
		Segments: []models.Segment{},
		Choices:  []models.Choice{},
		Position: pos,
	}
	m.scenes = append(m.scenes, scene)
	m.touch()
	return scene.Clone()
}

// UpdateScene applies a partial update to one scene.
func (m *Model) UpdateScene(id string, patch ScenePatch) bool {
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	s := &m.scenes[i]
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.IsEnding != nil {
		s.IsEnding = *patch.IsEnding
	}
	if patch.Ending != nil {
		if *patch.Ending == nil {
			s.Ending = nil
		} else {
			ending := **patch.Ending
			s.Ending = &ending
		}
	}
	if patch.BackgroundAudio != nil {
		s.BackgroundAudio = *patch.BackgroundAudio
	}
	m.touch()
	return true
}

// MoveScene sets a scene's canvas position.
func (m *Model) MoveScene(id string, pos models.Position) bool {
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.scenes[i].Position = pos
	m.touch()
	return true
}

// RemoveScene deletes a scene. Choices elsewhere that targeted it are left
// dangling on purpose; the validator treats them as having no target.
func (m *Model) RemoveScene(id string) bool {
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.scenes = append(m.scenes[:i], m.scenes[i+1:]...)
	if m.startID == id {
		m.startID = ""
	}
	m.touch()
	return true
}

// AddChoice appends a choice with no target to a scene.
func (m *Model) AddChoice(sceneID string) (models.Choice, bool) {
	i := m.indexOf(sceneID)
	if i < 0 {
		return models.Choice{}, false
	}
	choice := models.Choice{
		ID:   m.ids.Next("choice"),
		Text: "",
	}
	m.scenes[i].Choices = append(m.scenes[i].Choices, choice)
	m.touch()
	return choice, true
}

// UpdateChoice applies a partial update to a choice.
func (m *Model) UpdateChoice(sceneID, choiceID string, patch ChoicePatch) bool {
	i := m.indexOf(sceneID)
	if i < 0 {
		return false
	}
	j := choiceIndex(m.scenes[i].Choices, choiceID)
	if j < 0 {
		return false
	}
	c := &m.scenes[i].Choices[j]
	if patch.Text != nil {
		c.Text = *patch.Text
	}
	switch {
	case patch.ClearTarget:
		c.TargetSceneID = nil
	case patch.TargetSceneID != nil:
		c.TargetSceneID = models.StringPtr(*patch.TargetSceneID)
	}
	if patch.Cost != nil {
		c.Cost = *patch.Cost
	}
	m.touch()
	return true
}

// RemoveChoice deletes a choice from a scene.
func (m *Model) RemoveChoice(sceneID, choiceID string) bool {
	i := m.indexOf(sceneID)
	if i < 0 {
		return false
	}
	j := choiceIndex(m.scenes[i].Choices, choiceID)
	if j < 0 {
		return false
	}
	choices := m.scenes[i].Choices
	m.scenes[i].Choices = append(choices[:j], choices[j+1:]...)
	m.touch()
	return true
}

// AddSegment appends a segment and returns its index.
func (m *Model) AddSegment(sceneID string, seg models.Segment) (int, bool) {
	i := m.indexOf(sceneID)
	if i < 0 {
		return -1, false
	}
	if seg.DurationMs <= 0 {
		seg.DurationMs = DefaultSegmentDurationMs
	}
	m.scenes[i].Segments = append(m.scenes[i].Segments, seg)
	m.touch()
	return len(m.scenes[i].Segments) - 1, true
}

// UpdateSegment applies a partial update to the segment at index.
func (m *Model) UpdateSegment(sceneID string, index int, patch SegmentPatch) bool {
	i := m.indexOf(sceneID)
	if i < 0 || index < 0 || index >= len(m.scenes[i].Segments) {
		return false
	}
	seg := &m.scenes[i].Segments[index]
	if patch.Text != nil {
		seg.Text = *patch.Text
	}
	if patch.Image != nil {
		seg.Image = *patch.Image
	}
	if patch.DurationMs != nil && *patch.DurationMs >= 0 {
		seg.DurationMs = *patch.DurationMs
	}
	m.touch()
	return true
}

// RemoveSegment deletes the segment at index.
func (m *Model) RemoveSegment(sceneID string, index int) bool {
	i := m.indexOf(sceneID)
	if i < 0 || index < 0 || index >= len(m.scenes[i].Segments) {
		return false
	}
	segs := m.scenes[i].Segments
	m.scenes[i].Segments = append(segs[:index], segs[index+1:]...)
	m.touch()
	return true
}

// MoveSegment moves the segment at from so that it ends up at index to.
func (m *Model) MoveSegment(sceneID string, from, to int) bool {
	i := m.indexOf(sceneID)
	if i < 0 {
		return false
	}
	segs := m.scenes[i].Segments
	if from < 0 || from >= len(segs) || to < 0 || to >= len(segs) {
		return false
	}
	if from == to {
		return true
	}
	seg := segs[from]
	segs = append(segs[:from], segs[from+1:]...)
	segs = append(segs[:to], append([]models.Segment{seg}, segs[to:]...)...)
	m.scenes[i].Segments = segs
	m.touch()
	return true
}

// ReplaceAll swaps the whole scene collection, e.g. after a text-mode edit.
func (m *Model) ReplaceAll(scenes []models.Scene) {
	m.scenes = models.CloneScenes(scenes)
	if m.scenes == nil {
		m.scenes = []models.Scene{}
	}
	m.touch()
}

// FillMissingImages assigns placeholder to every segment without an image and
// gives scenes with no segments a single placeholder segment. It returns the
// number of segments changed or added.
func (m *Model) FillMissingImages(placeholder string) int {
	if placeholder == "" {
		return 0
	}
	changed := 0
	for i := range m.scenes {
		s := &m.scenes[i]
		if len(s.Segments) == 0 {
			s.Segments = []models.Segment{{Image: placeholder, DurationMs: DefaultSegmentDurationMs}}
			changed++
			continue
		}
		for j := range s.Segments {
			if s.Segments[j].Image == "" {
				s.Segments[j].Image = placeholder
				changed++
			}
		}
	}
	if changed > 0 {
		m.touch()
	}
	return changed
}

func (m *Model) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range m.scenes {
		if m.scenes[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) touch() {
	m.version++
}

func choiceIndex(choices []models.Choice, id string) int {
	for i := range choices {
		if choices[i].ID == id {
			return i
		}
	}
	return -1
}
