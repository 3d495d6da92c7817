// internal/graph/model_test.go
package graph

import (
	"strings"
	"testing"

	"github.com/90n9/talepick/internal/models"
)

func sampleScenes() []models.Scene {
	return []models.Scene{
		{
			ID:       "s1",
			Title:    "Gate",
			Segments: []models.Segment{{Text: "a", Image: "a.png", DurationMs: 1000}},
			Choices:  []models.Choice{{ID: "c1", Text: "in", TargetSceneID: models.StringPtr("s2")}},
		},
		{
			ID:       "s2",
			Title:    "Hall",
			Segments: []models.Segment{},
			Choices:  []models.Choice{},
		},
	}
}

func TestAddSceneDefaults(t *testing.T) {
	m := New(nil, "")
	first := m.AddScene()
	second := m.AddScene()

	if first.ID == second.ID {
		t.Fatalf("expected unique ids, got %q twice", first.ID)
	}
	if !strings.HasPrefix(first.ID, "scene_") {
		t.Errorf("unexpected id format %q", first.ID)
	}
	if first.Title != DefaultSceneTitle {
		t.Errorf("expected default title, got %q", first.Title)
	}
	if first.Segments == nil || first.Choices == nil {
		t.Errorf("expected empty non-nil lists")
	}
	if first.Position == second.Position {
		t.Errorf("new scenes should not stack on the same position")
	}
	if m.Len() != 2 || m.Version() != 2 {
		t.Fatalf("len=%d version=%d", m.Len(), m.Version())
	}
}

func TestReadsDoNotAlias(t *testing.T) {
	m := New(sampleScenes(), "")
	scenes := m.Scenes()
	scenes[0].Title = "changed"
	*scenes[0].Choices[0].TargetSceneID = "zzz"
	scenes[0].Segments[0].Image = ""

	s, _ := m.Scene("s1")
	if s.Title != "Gate" {
		t.Errorf("title leaked through copy: %q", s.Title)
	}
	if target, _ := s.Choices[0].Target(); target != "s2" {
		t.Errorf("choice target leaked through copy: %q", target)
	}
	if s.Segments[0].Image != "a.png" {
		t.Errorf("segment leaked through copy")
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	m := New(sampleScenes(), "")
	before := m.Version()

	if m.MoveScene("nope", models.Position{X: 1}) {
		t.Error("MoveScene on unknown id returned true")
	}
	if m.RemoveScene("nope") {
		t.Error("RemoveScene on unknown id returned true")
	}
	if _, ok := m.AddChoice("nope"); ok {
		t.Error("AddChoice on unknown scene returned true")
	}
	if m.UpdateChoice("s1", "nope", ChoicePatch{}) {
		t.Error("UpdateChoice on unknown choice returned true")
	}
	if m.UpdateSegment("s1", 5, SegmentPatch{}) {
		t.Error("UpdateSegment out of range returned true")
	}
	if m.MoveSegment("s1", 0, 3) {
		t.Error("MoveSegment out of range returned true")
	}
	if m.Version() != before {
		t.Fatalf("version changed on no-op mutations: %d -> %d", before, m.Version())
	}
}

func TestRemoveSceneLeavesDanglingChoices(t *testing.T) {
	m := New(sampleScenes(), "s2")
	if !m.RemoveScene("s2") {
		t.Fatal("RemoveScene returned false")
	}
	s1, _ := m.Scene("s1")
	if target, ok := s1.Choices[0].Target(); !ok || target != "s2" {
		t.Fatalf("expected dangling target s2 to remain, got %q %v", target, ok)
	}
	if got := m.StartSceneID(); got != "s1" {
		t.Fatalf("expected start to fall back to s1, got %q", got)
	}
}

func TestUpdateChoiceTarget(t *testing.T) {
	m := New(sampleScenes(), "")
	c, _ := m.AddChoice("s2")

	m.UpdateChoice("s2", c.ID, ChoicePatch{TargetSceneID: models.StringPtr("s1"), Text: models.StringPtr("back")})
	s2, _ := m.Scene("s2")
	if target, ok := s2.Choices[0].Target(); !ok || target != "s1" || s2.Choices[0].Text != "back" {
		t.Fatalf("unexpected choice after update: %+v", s2.Choices[0])
	}

	m.UpdateChoice("s2", c.ID, ChoicePatch{ClearTarget: true})
	s2, _ = m.Scene("s2")
	if _, ok := s2.Choices[0].Target(); ok {
		t.Fatal("expected target to be cleared")
	}

	if !m.RemoveChoice("s2", c.ID) {
		t.Fatal("RemoveChoice returned false")
	}
	s2, _ = m.Scene("s2")
	if len(s2.Choices) != 0 {
		t.Fatalf("expected no choices, got %d", len(s2.Choices))
	}
}

func TestSegmentOperations(t *testing.T) {
	m := New(sampleScenes(), "")
	m.AddSegment("s1", models.Segment{Text: "b"})
	m.AddSegment("s1", models.Segment{Text: "c", DurationMs: 500})

	s1, _ := m.Scene("s1")
	if s1.Segments[1].DurationMs != DefaultSegmentDurationMs {
		t.Errorf("expected default duration, got %d", s1.Segments[1].DurationMs)
	}

	if !m.MoveSegment("s1", 2, 0) {
		t.Fatal("MoveSegment returned false")
	}
	s1, _ = m.Scene("s1")
	var order []string
	for _, seg := range s1.Segments {
		order = append(order, seg.Text)
	}
	if strings.Join(order, ",") != "c,a,b" {
		t.Fatalf("unexpected order %v", order)
	}

	m.UpdateSegment("s1", 0, SegmentPatch{Image: models.StringPtr("c.png")})
	m.RemoveSegment("s1", 1)
	s1, _ = m.Scene("s1")
	if len(s1.Segments) != 2 || s1.Segments[0].Image != "c.png" || s1.Segments[1].Text != "b" {
		t.Fatalf("unexpected segments %+v", s1.Segments)
	}
}

func TestUpdateScenePatch(t *testing.T) {
	m := New(sampleScenes(), "")
	ending := &models.Ending{Type: "good", Title: "Home"}
	m.UpdateScene("s2", ScenePatch{IsEnding: boolPtr(true), Ending: &ending, Title: models.StringPtr("Finale")})

	s2, _ := m.Scene("s2")
	if !s2.IsEnding || s2.Ending == nil || s2.Ending.Title != "Home" || s2.Title != "Finale" {
		t.Fatalf("unexpected scene %+v", s2)
	}

	var none *models.Ending
	m.UpdateScene("s2", ScenePatch{Ending: &none})
	s2, _ = m.Scene("s2")
	if s2.Ending != nil {
		t.Fatal("expected ending metadata to be cleared")
	}
}

func TestFillMissingImages(t *testing.T) {
	m := New(sampleScenes(), "")
	m.AddSegment("s1", models.Segment{Text: "no image"})

	changed := m.FillMissingImages("placeholder.png")
	if changed != 2 {
		t.Fatalf("expected 2 changes, got %d", changed)
	}
	for _, s := range m.Scenes() {
		if len(s.Segments) == 0 {
			t.Fatalf("scene %s still has no segments", s.ID)
		}
		for _, seg := range s.Segments {
			if seg.Image == "" {
				t.Fatalf("scene %s still has an empty image", s.ID)
			}
		}
	}
	if m.FillMissingImages("placeholder.png") != 0 {
		t.Fatal("second pass should change nothing")
	}
}

func TestReplaceAll(t *testing.T) {
	m := New(sampleScenes(), "")
	in := []models.Scene{{ID: "x", Title: "X"}}
	m.ReplaceAll(in)
	in[0].Title = "mutated"

	if m.Len() != 1 {
		t.Fatalf("expected 1 scene, got %d", m.Len())
	}
	if s, _ := m.Scene("x"); s.Title != "X" {
		t.Fatalf("ReplaceAll kept a reference to the caller slice")
	}
}

func boolPtr(b bool) *bool { return &b }
