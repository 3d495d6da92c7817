// internal/canvas/canvas_test.go
package canvas

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/validation"
	"github.com/90n9/talepick/internal/viewport"
)

func twoScenes() []models.Scene {
	return []models.Scene{
		{
			ID:       "a",
			Title:    "A rather long scene title here",
			Position: models.Position{X: 0, Y: 0},
			Segments: []models.Segment{{Image: "x"}},
			Choices: []models.Choice{
				{ID: "c1", TargetSceneID: models.StringPtr("b")},
				{ID: "c2", TargetSceneID: models.StringPtr("gone")},
				{ID: "c3"},
				{ID: "c4", TargetSceneID: models.StringPtr("a")},
			},
		},
		{
			ID:       "b",
			Title:    "End",
			IsEnding: true,
			Position: models.Position{X: 400, Y: 200},
		},
	}
}

func TestEdgesAnchorsAndFiltering(t *testing.T) {
	edges := Edges(twoScenes())
	if len(edges) != 2 {
		t.Fatalf("expected 2 drawable edges, got %+v", edges)
	}

	e := edges[0]
	if e.From != (Point{X: 160, Y: 40}) || e.To != (Point{X: 400, Y: 240}) {
		t.Fatalf("unexpected anchors %+v -> %+v", e.From, e.To)
	}
	if e.C1 != (Point{X: 280, Y: 40}) || e.C2 != (Point{X: 280, Y: 240}) {
		t.Fatalf("control points should sit on the horizontal midpoint: %+v %+v", e.C1, e.C2)
	}

	loop := edges[1]
	if !loop.SelfLoop || loop.TargetID != "a" {
		t.Fatalf("expected self-loop edge, got %+v", loop)
	}

	head := ArrowHead(e)
	if head[0] != e.To {
		t.Fatalf("arrow tip should sit at the target anchor, got %+v", head[0])
	}
	if head[1].X >= e.To.X || head[2].X >= e.To.X {
		t.Fatalf("arrow base should be behind the tip: %+v", head)
	}
}

func TestHitTestTopmostWins(t *testing.T) {
	scenes := []models.Scene{
		{ID: "under", Position: models.Position{X: 0, Y: 0}},
		{ID: "over", Position: models.Position{X: 100, Y: 40}},
	}
	if id, ok := HitTest(scenes, Point{X: 120, Y: 60}); !ok || id != "over" {
		t.Fatalf("expected over, got %q %v", id, ok)
	}
	if id, ok := HitTest(scenes, Point{X: 10, Y: 10}); !ok || id != "under" {
		t.Fatalf("expected under, got %q %v", id, ok)
	}
	if _, ok := HitTest(scenes, Point{X: -1, Y: -1}); ok {
		t.Fatal("expected background")
	}
}

func TestElideTitle(t *testing.T) {
	cases := map[string]string{
		"Short":                      "Short",
		"Exactly eighteen!!":         "Exactly eighteen!!",
		"This title is far too long": "This title is far …",
		"城堡里的秘密房间和一条通往地下的长长走廊": "城堡里的秘密房间和一条通往地下的长长…",
	}
	for in, want := range cases {
		if got := ElideTitle(in, TitleBudget); got != want {
			t.Errorf("ElideTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRole(t *testing.T) {
	if Role(models.Scene{ID: "s", IsEnding: true}, "s") != RoleEnding {
		t.Error("ending should win over start")
	}
	if Role(models.Scene{ID: "s"}, "s") != RoleStart {
		t.Error("expected start role")
	}
	if Role(models.Scene{ID: "t"}, "s") != RoleOrdinary {
		t.Error("expected ordinary role")
	}
}

func TestBuildFrame(t *testing.T) {
	scenes := twoScenes()
	issues := validation.Scan(validation.StoryRef{}, scenes, "")

	f := BuildFrame(FrameInput{Scenes: scenes, Issues: issues})
	for _, n := range f.Nodes {
		if n.Opacity != 1 || n.Selected {
			t.Fatalf("nothing selected: node %s has opacity %v", n.ID, n.Opacity)
		}
	}
	if f.Camera.Scale != 1 {
		t.Fatalf("zero camera should default to scale 1, got %v", f.Camera.Scale)
	}

	f = BuildFrame(FrameInput{Scenes: scenes, SelectedID: "b", Issues: issues, Camera: viewport.State{Scale: 2}})
	a, b := f.Nodes[0], f.Nodes[1]
	if a.Opacity != unselectedOpacity || b.Opacity != 1 || !b.Selected {
		t.Fatalf("unexpected selection rendering a=%+v b=%+v", a, b)
	}
	if a.Role != RoleStart || b.Role != RoleEnding {
		t.Fatalf("unexpected roles %s %s", a.Role, b.Role)
	}
	if a.Caption != "4 choices" || b.Caption != "0 choices" {
		t.Fatalf("unexpected captions %q %q", a.Caption, b.Caption)
	}
	if a.Title != ElideTitle(scenes[0].Title, TitleBudget) || a.FullTitle != scenes[0].Title {
		t.Fatalf("unexpected titles %q %q", a.Title, a.FullTitle)
	}
	if len(a.Badges) != 0 {
		t.Fatalf("start scene should have no badges, got %+v", a.Badges)
	}
	if len(b.Badges) != 1 || b.Badges[0].Kind != validation.KindMissingImage || b.Badges[0].Glyph != Glyph(validation.KindMissingImage) {
		t.Fatalf("expected a missing_image badge on b, got %+v", b.Badges)
	}
}

func TestBuildFrameKeepsNoState(t *testing.T) {
	scenes := twoScenes()
	first := BuildFrame(FrameInput{Scenes: scenes})
	scenes[1].Position = models.Position{X: 900, Y: 900}
	second := BuildFrame(FrameInput{Scenes: scenes})
	if first.Nodes[1].X == second.Nodes[1].X {
		t.Fatal("frame did not follow the moved scene")
	}
}

func TestRenderSVG(t *testing.T) {
	f := BuildFrame(FrameInput{
		Scenes:     twoScenes(),
		SelectedID: "a",
		Camera:     viewport.State{Scale: 1.5, OffsetX: 20, OffsetY: -10},
	})
	var buf bytes.Buffer
	if err := RenderSVG(&buf, f, 800, 600); err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`transform="translate(20,-10) scale(1.5)"`,
		`data-scene-id="a"`,
		`data-scene-id="b"`,
		colorSelected,
		"<path",
		"<polygon",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("svg output missing %q", want)
		}
	}
	if strings.Count(out, `class="node"`) != 2 {
		t.Errorf("expected two node groups")
	}
}

func TestRenderPNG(t *testing.T) {
	f := BuildFrame(FrameInput{Scenes: twoScenes()})
	var buf bytes.Buffer
	if err := RenderPNG(&buf, f, 320, 240); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("unexpected size %v", b)
	}
	if err := RenderPNG(&buf, f, 0, 10); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestBounds(t *testing.T) {
	r, ok := Bounds(twoScenes())
	if !ok || r.MinX != 0 || r.MinY != 0 || r.MaxX != 560 || r.MaxY != 280 {
		t.Fatalf("unexpected bounds %+v", r)
	}
	if _, ok := Bounds(nil); ok {
		t.Fatal("expected no bounds for empty graph")
	}
}
