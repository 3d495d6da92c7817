// internal/canvas/frame.go
package canvas

import (
	"fmt"

	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/validation"
	"github.com/90n9/talepick/internal/viewport"
)

const (
	selectedOpacity   = 1.0
	unselectedOpacity = 0.85
)

// badge glyphs, one per issue kind
var glyphs = map[validation.Kind]string{
	validation.KindMissingImage: "I",
	validation.KindDeadEnd:      "!",
	validation.KindOrphan:       "?",
}

// Glyph returns the badge glyph for an issue kind.
func Glyph(k validation.Kind) string {
	if g, ok := glyphs[k]; ok {
		return g
	}
	return "*"
}

// Badge marks an issue kind on a node.
type Badge struct {
	Kind     validation.Kind     `json:"kind"`
	Severity validation.Severity `json:"severity"`
	Glyph    string              `json:"glyph"`
}

// Node is one drawable scene box.
type Node struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	FullTitle string   `json:"full_title"`
	Caption   string   `json:"caption"`
	Role      NodeRole `json:"role"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Width     float64  `json:"width"`
	Height    float64  `json:"height"`
	Badges    []Badge  `json:"badges,omitempty"`
	Selected  bool     `json:"selected"`
	Opacity   float64  `json:"opacity"`
}

// Frame is everything needed to paint one picture of the graph.
type Frame struct {
	Camera viewport.State `json:"camera"`
	Edges  []Edge         `json:"edges"`
	Nodes  []Node         `json:"nodes"`
}

// FrameInput is the live state a frame is derived from.
type FrameInput struct {
	Scenes     []models.Scene
	StartID    string
	SelectedID string
	Issues     []validation.Issue
	Camera     viewport.State
}

// BuildFrame derives a frame from the current state. It keeps nothing
// between calls.
func BuildFrame(in FrameInput) Frame {
	start := models.ResolveStart(in.StartID, in.Scenes)
	byScene := validation.BySceneID(in.Issues)

	camera := in.Camera
	if camera.Scale == 0 {
		camera.Scale = 1
	}

	f := Frame{
		Camera: camera,
		Edges:  Edges(in.Scenes),
		Nodes:  make([]Node, 0, len(in.Scenes)),
	}
	for _, s := range in.Scenes {
		selected := in.SelectedID != "" && s.ID == in.SelectedID
		opacity := selectedOpacity
		if in.SelectedID != "" && !selected {
			opacity = unselectedOpacity
		}
		f.Nodes = append(f.Nodes, Node{
			ID:        s.ID,
			Title:     ElideTitle(s.Title, TitleBudget),
			FullTitle: s.Title,
			Caption:   choiceCaption(len(s.Choices)),
			Role:      Role(s, start),
			X:         s.Position.X,
			Y:         s.Position.Y,
			Width:     NodeWidth,
			Height:    NodeHeight,
			Badges:    badges(byScene[s.ID]),
			Selected:  selected,
			Opacity:   opacity,
		})
	}
	return f
}

func choiceCaption(n int) string {
	if n == 1 {
		return "1 choice"
	}
	return fmt.Sprintf("%d choices", n)
}

// badges returns one badge per distinct kind, in canonical kind order.
func badges(issues []validation.Issue) []Badge {
	if len(issues) == 0 {
		return nil
	}
	seen := make(map[validation.Kind]validation.Severity, len(issues))
	for _, i := range issues {
		seen[i.Kind()] = i.Severity()
	}
	out := make([]Badge, 0, len(seen))
	for _, k := range validation.Kinds {
		if sev, ok := seen[k]; ok {
			out = append(out, Badge{Kind: k, Severity: sev, Glyph: Glyph(k)})
		}
	}
	return out
}
