// internal/canvas/geometry.go
package canvas

import (
	"math"

	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/viewport"
)

// 节点尺寸 (world units)
const (
	NodeWidth    = 160.0
	NodeHeight   = 80.0
	HeaderHeight = 22.0

	// TitleBudget is the number of characters shown before a title is elided.
	TitleBudget = 18
	Ellipsis    = "…"

	arrowLength = 10.0
	arrowWidth  = 5.0
	loopRise    = 70.0
	loopReach   = 60.0
)

type Point = viewport.Point

// Edge is one drawable choice: a cubic Bezier from the source anchor to the
// target anchor.
type Edge struct {
	SceneID  string `json:"scene_id"`
	ChoiceID string `json:"choice_id"`
	TargetID string `json:"target_id"`
	From     Point  `json:"from"`
	C1       Point  `json:"c1"`
	C2       Point  `json:"c2"`
	To       Point  `json:"to"`
	SelfLoop bool   `json:"self_loop,omitempty"`
}

// SourceAnchor is the right-middle of a node box.
func SourceAnchor(pos models.Position) Point {
	return Point{X: pos.X + NodeWidth, Y: pos.Y + NodeHeight/2}
}

// TargetAnchor is the left-middle of a node box.
func TargetAnchor(pos models.Position) Point {
	return Point{X: pos.X, Y: pos.Y + NodeHeight/2}
}

// Curve returns the control points for an edge between two anchors. Both
// sit on the horizontal midpoint, one at each anchor's height.
func Curve(from, to Point) (Point, Point) {
	midX := (from.X + to.X) / 2
	return Point{X: midX, Y: from.Y}, Point{X: midX, Y: to.Y}
}

// Edges lists every choice whose target resolves to an existing scene, in
// scene then choice order. Choices without a target or with a dangling one
// are skipped.
func Edges(scenes []models.Scene) []Edge {
	pos := make(map[string]models.Position, len(scenes))
	for _, s := range scenes {
		pos[s.ID] = s.Position
	}

	var edges []Edge
	for _, s := range scenes {
		for _, c := range s.Choices {
			target, ok := c.Target()
			if !ok {
				continue
			}
			tp, ok := pos[target]
			if !ok {
				continue
			}
			e := Edge{
				SceneID:  s.ID,
				ChoiceID: c.ID,
				TargetID: target,
				From:     SourceAnchor(s.Position),
				To:       TargetAnchor(tp),
				SelfLoop: target == s.ID,
			}
			if e.SelfLoop {
				// loop over the top of the box instead of through it
				e.C1 = Point{X: e.From.X + loopReach, Y: e.From.Y - loopRise}
				e.C2 = Point{X: e.To.X - loopReach, Y: e.To.Y - loopRise}
			} else {
				e.C1, e.C2 = Curve(e.From, e.To)
			}
			edges = append(edges, e)
		}
	}
	return edges
}

// ArrowHead returns the three corners of the arrowhead at the target end,
// tip first. The head points along the curve's final tangent.
func ArrowHead(e Edge) [3]Point {
	dx := e.To.X - e.C2.X
	dy := e.To.Y - e.C2.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		dx, dy, d = 1, 0, 1
	}
	dx /= d
	dy /= d
	px, py := -dy, dx

	base := Point{X: e.To.X - dx*arrowLength, Y: e.To.Y - dy*arrowLength}
	return [3]Point{
		e.To,
		{X: base.X + px*arrowWidth, Y: base.Y + py*arrowWidth},
		{X: base.X - px*arrowWidth, Y: base.Y - py*arrowWidth},
	}
}

// Contains reports whether a world point lies inside the node box at pos.
func Contains(pos models.Position, p Point) bool {
	return p.X >= pos.X && p.X <= pos.X+NodeWidth &&
		p.Y >= pos.Y && p.Y <= pos.Y+NodeHeight
}

// HitTest returns the node under a world point. Nodes are drawn in order, so
// the last match is the one on top.
func HitTest(scenes []models.Scene, p Point) (string, bool) {
	for i := len(scenes) - 1; i >= 0; i-- {
		if Contains(scenes[i].Position, p) {
			return scenes[i].ID, true
		}
	}
	return "", false
}

// Bounds is the world-space box around every node.
func Bounds(scenes []models.Scene) (viewport.Rect, bool) {
	if len(scenes) == 0 {
		return viewport.Rect{}, false
	}
	r := viewport.Rect{
		MinX: scenes[0].Position.X,
		MinY: scenes[0].Position.Y,
		MaxX: scenes[0].Position.X + NodeWidth,
		MaxY: scenes[0].Position.Y + NodeHeight,
	}
	for _, s := range scenes[1:] {
		r.MinX = math.Min(r.MinX, s.Position.X)
		r.MinY = math.Min(r.MinY, s.Position.Y)
		r.MaxX = math.Max(r.MaxX, s.Position.X+NodeWidth)
		r.MaxY = math.Max(r.MaxY, s.Position.Y+NodeHeight)
	}
	return r, true
}

// ElideTitle shortens title to budget characters plus an ellipsis.
func ElideTitle(title string, budget int) string {
	runes := []rune(title)
	if budget <= 0 || len(runes) <= budget {
		return title
	}
	return string(runes[:budget]) + Ellipsis
}

// NodeRole decides the header colour of a node.
type NodeRole string

const (
	RoleOrdinary NodeRole = "ordinary"
	RoleStart    NodeRole = "start"
	RoleEnding   NodeRole = "ending"
)

// Role classifies a scene. An ending that is also the start is drawn as an
// ending.
func Role(s models.Scene, startID string) NodeRole {
	switch {
	case s.IsEnding:
		return RoleEnding
	case s.ID == startID:
		return RoleStart
	default:
		return RoleOrdinary
	}
}
