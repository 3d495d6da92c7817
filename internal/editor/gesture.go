// internal/editor/gesture.go
package editor

import (
	"math"

	"github.com/90n9/talepick/internal/canvas"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/textmode"
	"github.com/90n9/talepick/internal/viewport"
)

// GestureKind says what the current pointer drag targets.
type GestureKind string

const (
	GestureIdle     GestureKind = "idle"
	GesturePanning  GestureKind = "panning_camera"
	GestureDragging GestureKind = "dragging_node"
)

// clickSlop is how far, in screen pixels, a press may travel and still count
// as a click.
const clickSlop = 3.0

// Gesture is the drag discriminator. It is fixed on pointer down and only
// consulted afterwards, so one physical drag moves either the camera or a
// single node, never both.
type Gesture struct {
	Kind    GestureKind `json:"kind"`
	SceneID string      `json:"scene_id,omitempty"`

	start viewport.Point
	grab  viewport.Point
	moved bool
}

// Gesture returns the gesture in progress.
func (s *Session) Gesture() Gesture {
	if s.gesture.Kind == "" {
		return Gesture{Kind: GestureIdle}
	}
	return s.gesture
}

// PointerDown starts a gesture at a screen point. A press on a node selects it
// and starts dragging it; a press on the background starts a camera pan.
func (s *Session) PointerDown(p viewport.Point) Gesture {
	if s.text.Mode() == textmode.ModeText {
		return s.Gesture()
	}
	s.cancelGesture()

	world := s.camera.ScreenToWorld(p)
	if id, ok := canvas.HitTest(s.model.Scenes(), world); ok {
		scene, _ := s.model.Scene(id)
		s.selected = id
		s.gesture = Gesture{
			Kind:    GestureDragging,
			SceneID: id,
			start:   p,
			grab:    viewport.Point{X: world.X - scene.Position.X, Y: world.Y - scene.Position.Y},
		}
		return s.gesture
	}

	s.camera.BeginPan(p)
	s.gesture = Gesture{Kind: GesturePanning, start: p}
	return s.gesture
}

// PointerMove advances the active gesture.
func (s *Session) PointerMove(p viewport.Point) {
	switch s.gesture.Kind {
	case GestureDragging:
		world := s.camera.ScreenToWorld(p)
		s.model.MoveScene(s.gesture.SceneID, models.Position{
			X: world.X - s.gesture.grab.X,
			Y: world.Y - s.gesture.grab.Y,
		})
		s.markMoved(p)
	case GesturePanning:
		s.camera.ContinuePan(p)
		s.markMoved(p)
	}
}

// PointerUp ends the active gesture. A background press that never moved is
// a click on empty canvas and clears the selection.
func (s *Session) PointerUp(p viewport.Point) {
	switch s.gesture.Kind {
	case GestureDragging:
		s.PointerMove(p)
	case GesturePanning:
		s.camera.ContinuePan(p)
		s.markMoved(p)
		s.camera.EndPan()
		if !s.gesture.moved {
			s.selected = ""
		}
	}
	s.gesture = Gesture{Kind: GestureIdle}
}

func (s *Session) markMoved(p viewport.Point) {
	if math.Hypot(p.X-s.gesture.start.X, p.Y-s.gesture.start.Y) > clickSlop {
		s.gesture.moved = true
	}
}

func (s *Session) cancelGesture() {
	if s.gesture.Kind == GesturePanning {
		s.camera.EndPan()
	}
	s.gesture = Gesture{Kind: GestureIdle}
}
