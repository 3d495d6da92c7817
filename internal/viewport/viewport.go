// internal/viewport/viewport.go
package viewport

import "math"

const (
	MinScale = 0.2
	MaxScale = 3.0

	// ZoomSensitivity converts wheel delta units into a scale change.
	ZoomSensitivity = 0.001
)

// Point is a 2D coordinate, in screen or world units depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box in world units.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// State is a serialisable camera snapshot.
type State struct {
	Scale     float64 `json:"scale"`
	OffsetX   float64 `json:"offset_x"`
	OffsetY   float64 `json:"offset_y"`
	IsPanning bool    `json:"is_panning"`
}

// Controller maps between screen and world coordinates:
//
//	screen = world*scale + offset
//
// The zero value is not usable; call New.
type Controller struct {
	scale   float64
	offset  Point
	panning bool

	panStart      Point
	offsetAtStart Point
}

// New returns a controller at scale 1 with no offset.
func New() *Controller {
	return &Controller{scale: 1}
}

// Scale returns the current zoom factor.
func (c *Controller) Scale() float64 { return c.scale }

// Offset returns the current screen-space translation.
func (c *Controller) Offset() Point { return c.offset }

// IsPanning reports whether a pan gesture is in progress.
func (c *Controller) IsPanning() bool { return c.panning }

// Wheel routes a scroll event: with the zoom modifier held the vertical delta
// zooms, otherwise both axes pan in the natural direction.
func (c *Controller) Wheel(dx, dy float64, zoomModifier bool) {
	if zoomModifier {
		c.ZoomAt(dy)
		return
	}
	c.PanBy(-dx, -dy)
}

// ZoomAt changes the scale by a wheel delta. The offset is left unchanged so
// the zoom anchors at the world origin rather than the cursor.
func (c *Controller) ZoomAt(delta float64) {
	if math.IsNaN(delta) {
		return
	}
	c.scale = clamp(c.scale-delta*ZoomSensitivity, MinScale, MaxScale)
}

// PanBy translates the camera by a screen-space delta.
func (c *Controller) PanBy(dx, dy float64) {
	c.offset.X += dx
	c.offset.Y += dy
}

// BeginPan starts a drag pan at screen point p.
func (c *Controller) BeginPan(p Point) {
	c.panning = true
	c.panStart = p
	c.offsetAtStart = c.offset
}

// ContinuePan moves the camera so that the world point under the pan start
// follows the pointer. It is a no-op when no pan is active.
func (c *Controller) ContinuePan(p Point) {
	if !c.panning {
		return
	}
	c.offset = Point{
		X: c.offsetAtStart.X + (p.X - c.panStart.X),
		Y: c.offsetAtStart.Y + (p.Y - c.panStart.Y),
	}
}

// EndPan finishes the pan gesture.
func (c *Controller) EndPan() {
	c.panning = false
}

// ScreenToWorld converts a screen point into world coordinates.
func (c *Controller) ScreenToWorld(p Point) Point {
	return Point{
		X: (p.X - c.offset.X) / c.scale,
		Y: (p.Y - c.offset.Y) / c.scale,
	}
}

// WorldToScreen converts a world point into screen coordinates.
func (c *Controller) WorldToScreen(p Point) Point {
	return Point{
		X: p.X*c.scale + c.offset.X,
		Y: p.Y*c.scale + c.offset.Y,
	}
}

// ResetView restores scale 1 and zero offset.
func (c *Controller) ResetView() {
	c.scale = 1
	c.offset = Point{}
	c.panning = false
}

// FitBounds zooms and pans so that bounds fills a viewW x viewH view with the
// given padding on every side. Degenerate bounds keep the current scale.
func (c *Controller) FitBounds(bounds Rect, viewW, viewH, padding float64) {
	gw := bounds.MaxX - bounds.MinX
	gh := bounds.MaxY - bounds.MinY
	if gw <= 0 {
		gw = 1
	}
	if gh <= 0 {
		gh = 1
	}
	sx := (viewW - 2*padding) / gw
	sy := (viewH - 2*padding) / gh
	s := math.Min(sx, sy)
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		s = c.scale
	}
	s = clamp(s, MinScale, MaxScale)

	// center the box after clamping so an oversize graph stays in the middle
	c.scale = s
	c.offset = Point{
		X: viewW/2 - (bounds.MinX+gw/2)*s,
		Y: viewH/2 - (bounds.MinY+gh/2)*s,
	}
}

// FocusPoint centers the view on a world point at the current scale.
func (c *Controller) FocusPoint(p Point, viewW, viewH float64) {
	c.offset = Point{
		X: viewW/2 - p.X*c.scale,
		Y: viewH/2 - p.Y*c.scale,
	}
}

// State returns a snapshot of the camera.
func (c *Controller) State() State {
	return State{
		Scale:     c.scale,
		OffsetX:   c.offset.X,
		OffsetY:   c.offset.Y,
		IsPanning: c.panning,
	}
}

// SetState restores a snapshot. The scale is clamped and an in-progress pan
// is never restored.
func (c *Controller) SetState(s State) {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	c.scale = clamp(scale, MinScale, MaxScale)
	c.offset = Point{X: s.OffsetX, Y: s.OffsetY}
	c.panning = false
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
