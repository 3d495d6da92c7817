// internal/canvas/svg.go
package canvas

import (
	"fmt"
	"html"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

const fontStack = "font-family:system-ui,sans-serif"

// RenderSVG paints a frame as a width x height SVG document. The camera is
// applied once, as translate(offset) then scale, around all graph content.
func RenderSVG(w io.Writer, f Frame, width, height int) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+colorBackground)

	canvas.Gtransform(fmt.Sprintf("translate(%g,%g) scale(%g)", f.Camera.OffsetX, f.Camera.OffsetY, f.Camera.Scale))
	for _, e := range f.Edges {
		drawEdgeSVG(canvas, e)
	}
	for _, n := range f.Nodes {
		drawNodeSVG(canvas, n)
	}
	canvas.Gend()

	canvas.End()
	return ew.err
}

func drawEdgeSVG(canvas *svg.SVG, e Edge) {
	d := fmt.Sprintf("M %.1f %.1f C %.1f %.1f %.1f %.1f %.1f %.1f",
		e.From.X, e.From.Y, e.C1.X, e.C1.Y, e.C2.X, e.C2.Y, e.To.X, e.To.Y)
	canvas.Path(d, fmt.Sprintf("fill:none;stroke:%s;stroke-width:2", colorEdge))

	head := ArrowHead(e)
	canvas.Polygon(
		[]int{round(head[0].X), round(head[1].X), round(head[2].X)},
		[]int{round(head[0].Y), round(head[1].Y), round(head[2].Y)},
		"fill:"+colorEdge,
	)
}

func drawNodeSVG(canvas *svg.SVG, n Node) {
	x, y := round(n.X), round(n.Y)
	w, h := round(n.Width), round(n.Height)

	canvas.Group(
		`class="node"`,
		fmt.Sprintf(`data-scene-id="%s"`, html.EscapeString(n.ID)),
		fmt.Sprintf("opacity:%g", n.Opacity),
	)
	canvas.Title(n.FullTitle)

	stroke, strokeW := colorBorder, borderWidth
	if n.Selected {
		stroke, strokeW = colorSelected, selectedBorderW
	}
	r := int(cornerRadius)
	canvas.Roundrect(x, y, w, h, r, r,
		fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%g", colorNodeBody, stroke, strokeW))
	canvas.Path(headerPath(n.X, n.Y, n.Width), "fill:"+headerColor(n.Role))

	canvas.Text(x+10, y+15, n.Title,
		fmt.Sprintf("fill:%s;font-size:12px;font-weight:600;%s", colorTitle, fontStack))
	canvas.Text(x+10, y+int(HeaderHeight)+26, n.Caption,
		fmt.Sprintf("fill:%s;font-size:11px;%s", colorCaption, fontStack))

	for i, b := range n.Badges {
		bx, by := badgeCenter(n, i)
		canvas.Circle(round(bx), round(by), int(badgeRadius), "fill:"+badgeColor(b.Severity))
		canvas.Text(round(bx), round(by)+4, b.Glyph,
			fmt.Sprintf("fill:#fff;font-size:10px;font-weight:bold;text-anchor:middle;%s", fontStack))
	}
	canvas.Gend()
}

// headerPath is the top strip of a node, rounded on the top corners only.
func headerPath(x, y, w float64) string {
	r := cornerRadius
	return fmt.Sprintf("M %.1f %.1f L %.1f %.1f Q %.1f %.1f %.1f %.1f L %.1f %.1f Q %.1f %.1f %.1f %.1f L %.1f %.1f Z",
		x, y+HeaderHeight,
		x, y+r, x, y, x+r, y,
		x+w-r, y, x+w, y, x+w, y+r,
		x+w, y+HeaderHeight)
}

// badgeCenter lays badges out right-to-left along the node's bottom edge.
func badgeCenter(n Node, i int) (float64, float64) {
	return n.X + n.Width - badgeRadius - 4 - float64(i)*badgeSpacing,
		n.Y + n.Height - badgeRadius - 4
}

func round(v float64) int {
	return int(math.Round(v))
}

// errWriter keeps the first write error so svgo's error-free API can still
// report failures.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return len(p), nil
	}
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = err
	}
	return n, err
}
