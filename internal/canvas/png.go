// internal/canvas/png.go
package canvas

import (
	"fmt"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func loadFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(gomono.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("failed to parse font: %w", fontErr)
	}
	return truetype.NewFace(fontTTF, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// RenderPNG rasterises a frame to a width x height PNG, using the same camera
// transform order as RenderSVG.
func RenderPNG(w io.Writer, f Frame, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	titleFace, err := loadFace(12)
	if err != nil {
		return err
	}
	smallFace, err := loadFace(10)
	if err != nil {
		return err
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(nrgba(colorBackground, 1))
	dc.Clear()

	dc.Push()
	dc.Translate(f.Camera.OffsetX, f.Camera.OffsetY)
	dc.Scale(f.Camera.Scale, f.Camera.Scale)

	// edges first so boxes sit on top of them
	for _, e := range f.Edges {
		drawEdgePNG(dc, e)
	}
	for _, n := range f.Nodes {
		drawNodePNG(dc, n, titleFace, smallFace)
	}
	dc.Pop()

	return dc.EncodePNG(w)
}

func drawEdgePNG(dc *gg.Context, e Edge) {
	dc.SetColor(nrgba(colorEdge, 1))
	dc.SetLineWidth(2)
	dc.MoveTo(e.From.X, e.From.Y)
	dc.CubicTo(e.C1.X, e.C1.Y, e.C2.X, e.C2.Y, e.To.X, e.To.Y)
	dc.Stroke()

	head := ArrowHead(e)
	dc.MoveTo(head[0].X, head[0].Y)
	dc.LineTo(head[1].X, head[1].Y)
	dc.LineTo(head[2].X, head[2].Y)
	dc.ClosePath()
	dc.Fill()
}

func drawNodePNG(dc *gg.Context, n Node, titleFace, smallFace font.Face) {
	a := n.Opacity

	dc.DrawRoundedRectangle(n.X, n.Y, n.Width, n.Height, cornerRadius)
	dc.SetColor(nrgba(colorNodeBody, a))
	dc.FillPreserve()
	if n.Selected {
		dc.SetColor(nrgba(colorSelected, a))
		dc.SetLineWidth(selectedBorderW)
	} else {
		dc.SetColor(nrgba(colorBorder, a))
		dc.SetLineWidth(borderWidth)
	}
	dc.Stroke()

	dc.Push()
	dc.DrawRoundedRectangle(n.X, n.Y, n.Width, n.Height, cornerRadius)
	dc.Clip()
	dc.DrawRectangle(n.X, n.Y, n.Width, HeaderHeight)
	dc.SetColor(nrgba(headerColor(n.Role), a))
	dc.Fill()
	dc.ResetClip()
	dc.Pop()

	dc.SetFontFace(titleFace)
	dc.SetColor(nrgba(colorTitle, a))
	dc.DrawString(n.Title, n.X+10, n.Y+15)

	dc.SetFontFace(smallFace)
	dc.SetColor(nrgba(colorCaption, a))
	dc.DrawString(n.Caption, n.X+10, n.Y+HeaderHeight+26)

	for i, b := range n.Badges {
		bx, by := badgeCenter(n, i)
		dc.DrawCircle(bx, by, badgeRadius)
		dc.SetColor(nrgba(badgeColor(b.Severity), a))
		dc.Fill()
		dc.SetColor(nrgba("#ffffff", a))
		dc.DrawStringAnchored(b.Glyph, bx, by, 0.5, 0.35)
	}
}
