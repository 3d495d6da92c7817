// internal/canvas/palette.go
package canvas

import (
	"image/color"
	"strconv"

	"github.com/90n9/talepick/internal/validation"
)

const (
	colorBackground = "#0f172a"
	colorNodeBody   = "#1e293b"
	colorBorder     = "#475569"
	colorSelected   = "#f59e0b"
	colorTitle      = "#f8fafc"
	colorCaption    = "#94a3b8"
	colorEdge       = "#64748b"
	borderWidth     = 1.5
	selectedBorderW = 3.0
	cornerRadius    = 8.0
	badgeRadius     = 8.0
	badgeSpacing    = 19.0
)

var roleColors = map[NodeRole]string{
	RoleStart:    "#16a34a",
	RoleEnding:   "#9333ea",
	RoleOrdinary: "#2563eb",
}

var severityColors = map[validation.Severity]string{
	validation.SeverityHigh:   "#dc2626",
	validation.SeverityMedium: "#f97316",
	validation.SeverityLow:    "#eab308",
}

func headerColor(r NodeRole) string {
	if c, ok := roleColors[r]; ok {
		return c
	}
	return roleColors[RoleOrdinary]
}

func badgeColor(s validation.Severity) string {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return colorCaption
}

// nrgba parses "#rrggbb" and applies an opacity in [0,1].
func nrgba(hex string, opacity float64) color.NRGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.NRGBA{A: 255}
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: uint8(opacity*255 + 0.5),
	}
}
