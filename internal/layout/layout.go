// internal/layout/layout.go
package layout

import (
	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
)

// 网格布局参数 (world units)
const (
	Columns     = 3
	ColumnPitch = 350.0
	RowPitch    = 250.0
	OriginX     = 100.0
	OriginY     = 100.0
)

// Grid returns n positions in reading order: index i goes to column i%Columns
// and row i/Columns.
func Grid(n int) []models.Position {
	if n <= 0 {
		return nil
	}
	out := make([]models.Position, n)
	for i := range out {
		out[i] = Cell(i)
	}
	return out
}

// Cell returns the grid position of the i-th scene.
func Cell(i int) models.Position {
	col := i % Columns
	row := i / Columns
	return models.Position{
		X: OriginX + float64(col)*ColumnPitch,
		Y: OriginY + float64(row)*RowPitch,
	}
}

// AutoLayout overwrites every scene position in m with its grid cell and
// returns the number of scenes placed.
func AutoLayout(m *graph.Model) int {
	moved := 0
	for i, s := range m.Scenes() {
		if m.MoveScene(s.ID, Cell(i)) {
			moved++
		}
	}
	return moved
}

// Apply places a plain scene slice in place, for callers without a Model.
func Apply(scenes []models.Scene) {
	for i := range scenes {
		scenes[i].Position = Cell(i)
	}
}
