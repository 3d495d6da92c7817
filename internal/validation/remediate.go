// internal/validation/remediate.go
package validation

import "github.com/90n9/talepick/internal/graph"

// FixMissingImages resolves every missing_image issue in one mutation pass:
// empty segment images get the placeholder and scenes without segments get a
// single placeholder segment. It returns the number of segments touched.
func FixMissingImages(m *graph.Model, placeholder string) int {
	return m.FillMissingImages(placeholder)
}
