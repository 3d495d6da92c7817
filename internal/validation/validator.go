// internal/validation/validator.go
package validation

import (
	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
)

// Option tunes a scan.
type Option func(*scanConfig)

type scanConfig struct {
	broken func(ref string) bool
}

// WithBrokenRefs makes segments whose image reference satisfies isBroken
// count as missing images, e.g. references to deleted assets.
func WithBrokenRefs(isBroken func(ref string) bool) Option {
	return func(c *scanConfig) {
		c.broken = isBroken
	}
}

// Scan runs every check over scenes and returns the issues found, grouped per
// scene in insertion order and, within a scene, in the order missing_image,
// dead_end, orphan. Scan never mutates its input.
//
// startID is resolved with models.ResolveStart, so an empty or stale id falls
// back to the first scene.
func Scan(story StoryRef, scenes []models.Scene, startID string, opts ...Option) []Issue {
	var cfg scanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var issues []Issue
	start := models.ResolveStart(startID, scenes)
	inbound := inboundIndex(scenes)

	for _, s := range scenes {
		ref := SceneRef{ID: s.ID, Title: s.Title}

		if mi, ok := checkImages(s, cfg.broken); ok {
			mi.SceneRef = ref
			mi.StoryRef = story
			issues = append(issues, mi)
		}
		if isDeadEnd(s) {
			issues = append(issues, DeadEnd{SceneRef: ref, StoryRef: story})
		}
		if s.ID != start && inbound[s.ID] == 0 {
			issues = append(issues, Orphan{SceneRef: ref, StoryRef: story})
		}
	}
	return issues
}

// ScanModel scans the current state of a graph model.
func ScanModel(story StoryRef, m *graph.Model, opts ...Option) []Issue {
	return Scan(story, m.Scenes(), m.StartSceneID(), opts...)
}

func checkImages(s models.Scene, broken func(string) bool) (MissingImage, bool) {
	if len(s.Segments) == 0 {
		return MissingImage{NoSegments: true}, true
	}
	var mi MissingImage
	for i, seg := range s.Segments {
		switch {
		case seg.Image == "":
			mi.EmptySegments = append(mi.EmptySegments, i)
		case broken != nil && broken(seg.Image):
			mi.BrokenSegments = append(mi.BrokenSegments, i)
		}
	}
	if len(mi.EmptySegments) == 0 && len(mi.BrokenSegments) == 0 {
		return MissingImage{}, false
	}
	return mi, true
}

// isDeadEnd: a non-ending scene with no choices at all. Choices whose target
// is missing or dangling still count as choices here.
func isDeadEnd(s models.Scene) bool {
	return !s.IsEnding && len(s.Choices) == 0
}

// inboundIndex counts, per scene id, the choices in other scenes that target
// it. Self-loops are not counted.
func inboundIndex(scenes []models.Scene) map[string]int {
	in := make(map[string]int, len(scenes))
	for _, s := range scenes {
		for _, c := range s.Choices {
			target, ok := c.Target()
			if !ok || target == s.ID {
				continue
			}
			in[target]++
		}
	}
	return in
}
