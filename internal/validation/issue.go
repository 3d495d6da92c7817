// internal/validation/issue.go
package validation

import "fmt"

// Kind identifies an issue variant.
type Kind string

const (
	KindMissingImage Kind = "missing_image"
	KindDeadEnd      Kind = "dead_end"
	KindOrphan       Kind = "orphan"
)

// Kinds lists every issue kind in scan order.
var Kinds = []Kind{KindMissingImage, KindDeadEnd, KindOrphan}

// Severity ranks how urgently an issue needs fixing.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities, higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// StoryRef identifies the story a scan ran against.
type StoryRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SceneRef identifies the scene an issue is about.
type SceneRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Issue is a single validator finding. The set of implementations is closed:
// MissingImage, DeadEnd and Orphan.
type Issue interface {
	Kind() Kind
	Severity() Severity
	Scene() SceneRef
	Story() StoryRef
	Message() string
	issue()
}

// MissingImage reports a scene without segments or with image-less segments.
type MissingImage struct {
	SceneRef SceneRef
	StoryRef StoryRef
	// NoSegments is set when the scene has no segments at all.
	NoSegments bool
	// EmptySegments lists indexes of segments with an empty image.
	EmptySegments []int
	// BrokenSegments lists indexes of segments whose image points at a
	// deleted asset.
	BrokenSegments []int
}

func (MissingImage) Kind() Kind         { return KindMissingImage }
func (MissingImage) Severity() Severity { return SeverityMedium }
func (i MissingImage) Scene() SceneRef  { return i.SceneRef }
func (i MissingImage) Story() StoryRef  { return i.StoryRef }
func (MissingImage) issue()             {}

func (i MissingImage) Message() string {
	if i.NoSegments {
		return "scene has no segments"
	}
	if len(i.BrokenSegments) > 0 {
		return fmt.Sprintf("%d segment(s) without an image, %d pointing at deleted assets",
			len(i.EmptySegments), len(i.BrokenSegments))
	}
	return fmt.Sprintf("%d segment(s) without an image", len(i.EmptySegments))
}

// DeadEnd reports a non-ending scene with no choices.
type DeadEnd struct {
	SceneRef SceneRef
	StoryRef StoryRef
}

func (DeadEnd) Kind() Kind         { return KindDeadEnd }
func (DeadEnd) Severity() Severity { return SeverityHigh }
func (i DeadEnd) Scene() SceneRef  { return i.SceneRef }
func (i DeadEnd) Story() StoryRef  { return i.StoryRef }
func (DeadEnd) issue()             {}

func (DeadEnd) Message() string {
	return "scene is not an ending and has no choices"
}

// Orphan reports a non-start scene that no other scene leads to.
type Orphan struct {
	SceneRef SceneRef
	StoryRef StoryRef
}

func (Orphan) Kind() Kind         { return KindOrphan }
func (Orphan) Severity() Severity { return SeverityLow }
func (i Orphan) Scene() SceneRef  { return i.SceneRef }
func (i Orphan) Story() StoryRef  { return i.StoryRef }
func (Orphan) issue()             {}

func (Orphan) Message() string {
	return "no choice in another scene leads here"
}

// Record is the flat, serialisable form of an Issue.
type Record struct {
	Kind       Kind                   `json:"kind"`
	Severity   Severity               `json:"severity"`
	SceneID    string                 `json:"scene_id"`
	SceneTitle string                 `json:"scene_title"`
	StoryID    string                 `json:"story_id"`
	StoryTitle string                 `json:"story_title"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// ToRecord flattens an issue.
func ToRecord(i Issue) Record {
	r := Record{
		Kind:       i.Kind(),
		Severity:   i.Severity(),
		SceneID:    i.Scene().ID,
		SceneTitle: i.Scene().Title,
		StoryID:    i.Story().ID,
		StoryTitle: i.Story().Title,
		Message:    i.Message(),
	}
	if mi, ok := i.(MissingImage); ok {
		r.Details = map[string]interface{}{
			"no_segments":    mi.NoSegments,
			"empty_segments": mi.EmptySegments,
		}
		if len(mi.BrokenSegments) > 0 {
			r.Details["broken_segments"] = mi.BrokenSegments
		}
	}
	return r
}

// Records flattens a list of issues, preserving order.
func Records(issues []Issue) []Record {
	out := make([]Record, 0, len(issues))
	for _, i := range issues {
		out = append(out, ToRecord(i))
	}
	return out
}

// Summary counts issues by kind and severity.
type Summary struct {
	Total      int              `json:"total"`
	ByKind     map[Kind]int     `json:"by_kind"`
	BySeverity map[Severity]int `json:"by_severity"`
}

// Summarize counts issues.
func Summarize(issues []Issue) Summary {
	s := Summary{
		Total:      len(issues),
		ByKind:     make(map[Kind]int, len(Kinds)),
		BySeverity: make(map[Severity]int, 3),
	}
	for _, i := range issues {
		s.ByKind[i.Kind()]++
		s.BySeverity[i.Severity()]++
	}
	return s
}

// HasSeverity reports whether any issue is at least as severe as min.
func HasSeverity(issues []Issue, min Severity) bool {
	for _, i := range issues {
		if i.Severity().Rank() >= min.Rank() {
			return true
		}
	}
	return false
}

// BySceneID groups issues by affected scene, preserving scan order.
func BySceneID(issues []Issue) map[string][]Issue {
	out := make(map[string][]Issue)
	for _, i := range issues {
		id := i.Scene().ID
		out[id] = append(out[id], i)
	}
	return out
}
