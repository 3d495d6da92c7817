// internal/editor/session.go
package editor

import (
	"errors"

	"github.com/90n9/talepick/internal/assets"
	"github.com/90n9/talepick/internal/canvas"
	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/layout"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/textmode"
	"github.com/90n9/talepick/internal/validation"
	"github.com/90n9/talepick/internal/viewport"
)

var (
	ErrTextModeActive  = errors.New("graph is being edited as text")
	ErrSceneNotFound   = errors.New("scene not found")
	ErrSegmentNotFound = errors.New("segment not found")
	ErrAssetNotFound   = errors.New("asset not found")
)

// fitPadding is the screen margin kept around the graph by FitView.
const fitPadding = 40.0

// Options configures a session.
type Options struct {
	// TextFormat is the notation used in text mode; JSON when empty.
	TextFormat textmode.Format
	// PlaceholderImage is assigned by FixMissingImages.
	PlaceholderImage string
}

// Session is the editing state of one open story: its graph, assets, camera,
// selection, text mode, last scan and the current pointer gesture.
//
// A session is not safe for concurrent use except for the save guard.
type Session struct {
	story   validation.StoryRef
	opts    Options
	model   *graph.Model
	lib     *assets.Library
	tracker *assets.Tracker
	media   assets.StoryMedia
	camera  *viewport.Controller
	text    *textmode.Sync

	selected string
	issues   []validation.Issue
	scanned  bool
	gesture  Gesture

	save saveGuard
}

// New opens a session on a copy of story.
func New(story *models.Story, opts Options) *Session {
	m := graph.New(story.Scenes, story.StartSceneID)
	lib := assets.NewLibrary(story.Assets)

	s := &Session{
		story:  validation.StoryRef{ID: story.ID, Title: story.Title},
		opts:   opts,
		model:  m,
		lib:    lib,
		media:  assets.MediaOf(story),
		camera: viewport.New(),
		text:   textmode.NewSync(m, opts.TextFormat),
	}
	s.tracker = assets.NewTracker(lib, m, s)
	s.tracker.Restore(story.DeletedAssetURLs)
	return s
}

// StoryRef identifies the story being edited.
func (s *Session) StoryRef() validation.StoryRef { return s.story }

// Scenes returns a copy of the current scenes.
func (s *Session) Scenes() []models.Scene { return s.model.Scenes() }

// Version is the graph model's mutation counter.
func (s *Session) Version() uint64 { return s.model.Version() }

// Media returns the story-level media fields. It makes the session an
// assets.MediaSource.
func (s *Session) Media() assets.StoryMedia {
	out := s.media
	out.Gallery = append([]models.GalleryItem(nil), s.media.Gallery...)
	return out
}

// Assets returns the story's asset list.
func (s *Session) Assets() []models.Asset { return s.lib.List() }

// Camera exposes the viewport for direct camera control.
func (s *Session) Camera() *viewport.Controller { return s.camera }

// Edit runs a graph mutation. Mutations are refused while the graph is shown
// as text, because leaving text mode replaces the whole collection.
func (s *Session) Edit(fn func(m *graph.Model) error) error {
	if s.text.Mode() == textmode.ModeText {
		return ErrTextModeActive
	}
	return fn(s.model)
}

// Selected returns the selected scene id, or "".
func (s *Session) Selected() string { return s.selected }

// Select selects a scene; an empty id clears the selection.
func (s *Session) Select(id string) bool {
	if id == "" {
		s.selected = ""
		return true
	}
	if _, ok := s.model.Scene(id); !ok {
		return false
	}
	s.selected = id
	return true
}

// Wheel forwards a scroll event to the camera.
func (s *Session) Wheel(dx, dy float64, zoomModifier bool) {
	s.camera.Wheel(dx, dy, zoomModifier)
}

// Scan validates the graph and keeps the result for badges. References to
// deleted assets count as missing images, including deletions saved by
// earlier sessions.
func (s *Session) Scan() []validation.Issue {
	s.issues = validation.ScanModel(s.story, s.model, validation.WithBrokenRefs(s.tracker.IsBroken))
	s.scanned = true
	return s.issues
}

// Issues returns the last scan result without rescanning.
func (s *Session) Issues() ([]validation.Issue, bool) {
	return s.issues, s.scanned
}

// FixMissingImages assigns the placeholder image everywhere one is missing
// and rescans. It returns the number of segments touched.
func (s *Session) FixMissingImages() (int, error) {
	if s.text.Mode() == textmode.ModeText {
		return 0, ErrTextModeActive
	}
	n := validation.FixMissingImages(s.model, s.opts.PlaceholderImage)
	if s.scanned {
		s.Scan()
	}
	return n, nil
}

// AutoLayout places every scene on the grid.
func (s *Session) AutoLayout() (int, error) {
	if s.text.Mode() == textmode.ModeText {
		return 0, ErrTextModeActive
	}
	return layout.AutoLayout(s.model), nil
}

// UnusedAssets lists assets nothing references.
func (s *Session) UnusedAssets() []models.Asset {
	return s.tracker.Unused()
}

// DeleteAsset removes an asset without touching references to it.
func (s *Session) DeleteAsset(id string) (models.Asset, error) {
	a, ok := s.tracker.Delete(id)
	if !ok {
		return models.Asset{}, ErrAssetNotFound
	}
	return a, nil
}

// DeleteUnusedAssets removes every unused asset.
func (s *Session) DeleteUnusedAssets() []models.Asset {
	return s.tracker.DeleteAllUnused()
}

// Frame builds a drawable frame from the live state.
func (s *Session) Frame() canvas.Frame {
	return canvas.BuildFrame(canvas.FrameInput{
		Scenes:     s.model.Scenes(),
		StartID:    s.model.StartSceneID(),
		SelectedID: s.selected,
		Issues:     s.issues,
		Camera:     s.camera.State(),
	})
}

// FitView fits the camera to the graph for a view of the given size.
func (s *Session) FitView(width, height float64) {
	if b, ok := canvas.Bounds(s.model.Scenes()); ok {
		s.camera.FitBounds(b, width, height, fitPadding)
		return
	}
	s.camera.ResetView()
}

// Mode returns the editing mode.
func (s *Session) Mode() textmode.Mode { return s.text.Mode() }

// EnterTextMode shows the graph as text. Any gesture in progress is dropped.
func (s *Session) EnterTextMode() (string, error) {
	s.cancelGesture()
	return s.text.EnterTextMode()
}

// SetText updates the text buffer.
func (s *Session) SetText(text string) bool { return s.text.SetText(text) }

// Text returns the text buffer.
func (s *Session) Text() string { return s.text.Text() }

// LeaveTextMode applies the text buffer. On failure nothing changes.
func (s *Session) LeaveTextMode() error {
	if err := s.text.LeaveTextMode(); err != nil {
		return err
	}
	if s.selected != "" {
		if _, ok := s.model.Scene(s.selected); !ok {
			s.selected = ""
		}
	}
	return nil
}

// DiscardText abandons text edits.
func (s *Session) DiscardText() { s.text.DiscardText() }

// Snapshot is the full editable state handed to persistence.
type Snapshot struct {
	StoryID      string
	StartSceneID string
	Scenes       []models.Scene
	Assets       []models.Asset
	Media        assets.StoryMedia
	// DeletedAssetURLs are tombstones for deleted assets.
	DeletedAssetURLs []string
}

// Apply copies a snapshot onto a stored story.
func (snap Snapshot) Apply(story *models.Story) {
	story.StartSceneID = snap.StartSceneID
	story.Scenes = snap.Scenes
	story.Assets = snap.Assets
	story.Gallery = snap.Media.Gallery
	story.CoverImage = snap.Media.CoverImage
	story.HeaderImage = snap.Media.HeaderImage
	story.DeletedAssetURLs = snap.DeletedAssetURLs
}

func (s *Session) snapshot(scenes []models.Scene) Snapshot {
	return Snapshot{
		StoryID:      s.story.ID,
		StartSceneID: s.model.StartSceneID(),
		Scenes:       scenes,
		Assets:       s.lib.List(),
		Media:        s.Media(),

		DeletedAssetURLs: s.tracker.Tombstones(),
	}
}
