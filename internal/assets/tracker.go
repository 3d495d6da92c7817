// internal/assets/tracker.go
package assets

import (
	"github.com/90n9/talepick/internal/models"
)

// SceneSource provides the current scene collection. *graph.Model satisfies it.
type SceneSource interface {
	Scenes() []models.Scene
}

// MediaSource provides the current story-level media fields.
type MediaSource interface {
	Media() StoryMedia
}

// Tracker classifies the assets of a library as used or unused against the
// live scenes and story media. References are recomputed on every call.
type Tracker struct {
	lib    *Library
	scenes SceneSource
	media  MediaSource

	// URLs of deleted assets, carried across sessions by the story
	removed RefSet
}

// NewTracker wires a tracker to its sources.
func NewTracker(lib *Library, scenes SceneSource, media MediaSource) *Tracker {
	return &Tracker{lib: lib, scenes: scenes, media: media, removed: make(RefSet)}
}

// Restore seeds the tracker with URLs deleted in earlier sessions.
func (t *Tracker) Restore(urls []string) {
	for _, u := range urls {
		t.markRemoved(u)
	}
}

// Tombstones returns the deleted URLs that have not been uploaded again, in
// lexical order. They are persisted with the story.
func (t *Tracker) Tombstones() []string {
	var out []string
	for _, u := range t.removed.Sorted() {
		if _, ok := t.lib.FindByURL(u); !ok {
			out = append(out, u)
		}
	}
	return out
}

// Add records a new asset in the library.
func (t *Tracker) Add(a models.Asset) {
	t.lib.Add(a)
	delete(t.removed, a.URL)
}

// Unused returns the assets whose URL is not referenced anywhere.
func (t *Tracker) Unused() []models.Asset {
	return Unused(t.lib.List(), t.references())
}

// Used returns the assets whose URL is referenced somewhere.
func (t *Tracker) Used() []models.Asset {
	refs := t.references()
	var out []models.Asset
	for _, a := range t.lib.List() {
		if refs.Has(a.URL) {
			out = append(out, a)
		}
	}
	return out
}

// Delete removes one asset from the library. Nothing that referenced it is
// rewritten; such references surface as missing images on the next scan.
func (t *Tracker) Delete(id string) (models.Asset, bool) {
	a, ok := t.lib.Remove(id)
	if ok {
		t.markRemoved(a.URL)
	}
	return a, ok
}

// DeleteAllUnused removes every currently unused asset and returns them.
func (t *Tracker) DeleteAllUnused() []models.Asset {
	unused := t.Unused()
	for _, a := range unused {
		if _, ok := t.lib.Remove(a.ID); ok {
			t.markRemoved(a.URL)
		}
	}
	return unused
}

// IsBroken reports whether ref points at a deleted asset that has not been
// uploaded again. Pass it to validation.WithBrokenRefs.
func (t *Tracker) IsBroken(ref string) bool {
	if !t.removed.Has(ref) {
		return false
	}
	_, ok := t.lib.FindByURL(ref)
	return !ok
}

// DeletedRefs builds an IsBroken-style predicate from a stored story without
// opening a session.
func DeletedRefs(story *models.Story) func(ref string) bool {
	lib := NewLibrary(story.Assets)
	removed := make(RefSet)
	for _, u := range story.DeletedAssetURLs {
		removed.add(u)
	}
	return func(ref string) bool {
		if !removed.Has(ref) {
			return false
		}
		_, ok := lib.FindByURL(ref)
		return !ok
	}
}

func (t *Tracker) markRemoved(url string) {
	if url != "" {
		t.removed[url] = struct{}{}
	}
}

func (t *Tracker) references() RefSet {
	var media StoryMedia
	if t.media != nil {
		media = t.media.Media()
	}
	return References(media, t.scenes.Scenes())
}

// Unused filters assets down to those not present in refs, by exact URL.
func Unused(assets []models.Asset, refs RefSet) []models.Asset {
	var out []models.Asset
	for _, a := range assets {
		if !refs.Has(a.URL) {
			out = append(out, a)
		}
	}
	return out
}
