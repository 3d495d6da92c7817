// internal/assets/assets_test.go
package assets

import (
	"testing"

	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/validation"
)

type staticMedia StoryMedia

func (m staticMedia) Media() StoryMedia { return StoryMedia(m) }

func fixture() (*graph.Model, *Library, staticMedia) {
	m := graph.New([]models.Scene{
		{
			ID:       "s1",
			Segments: []models.Segment{{Image: "/u/forest.png"}, {Image: "/u/river.png"}},
			Choices:  []models.Choice{{ID: "c", TargetSceneID: models.StringPtr("s2")}},
		},
		{
			ID:       "s2",
			IsEnding: true,
			Ending:   &models.Ending{Image: "/u/ending.png"},
			Segments: []models.Segment{{Image: "/u/forest.png"}},
		},
	}, "s1")
	lib := NewLibrary([]models.Asset{
		{ID: "a1", URL: "/u/forest.png", Kind: models.AssetImage},
		{ID: "a2", URL: "/u/river.png", Kind: models.AssetImage},
		{ID: "a3", URL: "/u/ending.png", Kind: models.AssetImage},
		{ID: "a4", URL: "/u/cover.png", Kind: models.AssetImage},
		{ID: "a5", URL: "/u/thumb.png", Kind: models.AssetImage},
		{ID: "a6", URL: "/u/stray.png", Kind: models.AssetImage},
		{ID: "a7", URL: "/u/theme.mp3", Kind: models.AssetAudio},
	})
	media := staticMedia{
		CoverImage: "/u/cover.png",
		Gallery:    []models.GalleryItem{{ID: "g", URL: "/u/gallery-missing.png", Thumbnail: "/u/thumb.png"}},
	}
	return m, lib, media
}

func ids(assets []models.Asset) []string {
	var out []string
	for _, a := range assets {
		out = append(out, a.ID)
	}
	return out
}

func TestReferences(t *testing.T) {
	m, _, media := fixture()
	refs := References(media.Media(), m.Scenes())
	for _, want := range []string{"/u/forest.png", "/u/river.png", "/u/ending.png", "/u/cover.png", "/u/thumb.png", "/u/gallery-missing.png"} {
		if !refs.Has(want) {
			t.Errorf("expected %s to be referenced", want)
		}
	}
	if refs.Has("") {
		t.Error("empty reference should be ignored")
	}
	if len(refs) != 6 {
		t.Errorf("expected 6 references, got %v", refs.Sorted())
	}
}

func TestUnusedAndDeleteUnreferenced(t *testing.T) {
	m, lib, media := fixture()
	tr := NewTracker(lib, m, media)

	unused := ids(tr.Unused())
	if len(unused) != 2 || unused[0] != "a6" || unused[1] != "a7" {
		t.Fatalf("unexpected unused set %v", unused)
	}

	before := validation.ScanModel(validation.StoryRef{}, m, validation.WithBrokenRefs(tr.IsBroken))
	if _, ok := tr.Delete("a6"); !ok {
		t.Fatal("delete returned false")
	}
	if got := ids(tr.Unused()); len(got) != 1 || got[0] != "a7" {
		t.Fatalf("a6 still listed as unused: %v", got)
	}
	after := validation.ScanModel(validation.StoryRef{}, m, validation.WithBrokenRefs(tr.IsBroken))
	if len(after) != len(before) {
		t.Fatalf("deleting an unreferenced asset changed scan results: %d -> %d", len(before), len(after))
	}
}

func TestDeleteReferencedAssetBreaksSegments(t *testing.T) {
	m, lib, media := fixture()
	tr := NewTracker(lib, m, media)

	if issues := validation.ScanModel(validation.StoryRef{}, m, validation.WithBrokenRefs(tr.IsBroken)); len(issues) != 0 {
		t.Fatalf("fixture should scan clean, got %v", validation.Records(issues))
	}

	tr.Delete("a1")
	if _, ok := lib.Find("a1"); ok {
		t.Fatal("asset still in library")
	}
	s1, _ := m.Scene("s1")
	if s1.Segments[0].Image != "/u/forest.png" {
		t.Fatal("delete rewrote a segment reference")
	}

	issues := validation.ScanModel(validation.StoryRef{}, m, validation.WithBrokenRefs(tr.IsBroken))
	flagged := map[string][]int{}
	for _, i := range issues {
		mi, ok := i.(validation.MissingImage)
		if !ok {
			t.Fatalf("unexpected issue %+v", validation.ToRecord(i))
		}
		flagged[mi.SceneRef.ID] = mi.BrokenSegments
	}
	if len(flagged) != 2 || len(flagged["s1"]) != 1 || flagged["s1"][0] != 0 || len(flagged["s2"]) != 1 {
		t.Fatalf("expected missing_image for every segment that used a1, got %v", flagged)
	}

	// uploading the same file again repairs the reference
	tr.Add(models.Asset{ID: "a1b", URL: "/u/forest.png", Kind: models.AssetImage})
	if tr.IsBroken("/u/forest.png") {
		t.Fatal("re-added asset still considered broken")
	}
}

func TestDeleteAllUnused(t *testing.T) {
	m, lib, media := fixture()
	tr := NewTracker(lib, m, media)

	removed := tr.DeleteAllUnused()
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", ids(removed))
	}
	if lib.Len() != 5 || len(tr.Unused()) != 0 {
		t.Fatalf("library not cleaned: %v", ids(lib.List()))
	}
	if len(tr.Used()) != 5 {
		t.Fatalf("expected 5 used assets, got %v", ids(tr.Used()))
	}
}

func TestLibraryAddReplaces(t *testing.T) {
	lib := NewLibrary(nil)
	lib.Add(models.Asset{ID: "x", URL: "/a"})
	lib.Add(models.Asset{ID: "x", URL: "/b"})
	if lib.Len() != 1 {
		t.Fatalf("expected 1 asset, got %d", lib.Len())
	}
	if a, _ := lib.Find("x"); a.URL != "/b" {
		t.Fatalf("expected replaced URL, got %q", a.URL)
	}
}

func TestClassify(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	kind, ct, err := Classify("x.bin", png)
	if err != nil || kind != models.AssetImage || ct != "image/png" {
		t.Fatalf("png: %v %q %v", kind, ct, err)
	}

	kind, _, err = Classify("song.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"))
	if err != nil || kind != models.AssetAudio {
		t.Fatalf("mp3: %v %v", kind, err)
	}

	kind, _, err = Classify("track.ogg", nil)
	if err != nil || kind != models.AssetAudio {
		t.Fatalf("ogg by extension: %v %v", kind, err)
	}

	if _, _, err := Classify("notes.txt", []byte("just some text")); err != ErrUnsupportedMedia {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
}

func TestTombstonesCarryAcrossTrackers(t *testing.T) {
	m, lib, media := fixture()
	tr := NewTracker(lib, m, media)
	if _, ok := tr.Delete("a2"); !ok {
		t.Fatal("delete a2")
	}
	stones := tr.Tombstones()
	if len(stones) != 1 || stones[0] != "/u/river.png" {
		t.Fatalf("unexpected tombstones %v", stones)
	}

	next := NewTracker(NewLibrary(lib.List()), m, media)
	next.Restore(stones)
	if !next.IsBroken("/u/river.png") {
		t.Fatal("restored tombstone not broken")
	}

	story := &models.Story{Assets: lib.List(), DeletedAssetURLs: stones}
	broken := DeletedRefs(story)
	if !broken("/u/river.png") || broken("/u/forest.png") {
		t.Fatal("DeletedRefs disagrees with tracker")
	}
	story.Assets = append(story.Assets, models.Asset{ID: "a2b", URL: "/u/river.png", Kind: models.AssetImage})
	if DeletedRefs(story)("/u/river.png") {
		t.Fatal("re-added asset still broken")
	}
}
