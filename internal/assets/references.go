// internal/assets/references.go
package assets

import (
	"sort"

	"github.com/90n9/talepick/internal/models"
)

// StoryMedia holds the story-level fields that can reference assets.
type StoryMedia struct {
	Gallery     []models.GalleryItem `json:"gallery,omitempty"`
	CoverImage  string               `json:"cover_image,omitempty"`
	HeaderImage string               `json:"header_image,omitempty"`
}

// MediaOf extracts the reference-bearing story fields.
func MediaOf(story *models.Story) StoryMedia {
	gallery := make([]models.GalleryItem, len(story.Gallery))
	copy(gallery, story.Gallery)
	return StoryMedia{
		Gallery:     gallery,
		CoverImage:  story.CoverImage,
		HeaderImage: story.HeaderImage,
	}
}

// RefSet is a set of reference strings.
type RefSet map[string]struct{}

// Has reports whether ref is in the set.
func (s RefSet) Has(ref string) bool {
	_, ok := s[ref]
	return ok
}

// Sorted returns the set members in lexical order.
func (s RefSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for ref := range s {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

func (s RefSet) add(ref string) {
	if ref != "" {
		s[ref] = struct{}{}
	}
}

// References collects every media reference in use: segment images, ending
// images, gallery URLs and thumbnails, and the cover and header images.
// Background audio is not part of the set.
func References(media StoryMedia, scenes []models.Scene) RefSet {
	refs := make(RefSet)
	for _, s := range scenes {
		for _, seg := range s.Segments {
			refs.add(seg.Image)
		}
		if s.Ending != nil {
			refs.add(s.Ending.Image)
		}
	}
	for _, g := range media.Gallery {
		refs.add(g.URL)
		refs.add(g.Thumbnail)
	}
	refs.add(media.CoverImage)
	refs.add(media.HeaderImage)
	return refs
}
