// internal/editor/upload.go
package editor

import (
	"errors"
	"fmt"

	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/textmode"
)

// ErrIncompatibleAsset is returned when an asset's kind does not fit the
// attachment target, e.g. audio as a segment image.
var ErrIncompatibleAsset = errors.New("asset kind does not fit target")

// AttachKind names where an uploaded asset is bound.
type AttachKind string

const (
	AttachLibrary         AttachKind = "library"
	AttachSegment         AttachKind = "segment"
	AttachEnding          AttachKind = "ending"
	AttachBackgroundAudio AttachKind = "background_audio"
	AttachGallery         AttachKind = "gallery"
	AttachCover           AttachKind = "cover"
	AttachHeader          AttachKind = "header"
)

// AttachTarget locates a reference field.
type AttachTarget struct {
	Kind         AttachKind `json:"kind"`
	SceneID      string     `json:"scene_id,omitempty"`
	SegmentIndex int        `json:"segment_index,omitempty"`
	Caption      string     `json:"caption,omitempty"`
}

func (k AttachKind) sceneScoped() bool {
	return k == AttachSegment || k == AttachEnding || k == AttachBackgroundAudio
}

func (k AttachKind) wants() (models.AssetKind, bool) {
	switch k {
	case AttachSegment, AttachEnding, AttachGallery, AttachCover, AttachHeader:
		return models.AssetImage, true
	case AttachBackgroundAudio:
		return models.AssetAudio, true
	default:
		return "", false
	}
}

// AttachUpload records an uploaded asset and binds its URL to the target. The
// target is checked before anything changes, so a failed attach leaves the
// session untouched.
func (s *Session) AttachUpload(asset models.Asset, target AttachTarget) error {
	if target.Kind == "" {
		target.Kind = AttachLibrary
	}
	if want, ok := target.Kind.wants(); ok && asset.Kind != want {
		return fmt.Errorf("%w: %s into %s", ErrIncompatibleAsset, asset.Kind, target.Kind)
	}
	if target.Kind.sceneScoped() {
		if s.text.Mode() == textmode.ModeText {
			return ErrTextModeActive
		}
		scene, ok := s.model.Scene(target.SceneID)
		if !ok {
			return ErrSceneNotFound
		}
		if target.Kind == AttachSegment && (target.SegmentIndex < 0 || target.SegmentIndex >= len(scene.Segments)) {
			return ErrSegmentNotFound
		}
	}

	switch target.Kind {
	case AttachLibrary:
	case AttachSegment:
		s.model.UpdateSegment(target.SceneID, target.SegmentIndex, graph.SegmentPatch{Image: &asset.URL})
	case AttachEnding:
		scene, _ := s.model.Scene(target.SceneID)
		ending := models.Ending{}
		if scene.Ending != nil {
			ending = *scene.Ending
		}
		ending.Image = asset.URL
		e := &ending
		s.model.UpdateScene(target.SceneID, graph.ScenePatch{Ending: &e})
	case AttachBackgroundAudio:
		s.model.UpdateScene(target.SceneID, graph.ScenePatch{BackgroundAudio: &asset.URL})
	case AttachGallery:
		s.media.Gallery = append(s.media.Gallery, models.GalleryItem{
			ID:      "gallery_" + asset.ID,
			URL:     asset.URL,
			Caption: target.Caption,
		})
	case AttachCover:
		s.media.CoverImage = asset.URL
	case AttachHeader:
		s.media.HeaderImage = asset.URL
	default:
		return fmt.Errorf("unknown attach target %q", target.Kind)
	}

	s.tracker.Add(asset)
	return nil
}
