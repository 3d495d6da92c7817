// internal/models/story.go
package models

import (
	"time"
)

// Story 是一个互动故事：场景图加上它的媒体资源
type Story struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	StartSceneID string        `json:"start_scene_id,omitempty"`
	Scenes       []Scene       `json:"scenes"`
	Assets       []Asset       `json:"assets"`
	Gallery      []GalleryItem `json:"gallery,omitempty"`
	CoverImage   string        `json:"cover_image,omitempty"`
	HeaderImage  string        `json:"header_image,omitempty"`
	// 已删除但可能仍被引用的资源地址
	DeletedAssetURLs []string  `json:"deleted_asset_urls,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GalleryItem is a story-level media entry
type GalleryItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// StoryMetadata 用于故事列表
type StoryMetadata struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SceneCount int       `json:"scene_count"`
	AssetCount int       `json:"asset_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Meta returns the listing view of the story.
func (s *Story) Meta() StoryMetadata {
	return StoryMetadata{
		ID:         s.ID,
		Title:      s.Title,
		SceneCount: len(s.Scenes),
		AssetCount: len(s.Assets),
		UpdatedAt:  s.UpdatedAt,
	}
}

// ResolveStart returns the designated start scene id. When StartSceneID is
// empty or no longer resolves, the first scene in insertion order is used.
func ResolveStart(startID string, scenes []Scene) string {
	if startID != "" {
		for _, s := range scenes {
			if s.ID == startID {
				return startID
			}
		}
	}
	if len(scenes) == 0 {
		return ""
	}
	return scenes[0].ID
}
