// internal/models/asset.go
package models

import "time"

// AssetKind 媒体类型
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetAudio AssetKind = "audio"
)

// Asset is an uploaded media file owned by one story. Scenes reference it by
// URL; nothing embeds it.
type Asset struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Kind        AssetKind `json:"kind"`
	FileName    string    `json:"file_name,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
