// internal/assets/classify.go
package assets

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/90n9/talepick/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedMedia is returned for uploads that are neither image nor audio.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Classify decides whether an upload is an image or audio file. The content
// sniff wins; the file extension is only consulted when head is empty or
// sniffs as a generic type.
func Classify(fileName string, head []byte) (models.AssetKind, string, error) {
	if len(head) > 0 {
		mt := mimetype.Detect(head)
		if kind, ok := kindOf(mt.String()); ok {
			return kind, baseType(mt.String()), nil
		}
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	byExt := mime.TypeByExtension(ext)
	if byExt == "" {
		byExt = audioExtensions[ext]
	}
	if kind, ok := kindOf(byExt); ok {
		return kind, baseType(byExt), nil
	}
	return "", "", ErrUnsupportedMedia
}

// the builtin mime table has no audio entries
var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
}

func kindOf(contentType string) (models.AssetKind, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.AssetImage, true
	case strings.HasPrefix(contentType, "audio/"):
		return models.AssetAudio, true
	default:
		return "", false
	}
}

func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		return strings.TrimSpace(contentType[:i])
	}
	return contentType
}
