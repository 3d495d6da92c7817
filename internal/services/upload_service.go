// internal/services/upload_service.go
package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/90n9/talepick/internal/assets"
	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/storage"
	"github.com/google/uuid"
)

// DefaultMaxUploadBytes 单个上传文件大小上限
const DefaultMaxUploadBytes = 20 << 20

// ErrUploadTooLarge is returned when an upload exceeds the size limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// sniffLen is how many leading bytes are used for content detection.
const sniffLen = 512

// UploadService 将上传文件保存到 <dir>/<storyID>/ 并通过 urlPrefix 对外提供
type UploadService struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	ids       *graph.IDGenerator
	now       func() time.Time
}

// NewUploadService creates an upload service. A maxBytes of zero uses
// DefaultMaxUploadBytes.
func NewUploadService(dir, urlPrefix string, maxBytes int64) (*UploadService, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadService{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
		ids:       &graph.IDGenerator{},
		now:       time.Now,
	}, nil
}

// Store classifies and writes an upload, returning the asset record. Files
// that are neither image nor audio are refused before anything is written.
func (u *UploadService) Store(storyID, fileName string, r io.Reader) (models.Asset, error) {
	if err := storage.CheckStoryID(storyID); err != nil {
		return models.Asset{}, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return models.Asset{}, fmt.Errorf("读取上传文件失败: %w", err)
	}
	head = head[:n]

	kind, contentType, err := assets.Classify(fileName, head)
	if err != nil {
		return models.Asset{}, err
	}

	base := filepath.Base(fileName)
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(base))
	dir := filepath.Join(u.dir, storyID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.Asset{}, fmt.Errorf("创建目录失败: %w", err)
	}

	full := filepath.Join(dir, stored)
	tmp := full + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return models.Asset{}, fmt.Errorf("创建文件失败: %w", err)
	}

	size, err := io.Copy(f, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), u.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && size > u.maxBytes {
		err = fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, u.maxBytes)
	}
	if err == nil {
		err = os.Rename(tmp, full)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return models.Asset{}, err
	}

	return models.Asset{
		ID:          u.ids.Next("asset"),
		URL:         path.Join(u.urlPrefix, storyID, stored),
		Kind:        kind,
		FileName:    base,
		ContentType: contentType,
		SizeBytes:   size,
		UploadedAt:  u.now(),
	}, nil
}

// Remove deletes the stored file behind an asset URL. Missing files are not
// an error.
func (u *UploadService) Remove(a models.Asset) error {
	rel := strings.TrimPrefix(a.URL, u.urlPrefix+"/")
	if rel == a.URL || strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(u.dir, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
