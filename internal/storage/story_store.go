// internal/storage/story_store.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/90n9/talepick/internal/errors"
	"github.com/90n9/talepick/internal/models"
)

const (
	storiesDir = "stories"
	storyExt   = ".json"
)

var storyIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrStoryNotFound is returned when no file exists for a story id.
var ErrStoryNotFound = errors.New("story not found")

// StoryStore 将故事以 JSON 文件保存在 <base>/stories/<id>.json
type StoryStore struct {
	fs *FileStorage
}

// NewStoryStore wraps a file storage rooted at the data directory.
func NewStoryStore(fs *FileStorage) *StoryStore {
	return &StoryStore{fs: fs}
}

// CheckStoryID rejects ids that are not safe as a single path segment.
func CheckStoryID(id string) error {
	if !storyIDPattern.MatchString(id) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid story id %q", id), nil).WithCode("INVALID_STORY_ID")
	}
	return nil
}

// Load reads a story.
func (s *StoryStore) Load(ctx context.Context, id string) (*models.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckStoryID(id); err != nil {
		return nil, err
	}
	var story models.Story
	if err := s.fs.LoadJSONFile(storiesDir, id+storyExt, &story); err != nil {
		if errors.Is(err, ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoryNotFound, id)
		}
		return nil, err
	}
	return &story, nil
}

// Save writes a story atomically.
func (s *StoryStore) Save(ctx context.Context, story *models.Story) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckStoryID(story.ID); err != nil {
		return err
	}
	return s.fs.SaveJSONFile(storiesDir, story.ID+storyExt, story)
}

// Delete removes a story file.
func (s *StoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckStoryID(id); err != nil {
		return err
	}
	if err := s.fs.DeleteFile(storiesDir, id+storyExt); err != nil {
		if errors.Is(err, ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrStoryNotFound, id)
		}
		return err
	}
	return nil
}

// List returns metadata for every stored story, newest first. Unreadable
// files are skipped.
func (s *StoryStore) List(ctx context.Context) ([]models.StoryMetadata, error) {
	names, err := s.fs.ListFiles(storiesDir, storyExt)
	if err != nil {
		return nil, err
	}

	out := make([]models.StoryMetadata, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		story, err := s.Load(ctx, strings.TrimSuffix(name, storyExt))
		if err != nil {
			continue
		}
		out = append(out, story.Meta())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
