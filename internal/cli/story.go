// internal/cli/story.go
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/storage"
	"github.com/90n9/talepick/internal/validation"
)

// storySource is a loaded story plus a way to write it back.
type storySource struct {
	story *models.Story
	save  func(ctx context.Context) error
	fs    *storage.FileStorage
}

func (s *storySource) Close() {
	s.fs.Close()
}

func (s *storySource) ref() validation.StoryRef {
	return validation.StoryRef{ID: s.story.ID, Title: s.story.Title}
}

// openStory loads ref either as a path to a story JSON file or as a story id
// under dataDir/stories.
func openStory(ctx context.Context, ref, dataDir string) (*storySource, error) {
	if isStoryFile(ref) {
		abs, err := filepath.Abs(ref)
		if err != nil {
			return nil, err
		}
		fs, err := storage.NewFileStorage(filepath.Dir(abs))
		if err != nil {
			return nil, err
		}
		name := filepath.Base(abs)
		var story models.Story
		if err := fs.LoadJSONFile("", name, &story); err != nil {
			fs.Close()
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		return &storySource{
			story: &story,
			fs:    fs,
			save: func(context.Context) error {
				return fs.SaveJSONFile("", name, &story)
			},
		}, nil
	}

	fs, err := storage.NewFileStorage(dataDir)
	if err != nil {
		return nil, err
	}
	store := storage.NewStoryStore(fs)
	story, err := store.Load(ctx, ref)
	if err != nil {
		fs.Close()
		return nil, err
	}
	return &storySource{
		story: story,
		fs:    fs,
		save: func(ctx context.Context) error {
			return store.Save(ctx, story)
		},
	}, nil
}

func isStoryFile(ref string) bool {
	if strings.HasSuffix(strings.ToLower(ref), ".json") {
		return true
	}
	info, err := os.Stat(ref)
	return err == nil && !info.IsDir()
}
