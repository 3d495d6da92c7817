// internal/services/story_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/90n9/talepick/internal/editor"
	apperrors "github.com/90n9/talepick/internal/errors"
	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/storage"
	"github.com/90n9/talepick/internal/utils"
)

// StoryService 管理故事的持久化
type StoryService struct {
	store *storage.StoryStore
	ids   *graph.IDGenerator
	now   func() time.Time
}

// NewStoryService 创建故事服务
func NewStoryService(store *storage.StoryStore) *StoryService {
	return &StoryService{
		store: store,
		ids:   &graph.IDGenerator{},
		now:   time.Now,
	}
}

// ListStories 列出所有故事
func (s *StoryService) ListStories(ctx context.Context) ([]models.StoryMetadata, error) {
	return s.store.List(ctx)
}

// GetStory 读取故事
func (s *StoryService) GetStory(ctx context.Context, id string) (*models.Story, error) {
	story, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrStoryNotFound) {
			return nil, apperrors.NewNotFoundError("story not found: "+id, err).WithCode("STORY_NOT_FOUND")
		}
		return nil, err
	}
	return story, nil
}

// CreateStory 创建一个空故事
func (s *StoryService) CreateStory(ctx context.Context, title string) (*models.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}

	now := s.now()
	story := &models.Story{
		ID:        s.ids.Next("story"),
		Title:     title,
		Scenes:    []models.Scene{},
		Assets:    []models.Asset{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	utils.GetLogger().Info("Story created", map[string]interface{}{
		"story_id": story.ID,
		"title":    story.Title,
	})
	return story, nil
}

// DeleteStory 删除故事
func (s *StoryService) DeleteStory(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrStoryNotFound) {
			return apperrors.NewNotFoundError("story not found: "+id, err).WithCode("STORY_NOT_FOUND")
		}
		return err
	}
	return nil
}

// Persist 将编辑快照写回故事文件，使 StoryService 成为 editor.Persister
func (s *StoryService) Persist(ctx context.Context, snap editor.Snapshot) error {
	story, err := s.store.Load(ctx, snap.StoryID)
	if err != nil {
		return err
	}
	snap.Apply(story)
	story.UpdatedAt = s.now()
	return s.store.Save(ctx, story)
}
