// internal/services/editor_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/90n9/talepick/internal/editor"
	apperrors "github.com/90n9/talepick/internal/errors"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/textmode"
	"github.com/90n9/talepick/internal/utils"
	"github.com/90n9/talepick/internal/validation"
	"github.com/90n9/talepick/internal/viewport"
)

// EditorService 管理打开的编辑会话。同一故事的所有操作在该故事的锁内串行执行，
// 只有保存落盘和文本生成在锁外等待
type EditorService struct {
	stories *StoryService
	llm     *LLMService
	uploads *UploadService
	locks   *LockManager
	metrics *utils.EditorMetrics
	logger  *utils.Logger
	opts    editor.Options

	publisherMu sync.RWMutex
	publisher   Publisher

	mu       sync.Mutex
	sessions map[string]*editor.Session
}

// SessionState 会话概要
type SessionState struct {
	StoryID  string              `json:"story_id"`
	Title    string              `json:"title"`
	Version  uint64              `json:"version"`
	Mode     textmode.Mode       `json:"mode"`
	Selected string              `json:"selected,omitempty"`
	Saving   bool                `json:"saving"`
	Scenes   []models.Scene      `json:"scenes"`
	Assets   []models.Asset      `json:"assets"`
	Camera   viewport.State      `json:"camera"`
	Issues   []validation.Record `json:"issues,omitempty"`
}

// NewEditorService 创建编辑服务
func NewEditorService(stories *StoryService, llmService *LLMService, uploads *UploadService,
	locks *LockManager, metrics *utils.EditorMetrics, opts editor.Options) *EditorService {
	return &EditorService{
		stories:   stories,
		llm:       llmService,
		uploads:   uploads,
		locks:     locks,
		metrics:   metrics,
		logger:    utils.GetLogger(),
		opts:      opts,
		publisher: nopPublisher{},
		sessions:  make(map[string]*editor.Session),
	}
}

// SetPublisher sets where events are delivered.
func (s *EditorService) SetPublisher(p Publisher) {
	if p == nil {
		p = nopPublisher{}
	}
	s.publisherMu.Lock()
	s.publisher = p
	s.publisherMu.Unlock()
}

func (s *EditorService) publish(storyID string, typ EventType, version uint64, data interface{}) {
	s.publisherMu.RLock()
	p := s.publisher
	s.publisherMu.RUnlock()
	p.Publish(Event{Type: typ, StoryID: storyID, Version: version, Data: data, Timestamp: time.Now()})
}

// session returns the open session, loading the story on first use. The
// caller holds the story lock.
func (s *EditorService) session(ctx context.Context, storyID string) (*editor.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[storyID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	story, err := s.stories.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	sess = editor.New(story, s.opts)

	s.mu.Lock()
	s.sessions[storyID] = sess
	s.mu.Unlock()

	s.metrics.SessionOpened()
	s.logger.Info("Editor session opened", map[string]interface{}{
		"story_id": storyID,
		"scenes":   len(story.Scenes),
	})
	return sess, nil
}

// Do runs fn on the story's session under the story lock. A graph_updated
// event is published when fn changed the graph.
func (s *EditorService) Do(ctx context.Context, storyID string, fn func(*editor.Session) error) error {
	return s.locks.ExecuteWithStoryLock(storyID, func() error {
		sess, err := s.session(ctx, storyID)
		if err != nil {
			return err
		}
		before := sess.Version()
		err = fn(sess)
		if after := sess.Version(); after != before {
			s.publish(storyID, EventGraphUpdated, after, nil)
		}
		return err
	})
}

// State returns the session summary, opening the session if needed.
func (s *EditorService) State(ctx context.Context, storyID string) (SessionState, error) {
	var st SessionState
	err := s.Do(ctx, storyID, func(sess *editor.Session) error {
		st = stateOf(sess)
		return nil
	})
	return st, err
}

func stateOf(sess *editor.Session) SessionState {
	st := SessionState{
		StoryID:  sess.StoryRef().ID,
		Title:    sess.StoryRef().Title,
		Version:  sess.Version(),
		Mode:     sess.Mode(),
		Selected: sess.Selected(),
		Saving:   sess.Saving(),
		Scenes:   sess.Scenes(),
		Assets:   sess.Assets(),
		Camera:   sess.Camera().State(),
	}
	if issues, ok := sess.Issues(); ok {
		st.Issues = validation.Records(issues)
	}
	return st
}

// Close drops the session. Unsaved changes are discarded.
func (s *EditorService) Close(storyID string) bool {
	var closed bool
	_ = s.locks.ExecuteWithStoryLock(storyID, func() error {
		s.mu.Lock()
		_, closed = s.sessions[storyID]
		delete(s.sessions, storyID)
		s.mu.Unlock()
		return nil
	})
	if closed {
		s.metrics.SessionClosed()
		s.logger.Info("Editor session closed", map[string]interface{}{"story_id": storyID})
	}
	return closed
}

// OpenSessions returns the ids of stories with an open session.
func (s *EditorService) OpenSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Scan validates the story and publishes the result.
func (s *EditorService) Scan(ctx context.Context, storyID string) ([]validation.Record, validation.Summary, error) {
	var issues []validation.Issue
	var version uint64
	err := s.Do(ctx, storyID, func(sess *editor.Session) error {
		start := time.Now()
		issues = sess.Scan()
		version = sess.Version()
		s.metrics.RecordScan(storyID, len(issues), time.Since(start))
		return nil
	})
	if err != nil {
		return nil, validation.Summary{}, err
	}
	records := validation.Records(issues)
	s.publish(storyID, EventIssuesUpdated, version, records)
	return records, validation.Summarize(issues), nil
}

// FixMissingImages assigns the placeholder to every missing image.
func (s *EditorService) FixMissingImages(ctx context.Context, storyID string) (int, error) {
	var fixed int
	var issues []validation.Issue
	var scanned bool
	var version uint64
	err := s.Do(ctx, storyID, func(sess *editor.Session) error {
		n, err := sess.FixMissingImages()
		if err != nil {
			return err
		}
		fixed = n
		issues, scanned = sess.Issues()
		version = sess.Version()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if scanned {
		s.publish(storyID, EventIssuesUpdated, version, validation.Records(issues))
	}
	return fixed, nil
}

// EnterTextMode returns the text rendering of the graph.
func (s *EditorService) EnterTextMode(ctx context.Context, storyID string) (string, error) {
	var text string
	var version uint64
	err := s.Do(ctx, storyID, func(sess *editor.Session) error {
		var err error
		text, err = sess.EnterTextMode()
		version = sess.Version()
		return err
	})
	if err != nil {
		return "", err
	}
	s.publish(storyID, EventModeChanged, version, textmode.ModeText)
	return text, nil
}

// UpdateText replaces the pending text buffer.
func (s *EditorService) UpdateText(ctx context.Context, storyID, text string) error {
	return s.Do(ctx, storyID, func(sess *editor.Session) error {
		if !sess.SetText(text) {
			return apperrors.NewConflictError("not in text mode", nil).WithCode("NOT_IN_TEXT_MODE")
		}
		return nil
	})
}

// LeaveTextMode applies the text buffer. A parse failure leaves the session
// in text mode with the graph unchanged.
func (s *EditorService) LeaveTextMode(ctx context.Context, storyID string, discard bool) error {
	var version uint64
	err := s.Do(ctx, storyID, func(sess *editor.Session) error {
		if discard {
			sess.DiscardText()
		} else if err := sess.LeaveTextMode(); err != nil {
			return err
		}
		version = sess.Version()
		return nil
	})
	if err != nil {
		var perr *textmode.ParseError
		if errors.As(err, &perr) {
			s.metrics.RecordParseFailure(storyID, err)
		}
		return err
	}
	s.publish(storyID, EventModeChanged, version, textmode.ModeVisual)
	return nil
}

// Save persists the session. The story lock is released while the file is
// written so the editor stays usable; a second save meanwhile is rejected.
func (s *EditorService) Save(ctx context.Context, storyID string) (editor.Snapshot, error) {
	var snap editor.Snapshot
	var sess *editor.Session
	var version uint64
	err := s.Do(ctx, storyID, func(ss *editor.Session) error {
		var err error
		snap, err = ss.BeginSave()
		sess = ss
		version = ss.Version()
		return err
	})
	if err != nil {
		var perr *textmode.ParseError
		switch {
		case errors.Is(err, editor.ErrSaveInFlight):
			s.metrics.RecordSaveRejected(storyID)
		case errors.As(err, &perr):
			s.metrics.RecordParseFailure(storyID, err)
		}
		return editor.Snapshot{}, err
	}
	defer sess.EndSave()

	start := time.Now()
	err = s.stories.Persist(ctx, snap)
	s.metrics.RecordSave(storyID, err, time.Since(start))
	if err != nil {
		return editor.Snapshot{}, fmt.Errorf("failed to persist story %s: %w", storyID, err)
	}

	s.publish(storyID, EventStorySaved, version, map[string]interface{}{
		"scenes": len(snap.Scenes),
		"assets": len(snap.Assets),
	})
	return snap, nil
}

// GenerateSegmentText fills a segment with generated prose. The model call
// happens outside the story lock. When generation fails the fallback text is
// stored and a collaborator error is returned with it.
func (s *EditorService) GenerateSegmentText(ctx context.Context, storyID, sceneID string, index int) (string, error) {
	var prompt string
	err := s.Do(ctx, storyID, func(sess *editor.Session) error {
		if sess.Mode() == textmode.ModeText {
			return editor.ErrTextModeActive
		}
		var err error
		prompt, err = sess.SegmentPrompt(sceneID, index)
		return err
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	var text string
	var genErr error
	if s.llm == nil {
		genErr = ErrLLMNotReady
	} else {
		text, genErr = s.llm.Generate(ctx, prompt)
	}
	provider := ""
	if s.llm != nil {
		provider = s.llm.GetProviderName()
	}
	s.metrics.RecordGeneration(provider, genErr, time.Since(start))
	if genErr != nil {
		text = editor.FallbackSegmentText
	}

	err = s.Do(ctx, storyID, func(sess *editor.Session) error {
		return sess.ApplySegmentText(sceneID, index, text)
	})
	if err != nil {
		return "", err
	}
	if genErr != nil {
		return text, apperrors.NewCollaboratorError("text generation failed, fallback stored", genErr)
	}
	return text, nil
}

// Upload stores a file and binds it to target. If binding fails the stored
// file is removed again.
func (s *EditorService) Upload(ctx context.Context, storyID, fileName string, r io.Reader, target editor.AttachTarget) (models.Asset, error) {
	if s.uploads == nil {
		return models.Asset{}, apperrors.NewProcessingError("uploads are not configured", nil)
	}
	asset, err := s.uploads.Store(storyID, fileName, r)
	if err != nil {
		return models.Asset{}, err
	}

	var version uint64
	err = s.Do(ctx, storyID, func(sess *editor.Session) error {
		if err := sess.AttachUpload(asset, target); err != nil {
			return err
		}
		version = sess.Version()
		return nil
	})
	if err != nil {
		_ = s.uploads.Remove(asset)
		return models.Asset{}, err
	}

	s.metrics.RecordUpload(string(asset.Kind), asset.SizeBytes)
	s.publish(storyID, EventAssetsUpdated, version, asset)
	return asset, nil
}

// DeleteAssets removes one asset by id, or every unused asset when id is
// empty. Stored files are removed as well.
func (s *EditorService) DeleteAssets(ctx context.Context, storyID, id string) ([]models.Asset, error) {
	var removed []models.Asset
	var version uint64
	err := s.Do(ctx, storyID, func(sess *editor.Session) error {
		if id == "" {
			removed = sess.DeleteUnusedAssets()
		} else {
			a, err := sess.DeleteAsset(id)
			if err != nil {
				return err
			}
			removed = []models.Asset{a}
		}
		version = sess.Version()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.uploads != nil {
		for _, a := range removed {
			if err := s.uploads.Remove(a); err != nil {
				s.logger.Warn("Failed to remove asset file", map[string]interface{}{
					"story_id": storyID,
					"asset_id": a.ID,
					"error":    err.Error(),
				})
			}
		}
	}
	if len(removed) > 0 {
		s.publish(storyID, EventAssetsUpdated, version, map[string]interface{}{"removed": removed})
	}
	return removed, nil
}
