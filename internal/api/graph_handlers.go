// internal/api/graph_handlers.go
package api

import (
	"github.com/90n9/talepick/internal/editor"
	apperrors "github.com/90n9/talepick/internal/errors"
	"github.com/90n9/talepick/internal/graph"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/validation"
	"github.com/gin-gonic/gin"
)

// UpdateSceneRequest 场景的部分更新
type UpdateSceneRequest struct {
	Title           *string        `json:"title" binding:"omitempty,max=200"`
	IsEnding        *bool          `json:"is_ending"`
	Ending          *models.Ending `json:"ending"`
	ClearEnding     bool           `json:"clear_ending"`
	BackgroundAudio *string        `json:"background_audio"`
}

// MoveSceneRequest 场景的新位置（世界坐标）
type MoveSceneRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

// SetStartRequest 指定起始场景
type SetStartRequest struct {
	SceneID string `json:"scene_id" binding:"required"`
}

// UpdateChoiceRequest 选项的部分更新
type UpdateChoiceRequest struct {
	Text          *string `json:"text" binding:"omitempty,max=500"`
	TargetSceneID *string `json:"target_scene_id"`
	ClearTarget   bool    `json:"clear_target"`
	Cost          *int    `json:"cost"`
}

// AddSegmentRequest 新增片段
type AddSegmentRequest struct {
	Text       string `json:"text"`
	Image      string `json:"image"`
	DurationMs int    `json:"duration_ms" binding:"gte=0"`
}

// UpdateSegmentRequest 片段的部分更新
type UpdateSegmentRequest struct {
	Text       *string `json:"text"`
	Image      *string `json:"image"`
	DurationMs *int    `json:"duration_ms" binding:"omitempty,gte=0"`
}

// MoveSegmentRequest 调整片段顺序
type MoveSegmentRequest struct {
	To *int `json:"to" binding:"required,gte=0"`
}

// sceneError 场景不存在
func sceneError(m *graph.Model, sceneID string, missing error) error {
	if _, ok := m.Scene(sceneID); !ok {
		return editor.ErrSceneNotFound
	}
	return missing
}

func choiceNotFound(choiceID string) error {
	return apperrors.NewNotFoundError("choice not found: "+choiceID, nil).WithCode(ErrorChoiceNotFound)
}

// AddScene 新增场景
func (h *Handler) AddScene(c *gin.Context) {
	var scene models.Scene
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			scene = m.AddScene()
			return nil
		})
	})
	if ok {
		h.Response.Created(c, scene)
	}
}

// UpdateScene 更新场景属性
func (h *Handler) UpdateScene(c *gin.Context) {
	var req UpdateSceneRequest
	if !h.bind(c, &req) {
		return
	}
	sceneID := c.Param("scene_id")
	patch := graph.ScenePatch{
		Title:           req.Title,
		IsEnding:        req.IsEnding,
		BackgroundAudio: req.BackgroundAudio,
	}
	switch {
	case req.ClearEnding:
		var none *models.Ending
		patch.Ending = &none
	case req.Ending != nil:
		patch.Ending = &req.Ending
	}

	var scene models.Scene
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.UpdateScene(sceneID, patch) {
				return editor.ErrSceneNotFound
			}
			scene, _ = m.Scene(sceneID)
			return nil
		})
	})
	if ok {
		h.Response.Success(c, scene)
	}
}

// MoveScene 移动场景
func (h *Handler) MoveScene(c *gin.Context) {
	var req MoveSceneRequest
	if !h.bind(c, &req) {
		return
	}
	sceneID := c.Param("scene_id")
	pos := models.Position{X: *req.X, Y: *req.Y}
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.MoveScene(sceneID, pos) {
				return editor.ErrSceneNotFound
			}
			return nil
		})
	})
	if ok {
		h.Response.Success(c, pos)
	}
}

// DeleteScene 删除场景，指向它的选项保持悬空
func (h *Handler) DeleteScene(c *gin.Context) {
	sceneID := c.Param("scene_id")
	ok := h.do(c, func(sess *editor.Session) error {
		err := sess.Edit(func(m *graph.Model) error {
			if !m.RemoveScene(sceneID) {
				return editor.ErrSceneNotFound
			}
			return nil
		})
		if err == nil && sess.Selected() == sceneID {
			sess.Select("")
		}
		return err
	})
	if ok {
		h.Response.Success(c, gin.H{"id": sceneID}, "scene deleted")
	}
}

// SetStartScene 设置起始场景
func (h *Handler) SetStartScene(c *gin.Context) {
	var req SetStartRequest
	if !h.bind(c, &req) {
		return
	}
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.SetStartScene(req.SceneID) {
				return editor.ErrSceneNotFound
			}
			return nil
		})
	})
	if ok {
		h.Response.Success(c, gin.H{"start_scene_id": req.SceneID})
	}
}

// AddChoice 为场景新增一个无目标的选项
func (h *Handler) AddChoice(c *gin.Context) {
	sceneID := c.Param("scene_id")
	var choice models.Choice
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			var found bool
			if choice, found = m.AddChoice(sceneID); !found {
				return editor.ErrSceneNotFound
			}
			return nil
		})
	})
	if ok {
		h.Response.Created(c, choice)
	}
}

// UpdateChoice 更新选项文本、目标或花费。目标场景可以尚不存在，悬空目标只在检查时报告
func (h *Handler) UpdateChoice(c *gin.Context) {
	var req UpdateChoiceRequest
	if !h.bind(c, &req) {
		return
	}
	sceneID, choiceID := c.Param("scene_id"), c.Param("choice_id")
	patch := graph.ChoicePatch{
		Text:          req.Text,
		TargetSceneID: req.TargetSceneID,
		ClearTarget:   req.ClearTarget,
		Cost:          req.Cost,
	}
	// 空字符串目标等同于清除目标
	if req.TargetSceneID != nil && *req.TargetSceneID == "" {
		patch.TargetSceneID = nil
		patch.ClearTarget = true
	}

	var choice models.Choice
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.UpdateChoice(sceneID, choiceID, patch) {
				return sceneError(m, sceneID, choiceNotFound(choiceID))
			}
			scene, _ := m.Scene(sceneID)
			for _, ch := range scene.Choices {
				if ch.ID == choiceID {
					choice = ch
				}
			}
			return nil
		})
	})
	if ok {
		h.Response.Success(c, choice)
	}
}

// DeleteChoice 删除选项
func (h *Handler) DeleteChoice(c *gin.Context) {
	sceneID, choiceID := c.Param("scene_id"), c.Param("choice_id")
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.RemoveChoice(sceneID, choiceID) {
				return sceneError(m, sceneID, choiceNotFound(choiceID))
			}
			return nil
		})
	})
	if ok {
		h.Response.Success(c, gin.H{"id": choiceID}, "choice deleted")
	}
}

// AddSegment 追加片段
func (h *Handler) AddSegment(c *gin.Context) {
	var req AddSegmentRequest
	if !h.bind(c, &req) {
		return
	}
	sceneID := c.Param("scene_id")
	var index int
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			var found bool
			index, found = m.AddSegment(sceneID, models.Segment{
				Text:       req.Text,
				Image:      req.Image,
				DurationMs: req.DurationMs,
			})
			if !found {
				return editor.ErrSceneNotFound
			}
			return nil
		})
	})
	if ok {
		h.Response.Created(c, gin.H{"index": index})
	}
}

// UpdateSegment 更新片段
func (h *Handler) UpdateSegment(c *gin.Context) {
	index, valid := segmentIndex(c)
	if !valid {
		h.Response.BadRequest(c, "segment index must be a non-negative integer")
		return
	}
	var req UpdateSegmentRequest
	if !h.bind(c, &req) {
		return
	}
	sceneID := c.Param("scene_id")
	patch := graph.SegmentPatch{Text: req.Text, Image: req.Image, DurationMs: req.DurationMs}

	var seg models.Segment
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.UpdateSegment(sceneID, index, patch) {
				return sceneError(m, sceneID, editor.ErrSegmentNotFound)
			}
			scene, _ := m.Scene(sceneID)
			seg = scene.Segments[index]
			return nil
		})
	})
	if ok {
		h.Response.Success(c, seg)
	}
}

// DeleteSegment 删除片段
func (h *Handler) DeleteSegment(c *gin.Context) {
	index, valid := segmentIndex(c)
	if !valid {
		h.Response.BadRequest(c, "segment index must be a non-negative integer")
		return
	}
	sceneID := c.Param("scene_id")
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.RemoveSegment(sceneID, index) {
				return sceneError(m, sceneID, editor.ErrSegmentNotFound)
			}
			return nil
		})
	})
	if ok {
		h.Response.Success(c, gin.H{"index": index}, "segment deleted")
	}
}

// MoveSegment 调整片段顺序
func (h *Handler) MoveSegment(c *gin.Context) {
	from, valid := segmentIndex(c)
	if !valid {
		h.Response.BadRequest(c, "segment index must be a non-negative integer")
		return
	}
	var req MoveSegmentRequest
	if !h.bind(c, &req) {
		return
	}
	sceneID := c.Param("scene_id")
	ok := h.do(c, func(sess *editor.Session) error {
		return sess.Edit(func(m *graph.Model) error {
			if !m.MoveSegment(sceneID, from, *req.To) {
				return sceneError(m, sceneID, editor.ErrSegmentNotFound)
			}
			return nil
		})
	})
	if ok {
		h.Response.Success(c, gin.H{"from": from, "to": *req.To})
	}
}

// GenerateSegment 用LLM生成片段文本。生成失败时保存兜底文本并照常返回
func (h *Handler) GenerateSegment(c *gin.Context) {
	index, valid := segmentIndex(c)
	if !valid {
		h.Response.BadRequest(c, "segment index must be a non-negative integer")
		return
	}
	text, err := h.Editor.GenerateSegmentText(c.Request.Context(), c.Param("id"), c.Param("scene_id"), index)
	if err != nil {
		if isCollaboratorError(err) {
			h.Response.Success(c, gin.H{"text": text, "fallback": true}, sanitizeErrorMessage(err.Error()))
			return
		}
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"text": text, "fallback": false})
}

// AutoLayout 把所有场景排到网格上
func (h *Handler) AutoLayout(c *gin.Context) {
	var moved int
	ok := h.do(c, func(sess *editor.Session) error {
		var err error
		moved, err = sess.AutoLayout()
		return err
	})
	if ok {
		h.Response.Success(c, gin.H{"scenes": moved})
	}
}

// ScanStory 运行内容完整性检查
func (h *Handler) ScanStory(c *gin.Context) {
	records, summary, err := h.Editor.Scan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"issues": records, "summary": summary})
}

// GetIssues 返回上一次检查结果，不重新扫描
func (h *Handler) GetIssues(c *gin.Context) {
	var records []validation.Record
	var scanned bool
	ok := h.do(c, func(sess *editor.Session) error {
		var issues []validation.Issue
		issues, scanned = sess.Issues()
		records = validation.Records(issues)
		return nil
	})
	if ok {
		h.Response.Success(c, gin.H{"scanned": scanned, "issues": records})
	}
}

// FixMissingImages 为缺图片段填入占位图
func (h *Handler) FixMissingImages(c *gin.Context) {
	fixed, err := h.Editor.FixMissingImages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"fixed": fixed})
}
