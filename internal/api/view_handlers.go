// internal/api/view_handlers.go
package api

import (
	"bytes"
	"net/http"

	"github.com/90n9/talepick/internal/canvas"
	"github.com/90n9/talepick/internal/editor"
	"github.com/90n9/talepick/internal/viewport"
	"github.com/gin-gonic/gin"
)

const (
	defaultRenderWidth  = 1280
	defaultRenderHeight = 800
)

// UpdateTextRequest 文本模式下的缓冲区内容
type UpdateTextRequest struct {
	Text string `json:"text"`
}

// WheelRequest 滚轮事件。zoom 为 true 时缩放，否则平移
type WheelRequest struct {
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
	Zoom bool    `json:"zoom"`
}

// FitRequest 视口尺寸
type FitRequest struct {
	Width  float64 `json:"width" binding:"required,gt=0"`
	Height float64 `json:"height" binding:"required,gt=0"`
}

// SelectRequest 选中场景，空字符串清除选中
type SelectRequest struct {
	SceneID string `json:"scene_id"`
}

// PointerRequest 指针事件（屏幕坐标）
type PointerRequest struct {
	Phase string  `json:"phase" binding:"required,oneof=down move up"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// RenderQuery 渲染参数
type RenderQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=svg png"`
	Width  int    `form:"width" binding:"omitempty,min=64,max=8192"`
	Height int    `form:"height" binding:"omitempty,min=64,max=8192"`
}

// EnterTextMode 进入文本模式，返回图的文本形式
func (h *Handler) EnterTextMode(c *gin.Context) {
	text, err := h.Editor.EnterTextMode(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"text": text})
}

// UpdateText 替换文本缓冲区
func (h *Handler) UpdateText(c *gin.Context) {
	var req UpdateTextRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.Editor.UpdateText(c.Request.Context(), c.Param("id"), req.Text); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"length": len(req.Text)})
}

// LeaveTextMode 应用文本并回到可视模式。discard=true 时丢弃文本修改
func (h *Handler) LeaveTextMode(c *gin.Context) {
	id := c.Param("id")
	discard := c.Query("discard") == "true"
	if err := h.Editor.LeaveTextMode(c.Request.Context(), id, discard); err != nil {
		h.Response.FromError(c, err)
		return
	}
	state, err := h.Editor.State(c.Request.Context(), id)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// Wheel 处理滚轮事件
func (h *Handler) Wheel(c *gin.Context) {
	var req WheelRequest
	if !h.bind(c, &req) {
		return
	}
	var camera viewport.State
	ok := h.do(c, func(sess *editor.Session) error {
		sess.Wheel(req.DX, req.DY, req.Zoom)
		camera = sess.Camera().State()
		return nil
	})
	if ok {
		h.Response.Success(c, camera)
	}
}

// ResetView 重置相机
func (h *Handler) ResetView(c *gin.Context) {
	var camera viewport.State
	ok := h.do(c, func(sess *editor.Session) error {
		sess.Camera().ResetView()
		camera = sess.Camera().State()
		return nil
	})
	if ok {
		h.Response.Success(c, camera)
	}
}

// FitView 让整个图适配视口
func (h *Handler) FitView(c *gin.Context) {
	var req FitRequest
	if !h.bind(c, &req) {
		return
	}
	var camera viewport.State
	ok := h.do(c, func(sess *editor.Session) error {
		sess.FitView(req.Width, req.Height)
		camera = sess.Camera().State()
		return nil
	})
	if ok {
		h.Response.Success(c, camera)
	}
}

// SelectScene 选中场景
func (h *Handler) SelectScene(c *gin.Context) {
	var req SelectRequest
	if !h.bind(c, &req) {
		return
	}
	ok := h.do(c, func(sess *editor.Session) error {
		if !sess.Select(req.SceneID) {
			return editor.ErrSceneNotFound
		}
		return nil
	})
	if ok {
		h.Response.Success(c, gin.H{"selected": req.SceneID})
	}
}

// Pointer 处理按下、移动、抬起事件
func (h *Handler) Pointer(c *gin.Context) {
	var req PointerRequest
	if !h.bind(c, &req) {
		return
	}
	p := viewport.Point{X: req.X, Y: req.Y}
	var data gin.H
	ok := h.do(c, func(sess *editor.Session) error {
		switch req.Phase {
		case "down":
			sess.PointerDown(p)
		case "move":
			sess.PointerMove(p)
		case "up":
			sess.PointerUp(p)
		}
		data = gin.H{
			"gesture":  sess.Gesture(),
			"selected": sess.Selected(),
			"camera":   sess.Camera().State(),
		}
		return nil
	})
	if ok {
		h.Response.Success(c, data)
	}
}

// GetFrame 返回当前可绘制的帧数据
func (h *Handler) GetFrame(c *gin.Context) {
	var frame canvas.Frame
	ok := h.do(c, func(sess *editor.Session) error {
		frame = sess.Frame()
		return nil
	})
	if ok {
		h.Response.Success(c, frame)
	}
}

// RenderCanvas 把当前帧渲染为 SVG 或 PNG
func (h *Handler) RenderCanvas(c *gin.Context) {
	var q RenderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorRenderFormat, "invalid render parameters", err.Error())
		return
	}
	if q.Format == "" {
		q.Format = "svg"
	}
	if q.Width == 0 {
		q.Width = defaultRenderWidth
	}
	if q.Height == 0 {
		q.Height = defaultRenderHeight
	}

	var frame canvas.Frame
	if !h.do(c, func(sess *editor.Session) error {
		frame = sess.Frame()
		return nil
	}) {
		return
	}

	// 渲染在故事锁之外进行
	var buf bytes.Buffer
	var err error
	contentType := "image/svg+xml"
	if q.Format == "png" {
		contentType = "image/png"
		err = canvas.RenderPNG(&buf, frame, q.Width, q.Height)
	} else {
		err = canvas.RenderSVG(&buf, frame, q.Width, q.Height)
	}
	if err != nil {
		h.Response.InternalError(c, "failed to render canvas", err.Error())
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
