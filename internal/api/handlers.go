// internal/api/handlers.go
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/90n9/talepick/internal/config"
	"github.com/90n9/talepick/internal/editor"
	apperrors "github.com/90n9/talepick/internal/errors"
	"github.com/90n9/talepick/internal/services"
	"github.com/90n9/talepick/internal/storage"
	"github.com/90n9/talepick/internal/textmode"
	"github.com/90n9/talepick/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	Stories  *services.StoryService  // 故事存储
	Editor   *services.EditorService // 编辑会话
	LLM      *services.LLMService    // 文本生成
	Metrics  *utils.EditorMetrics    // 指标
	WS       *WebSocketManager       // 事件推送
	Response *ResponseHelper         // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(stories *services.StoryService, editorService *services.EditorService,
	llmService *services.LLMService, metrics *utils.EditorMetrics, ws *WebSocketManager) *Handler {
	return &Handler{
		Stories:  stories,
		Editor:   editorService,
		LLM:      llmService,
		Metrics:  metrics,
		WS:       ws,
		Response: NewResponseHelper(),
	}
}

// CreateStoryRequest 创建故事请求
type CreateStoryRequest struct {
	Title string `json:"title" binding:"required,max=200"`
}

// UpdateLLMConfigRequest LLM配置请求
type UpdateLLMConfigRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config"`
}

// do 在当前故事的会话上执行 fn，出错时直接写出错误响应
func (h *Handler) do(c *gin.Context, fn func(sess *editor.Session) error) bool {
	if err := h.Editor.Do(c.Request.Context(), c.Param("id"), fn); err != nil {
		h.Response.FromError(c, err)
		return false
	}
	return true
}

// bind 解析JSON请求体，失败时写出400
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return false
	}
	return true
}

func segmentIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// ListStories 获取所有故事
func (h *Handler) ListStories(c *gin.Context) {
	stories, err := h.Stories.ListStories(c.Request.Context())
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, stories)
}

// CreateStory 创建新故事
func (h *Handler) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if !h.bind(c, &req) {
		return
	}
	story, err := h.Stories.CreateStory(c.Request.Context(), req.Title)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, story.Meta(), "story created")
}

// GetStoryState 打开（或复用）编辑会话并返回其状态
func (h *Handler) GetStoryState(c *gin.Context) {
	state, err := h.Editor.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// DeleteStory 关闭会话并删除故事文件
func (h *Handler) DeleteStory(c *gin.Context) {
	id := c.Param("id")
	h.Editor.Close(id)
	if err := h.Stories.DeleteStory(c.Request.Context(), id); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"id": id}, "story deleted")
}

// CloseSession 丢弃未保存的修改并关闭会话
func (h *Handler) CloseSession(c *gin.Context) {
	closed := h.Editor.Close(c.Param("id"))
	h.Response.Success(c, gin.H{"closed": closed})
}

// SaveStory 保存当前会话
func (h *Handler) SaveStory(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.Editor.Save(c.Request.Context(), id)
	if err != nil {
		if !isMappedSaveError(err) {
			h.Response.Error(c, http.StatusInternalServerError, ErrorSaveFailed, err.Error())
			return
		}
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"story_id": snap.StoryID,
		"scenes":   len(snap.Scenes),
		"assets":   len(snap.Assets),
		"saved_at": time.Now(),
	}, "story saved")
}

// isMappedSaveError 判断保存错误是否有专门的错误代码
func isMappedSaveError(err error) bool {
	var perr *textmode.ParseError
	if errors.As(err, &perr) {
		return true
	}
	status, code := classify(err)
	return status != http.StatusInternalServerError || code != ErrorInternalError
}

// GetMetrics 获取运行指标
func (h *Handler) GetMetrics(c *gin.Context) {
	data := gin.H{
		"metrics":       h.Metrics.Collector().GetMetrics(),
		"open_sessions": h.Editor.OpenSessions(),
	}
	if h.WS != nil {
		data["websocket"] = h.WS.GetStatus()
	}
	h.Response.Success(c, data)
}

// GetLLMStatus 获取LLM服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	ready, state := h.LLM.GetProviderStatus()
	h.Response.Success(c, gin.H{
		"ready":    ready,
		"status":   state,
		"provider": h.LLM.GetProviderName(),
	})
}

// UpdateLLMConfig 切换LLM提供商并持久化配置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req UpdateLLMConfigRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.LLM.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, err.Error())
		return
	}
	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		// 提供商已切换，仅配置文件写入失败
		utils.GetLogger().Warn("Failed to persist LLM config", map[string]interface{}{
			"provider": req.Provider,
			"error":    err.Error(),
		})
	}
	ready, state := h.LLM.GetProviderStatus()
	h.Response.Success(c, gin.H{
		"ready":    ready,
		"status":   state,
		"provider": h.LLM.GetProviderName(),
	}, "LLM provider updated")
}

// StoryEvents 把故事的编辑事件通过 WebSocket 推送给客户端
func (h *Handler) StoryEvents(c *gin.Context) {
	id := c.Param("id")
	if err := storage.CheckStoryID(id); err != nil {
		h.Response.FromError(c, err)
		return
	}
	if h.WS == nil {
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorInternalError, "event stream is not available")
		return
	}
	h.WS.Serve(c.Writer, c.Request, id)
}

// GetWebSocketStatus 获取 WebSocket 连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, h.WS.GetStatus())
}

// isCollaboratorError 判断是否为外部协作方失败
func isCollaboratorError(err error) bool {
	return apperrors.TypeOf(err) == apperrors.ErrorTypeCollaborator
}
