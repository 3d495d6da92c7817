// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/90n9/talepick/internal/config"
	"github.com/90n9/talepick/internal/di"
	"github.com/90n9/talepick/internal/services"
	"github.com/90n9/talepick/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	apiRateLimit  = 600
	apiRateWindow = time.Minute
)

// SetupRouter 配置HTTP路由。WebSocket 管理器注册到容器中并作为编辑事件的发布者
func SetupRouter(container *di.Container, cfg *config.AppConfig) (*gin.Engine, error) {
	stories, err := di.Resolve[*services.StoryService](container, di.ServiceStories)
	if err != nil {
		return nil, fmt.Errorf("故事服务未正确初始化: %w", err)
	}
	editorService, err := di.Resolve[*services.EditorService](container, di.ServiceEditor)
	if err != nil {
		return nil, fmt.Errorf("编辑服务未正确初始化: %w", err)
	}
	llmService, err := di.Resolve[*services.LLMService](container, di.ServiceLLM)
	if err != nil {
		return nil, fmt.Errorf("LLM服务未正确初始化: %w", err)
	}
	metrics, err := di.Resolve[*utils.EditorMetrics](container, di.ServiceMetrics)
	if err != nil {
		return nil, fmt.Errorf("指标服务未正确初始化: %w", err)
	}

	ws, err := di.Resolve[*WebSocketManager](container, di.ServiceEvents)
	if err != nil {
		ws = NewWebSocketManager()
		container.Register(di.ServiceEvents, ws)
	}
	editorService.SetPublisher(ws)

	handler := NewHandler(stories, editorService, llmService, metrics, ws)

	r := gin.Default()
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(MetricsMiddleware(metrics))

	// 静态文件服务（包括上传的资源）
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	// WebSocket 事件流
	r.GET("/ws/stories/:id", handler.StoryEvents)

	api := r.Group("/api")
	api.Use(RateLimitByIP(NewRateLimiter(apiRateLimit, apiRateWindow)))
	{
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/ws/status", handler.GetWebSocketStatus)

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		// ===============================
		// 故事相关路由
		// ===============================
		api.GET("/stories", handler.ListStories)
		api.POST("/stories", handler.CreateStory)

		story := api.Group("/stories/:id")
		{
			story.GET("", handler.GetStoryState)
			story.DELETE("", handler.DeleteStory)
			story.DELETE("/session", handler.CloseSession)
			story.POST("/save", handler.SaveStory)

			// 场景、选项与片段
			story.POST("/scenes", handler.AddScene)
			story.POST("/start", handler.SetStartScene)
			scene := story.Group("/scenes/:scene_id")
			{
				scene.PATCH("", handler.UpdateScene)
				scene.PUT("/position", handler.MoveScene)
				scene.DELETE("", handler.DeleteScene)

				scene.POST("/choices", handler.AddChoice)
				scene.PATCH("/choices/:choice_id", handler.UpdateChoice)
				scene.DELETE("/choices/:choice_id", handler.DeleteChoice)

				scene.POST("/segments", handler.AddSegment)
				scene.PATCH("/segments/:index", handler.UpdateSegment)
				scene.DELETE("/segments/:index", handler.DeleteSegment)
				scene.POST("/segments/:index/move", handler.MoveSegment)
				scene.POST("/segments/:index/generate", handler.GenerateSegment)
			}

			// 布局与检查
			story.POST("/layout", handler.AutoLayout)
			story.POST("/scan", handler.ScanStory)
			story.GET("/issues", handler.GetIssues)
			story.POST("/fix-missing-images", handler.FixMissingImages)

			// 资源
			story.GET("/assets", handler.ListAssets)
			story.POST("/assets", handler.UploadAsset)
			story.DELETE("/assets", handler.DeleteUnusedAssets)
			story.DELETE("/assets/:asset_id", handler.DeleteAsset)

			// 文本模式
			story.POST("/text/enter", handler.EnterTextMode)
			story.PUT("/text", handler.UpdateText)
			story.POST("/text/leave", handler.LeaveTextMode)

			// 相机、选择与指针
			story.POST("/camera/wheel", handler.Wheel)
			story.POST("/camera/reset", handler.ResetView)
			story.POST("/camera/fit", handler.FitView)
			story.POST("/select", handler.SelectScene)
			story.POST("/pointer", handler.Pointer)

			// 画布
			story.GET("/frame", handler.GetFrame)
			story.GET("/render", handler.RenderCanvas)
		}
	}

	return r, nil
}
