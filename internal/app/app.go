// internal/app/app.go
package app

import (
	"fmt"

	"github.com/90n9/talepick/internal/config"
	"github.com/90n9/talepick/internal/di"
	"github.com/90n9/talepick/internal/editor"
	"github.com/90n9/talepick/internal/services"
	"github.com/90n9/talepick/internal/storage"
	"github.com/90n9/talepick/internal/textmode"
	"github.com/90n9/talepick/internal/utils"

	// 注册 LLM 提供者
	_ "github.com/90n9/talepick/internal/llm/providers/openai"
)

// UploadsURLPrefix 上传文件对外访问路径前缀
const UploadsURLPrefix = "/static/uploads"

// InitServices 按依赖顺序创建所有服务并注册到全局容器
func InitServices(cfg *config.AppConfig) error {
	return InitServicesInto(di.GetContainer(), cfg)
}

// InitServicesInto registers every service into c.
func InitServicesInto(c *di.Container, cfg *config.AppConfig) error {
	format, err := textmode.ParseFormat(cfg.TextFormat)
	if err != nil {
		return err
	}

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}
	c.Register(di.ServiceStorage, fileStorage)

	stories := services.NewStoryService(storage.NewStoryStore(fileStorage))
	c.Register(di.ServiceStories, stories)

	llmService := services.NewLLMService(cfg)
	if ready, state := llmService.GetProviderStatus(); !ready {
		utils.GetLogger().Warn("LLM service not ready, generated text will use the fallback", map[string]interface{}{
			"state": state,
		})
	}
	c.Register(di.ServiceLLM, llmService)

	uploads, err := services.NewUploadService(cfg.UploadsDir(), UploadsURLPrefix, 0)
	if err != nil {
		return err
	}
	c.Register(di.ServiceUploads, uploads)

	locks := services.NewLockManager()
	c.Register(di.ServiceLocks, locks)

	metrics := utils.NewEditorMetrics()
	c.Register(di.ServiceMetrics, metrics)

	editorService := services.NewEditorService(stories, llmService, uploads, locks, metrics, editor.Options{
		TextFormat:       format,
		PlaceholderImage: cfg.PlaceholderImage,
	})
	c.Register(di.ServiceEditor, editorService)

	return nil
}

// Shutdown 释放后台资源
func Shutdown(c *di.Container) {
	if events, ok := c.Get(di.ServiceEvents).(interface{ Shutdown() }); ok {
		events.Shutdown()
	}
	if fs, err := di.Resolve[*storage.FileStorage](c, di.ServiceStorage); err == nil {
		fs.Close()
	}
	if locks, err := di.Resolve[*services.LockManager](c, di.ServiceLocks); err == nil {
		locks.Close()
	}
}
