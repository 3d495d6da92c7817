// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/90n9/talepick/internal/api"
	"github.com/90n9/talepick/internal/app"
	"github.com/90n9/talepick/internal/config"
	"github.com/90n9/talepick/internal/di"
	"github.com/90n9/talepick/internal/utils"
	"github.com/fogleman/gg"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("🚀 启动故事编辑服务器...")

	// 1. 首先加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. 初始化日志
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(baseConfig.LogLevel))
	if err := utils.InitLogger(filepath.Join(baseConfig.LogDir, "server.log")); err != nil {
		log.Printf("⚠️ 日志文件不可用，仅输出到控制台: %v", err)
	}
	defer logger.Close()

	// 3. 初始化配置系统
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}
	cfg := config.GetCurrentConfig()
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 4. 创建必要的目录和占位图
	if err := ensureStaticFiles(cfg); err != nil {
		log.Fatalf("创建静态目录失败: %v", err)
	}

	// 5. 初始化所有服务（按依赖顺序）
	container := di.GetContainer()
	if err := app.InitServices(cfg); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	defer app.Shutdown(container)
	if err := container.Require(di.ServiceStories, di.ServiceEditor, di.ServiceLLM, di.ServiceMetrics); err != nil {
		log.Fatalf("服务健康检查失败: %v", err)
	}
	log.Printf("✅ 所有服务初始化完成: %s", strings.Join(container.GetNames(), ", "))

	// 6. 设置路由
	router, err := api.SetupRouter(container, cfg)
	if err != nil {
		log.Fatalf("❌ 设置路由失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metrics, err := di.Resolve[*utils.EditorMetrics](container, di.ServiceMetrics); err == nil {
		go metrics.StartMetricsCollection(ctx, 5*time.Minute)
	}

	// 7. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s", cfg.Port)
	if err := serve(ctx, router, cfg.Port); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}

// serve 运行服务器直到 ctx 结束，然后优雅关闭
func serve(ctx context.Context, router *gin.Engine, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("启动服务器失败: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("🛑 正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	return nil
}

// ensureStaticFiles 确保静态目录存在，并在缺失时生成占位图
func ensureStaticFiles(cfg *config.AppConfig) error {
	for _, dir := range []string{cfg.StaticDir, cfg.UploadsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	// 占位图只有在指向本地静态目录时才需要生成
	rel, ok := strings.CutPrefix(cfg.PlaceholderImage, "/static/")
	if !ok {
		return nil
	}
	path := filepath.Join(cfg.StaticDir, filepath.FromSlash(rel))
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := generatePlaceholderImage(path); err != nil {
		log.Printf("警告: 无法生成占位图: %v", err)
		return nil
	}
	log.Printf("成功生成占位图: %s", path)
	return nil
}

// generatePlaceholderImage 生成一张中性渐变的占位图
func generatePlaceholderImage(outputPath string) error {
	const width, height = 640, 360

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}

	dc := gg.NewContext(width, height)
	grad := gg.NewLinearGradient(0, 0, width, height)
	grad.AddColorStop(0, color.RGBA{R: 45, G: 55, B: 72, A: 255})
	grad.AddColorStop(1, color.RGBA{R: 74, G: 85, B: 104, A: 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()

	// 中间画一个简单的“图片”图标
	dc.SetHexColor("#a0aec0")
	dc.SetLineWidth(6)
	dc.DrawRoundedRectangle(width/2-80, height/2-55, 160, 110, 10)
	dc.Stroke()
	dc.DrawCircle(width/2-35, height/2-15, 14)
	dc.Fill()
	dc.MoveTo(width/2-70, height/2+45)
	dc.LineTo(width/2-10, height/2-5)
	dc.LineTo(width/2+25, height/2+25)
	dc.LineTo(width/2+45, height/2+5)
	dc.LineTo(width/2+70, height/2+45)
	dc.ClosePath()
	dc.Fill()

	return dc.SavePNG(outputPath)
}
