// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// 默认值
const (
	DefaultPort             = "8080"
	DefaultPlaceholderImage = "/static/placeholder.png"
	DefaultTextFormat       = "json"
	DefaultLLMProvider      = "openai"
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	StaticDir string `json:"static_dir"`
	LogDir    string `json:"log_dir"`
	LogLevel  string `json:"log_level"`
	DebugMode bool   `json:"debug_mode"`

	// 编辑器配置
	PlaceholderImage string `json:"placeholder_image"`
	TextFormat       string `json:"text_format"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Config 存储从环境变量读取的基础配置
type Config struct {
	Port             string
	DataDir          string
	StaticDir        string
	LogDir           string
	LogLevel         string
	DebugMode        bool
	PlaceholderImage string
	TextFormat       string
	LLMProvider      string
	LLMAPIKey        string
	LLMBaseURL       string
	LLMModel         string
}

// StoriesDir 返回故事文件目录
func (c *AppConfig) StoriesDir() string {
	return filepath.Join(c.DataDir, "stories")
}

// UploadsDir 返回上传文件目录
func (c *AppConfig) UploadsDir() string {
	return filepath.Join(c.StaticDir, "uploads")
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		DataDir:          getEnvPath("DATA_DIR", "data"),
		StaticDir:        getEnvPath("STATIC_DIR", "static"),
		LogDir:           getEnvPath("LOG_DIR", "logs"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DebugMode:        getEnvBool("DEBUG_MODE", false),
		PlaceholderImage: getEnv("PLACEHOLDER_IMAGE", DefaultPlaceholderImage),
		TextFormat:       strings.ToLower(getEnv("TEXT_FORMAT", DefaultTextFormat)),
		LLMProvider:      getEnv("LLM_PROVIDER", DefaultLLMProvider),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		LLMModel:         getEnv("LLM_MODEL", ""),
	}

	switch cfg.TextFormat {
	case "json", "yaml", "yml":
	default:
		return nil, fmt.Errorf("TEXT_FORMAT 无效: %q", cfg.TextFormat)
	}

	return cfg, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func fromBase(base *Config) *AppConfig {
	llm := map[string]string{}
	if base.LLMAPIKey != "" {
		llm["api_key"] = base.LLMAPIKey
	}
	if base.LLMBaseURL != "" {
		llm["base_url"] = base.LLMBaseURL
	}
	if base.LLMModel != "" {
		llm["default_model"] = base.LLMModel
	}
	return &AppConfig{
		Port:             base.Port,
		DataDir:          base.DataDir,
		StaticDir:        base.StaticDir,
		LogDir:           base.LogDir,
		LogLevel:         base.LogLevel,
		DebugMode:        base.DebugMode,
		PlaceholderImage: base.PlaceholderImage,
		TextFormat:       base.TextFormat,
		LLMProvider:      base.LLMProvider,
		LLMConfig:        llm,
	}
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	base, err := Load()
	if err != nil {
		return err
	}
	if dataDir != "" {
		base.DataDir = dataDir
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	configFile = filepath.Join(base.DataDir, "config.json")
	currentConfig = fromBase(base)

	// 合并已保存的LLM设置，路径类配置始终以环境变量为准
	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil {
			if saved.LLMProvider != "" {
				currentConfig.LLMProvider = saved.LLMProvider
			}
			for k, v := range saved.LLMConfig {
				if _, set := currentConfig.LLMConfig[k]; !set {
					currentConfig.LLMConfig[k] = v
				}
			}
		}
	}

	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		base, err := Load()
		if err != nil {
			base = &Config{Port: DefaultPort, DataDir: "data", StaticDir: "static", LogDir: "logs",
				LogLevel: "info", PlaceholderImage: DefaultPlaceholderImage, TextFormat: DefaultTextFormat,
				LLMProvider: DefaultLLMProvider}
		}
		return fromBase(base)
	}

	cfg := *currentConfig
	cfg.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		cfg.LLMConfig[k] = v
	}
	return &cfg
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, cfg map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = cfg

	return saveLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	// API 密钥写入磁盘，限制为仅属主可读
	return os.WriteFile(configFile, data, 0600)
}
