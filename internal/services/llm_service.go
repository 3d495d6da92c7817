// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/90n9/talepick/internal/config"
	"github.com/90n9/talepick/internal/llm"
)

// ErrLLMNotReady is returned when no provider is configured.
var ErrLLMNotReady = errors.New("llm service not ready")

const segmentSystemPrompt = "You write one short paragraph of vivid narration for a scene " +
	"in an interactive story. Reply with the paragraph only."

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	readyState    string

	cacheMutex sync.Mutex
	cache      map[string]cachedText
	expiration time.Duration
}

type cachedText struct {
	text      string
	createdAt time.Time
}

// NewLLMService 根据配置创建服务。配置不完整时返回未就绪的服务而不是错误
func NewLLMService(cfg *config.AppConfig) *LLMService {
	s := &LLMService{
		readyState: "Uninitialized",
		cache:      make(map[string]cachedText),
		expiration: 30 * time.Minute,
	}
	if cfg == nil || cfg.LLMProvider == "" {
		s.readyState = "LLM provider not configured"
		return s
	}
	if cfg.LLMConfig["api_key"] == "" {
		s.readyState = "API key not configured"
		return s
	}
	if err := s.UpdateProvider(cfg.LLMProvider, cfg.LLMConfig); err != nil {
		return s
	}
	return s
}

// NewLLMServiceWithProvider wraps an initialized provider.
func NewLLMServiceWithProvider(name string, p llm.Provider) *LLMService {
	s := NewLLMService(nil)
	s.provider = p
	s.providerName = name
	s.readyState = "Ready"
	return s
}

// GetProviderStatus 返回服务是否就绪以及可读描述
func (s *LLMService) GetProviderStatus() (bool, string) {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil, s.readyState
}

// GetProviderName 返回当前提供商名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider 更新LLM服务的提供商
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := llm.GetProvider(providerName, cfg)

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	if err != nil {
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		return err
	}
	s.provider = provider
	s.providerName = providerName
	s.readyState = "Ready"

	s.cacheMutex.Lock()
	s.cache = make(map[string]cachedText)
	s.cacheMutex.Unlock()
	return nil
}

func (s *LLMService) cacheKey(prompt string) string {
	sum := md5.Sum([]byte(s.providerName + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// Generate 为片段生成描述文本。相同提示词在缓存有效期内复用结果
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	s.providerMutex.RLock()
	provider := s.provider
	key := s.cacheKey(prompt)
	s.providerMutex.RUnlock()

	if provider == nil {
		return "", ErrLLMNotReady
	}

	s.cacheMutex.Lock()
	if hit, ok := s.cache[key]; ok && time.Since(hit.createdAt) < s.expiration {
		s.cacheMutex.Unlock()
		return hit.text, nil
	}
	s.cacheMutex.Unlock()

	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: segmentSystemPrompt,
		Prompt:       prompt,
		MaxTokens:    300,
		Temperature:  0.8,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}

	s.cacheMutex.Lock()
	s.cache[key] = cachedText{text: text, createdAt: time.Now()}
	s.cacheMutex.Unlock()
	return text, nil
}
