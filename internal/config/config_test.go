// internal/config/config_test.go
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func setEnv(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("STATIC_DIR", filepath.Join(dir, "static"))
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("PORT", "9090")
	t.Setenv("TEXT_FORMAT", "YAML")
	t.Setenv("LLM_API_KEY", "env-key")
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.TextFormat != "yaml" || cfg.PlaceholderImage != DefaultPlaceholderImage {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, "static")); err != nil {
		t.Fatalf("static dir not created: %v", err)
	}
}

func TestLoadRejectsUnknownTextFormat(t *testing.T) {
	setEnv(t, t.TempDir())
	t.Setenv("TEXT_FORMAT", "xml")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for xml text format")
	}
}

func TestInitConfigMergesSavedLLMSettings(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir)
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	saved, _ := json.Marshal(AppConfig{
		Port:        "1",
		LLMProvider: "openrouter",
		LLMConfig:   map[string]string{"api_key": "file-key", "default_model": "m1"},
	})
	if err := os.WriteFile(filepath.Join(dataDir, "config.json"), saved, 0600); err != nil {
		t.Fatal(err)
	}

	if err := InitConfig(""); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	cfg := GetCurrentConfig()
	if cfg.Port != "9090" {
		t.Errorf("port should come from env, got %s", cfg.Port)
	}
	if cfg.LLMProvider != "openrouter" || cfg.LLMConfig["default_model"] != "m1" {
		t.Errorf("saved LLM settings lost: %+v", cfg)
	}
	if cfg.LLMConfig["api_key"] != "env-key" {
		t.Errorf("env key should win, got %q", cfg.LLMConfig["api_key"])
	}
	if cfg.StoriesDir() != filepath.Join(dataDir, "stories") {
		t.Errorf("StoriesDir = %s", cfg.StoriesDir())
	}

	cfg.LLMConfig["api_key"] = "mutated"
	if GetCurrentConfig().LLMConfig["api_key"] != "env-key" {
		t.Error("GetCurrentConfig must return a copy")
	}

	if err := UpdateLLMConfig("openai", map[string]string{"default_model": "m2"}); err != nil {
		t.Fatal(err)
	}
	if GetCurrentConfig().LLMConfig["default_model"] != "m2" {
		t.Error("update not applied")
	}
}
