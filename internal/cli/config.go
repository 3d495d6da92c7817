// internal/cli/config.go
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds storyctl defaults. Flags override it.
type Config struct {
	UI       UIConfig       `toml:"ui"`
	Validate ValidateConfig `toml:"validate"`
	Render   RenderConfig   `toml:"render"`
	Text     TextConfig     `toml:"text"`
}

// UIConfig controls terminal output.
type UIConfig struct {
	Color bool `toml:"color"`
}

// ValidateConfig controls the validate command's exit status.
type ValidateConfig struct {
	// FailOn is the lowest severity that makes validate fail: high, medium,
	// low, or none.
	FailOn string `toml:"fail_on"`
}

// RenderConfig sets the default image size.
type RenderConfig struct {
	Width   int     `toml:"width"`
	Height  int     `toml:"height"`
	Padding float64 `toml:"padding"`
}

// TextConfig sets the default text notation.
type TextConfig struct {
	Format string `toml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		UI:       UIConfig{Color: true},
		Validate: ValidateConfig{FailOn: "high"},
		Render:   RenderConfig{Width: 1600, Height: 1000, Padding: 40},
		Text:     TextConfig{Format: "json"},
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/storyctl/config.toml.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "storyctl", "config.toml")
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
