package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type Config struct {
	// DefaultProfile is the profile bound at startup when it exists.
	DefaultProfile string `json:"default_profile"`
	// DefaultProvider seeds the provider field of new profiles.
	DefaultProvider string `json:"default_provider"`
	// OllamaURL overrides the local Ollama endpoint.
	OllamaURL string `json:"ollama_url,omitempty"`
	// BedrockRegion selects the AWS region for Bedrock calls.
	BedrockRegion string `json:"bedrock_region,omitempty"`
	// MaxTokens caps completion length; 0 leaves it to the provider.
	MaxTokens int64 `json:"max_tokens,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		DefaultProvider: "ollama",
	}
}

func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tern")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tern")
}

func Path() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func Load() Config {
	cfg := DefaultConfig()
	data, err := os.ReadFile(Path())
	if err != nil {
		return cfg
	}
	_ = json.Unmarshal(data, &cfg) // ignore errors; fall back to defaults
	return cfg
}

func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(Path(), data, 0o644)
}
