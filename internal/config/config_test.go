package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultProvider != "ollama" {
		t.Errorf("default_provider = %q, want ollama", cfg.DefaultProvider)
	}
	if cfg.DefaultProfile != "" {
		t.Errorf("default_profile = %q, want empty", cfg.DefaultProfile)
	}
}

func TestSaveAndLoad(t *testing.T) {
	// Use a temp dir as XDG_CONFIG_HOME to avoid touching real config
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := Config{
		DefaultProfile:  "daily",
		DefaultProvider: "anthropic",
		MaxTokens:       2048,
	}

	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "tern", "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	loaded := Load()
	if loaded.DefaultProfile != "daily" {
		t.Errorf("default_profile = %q", loaded.DefaultProfile)
	}
	if loaded.DefaultProvider != "anthropic" {
		t.Errorf("default_provider = %q", loaded.DefaultProvider)
	}
	if loaded.MaxTokens != 2048 {
		t.Errorf("max_tokens = %d", loaded.MaxTokens)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := Load()
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, "tern")
	os.MkdirAll(cfgDir, 0o755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("not json"), 0o644)

	cfg := Load()
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("malformed json: got %+v, want defaults", cfg)
	}
}

func TestLoad_PartialJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, "tern")
	os.MkdirAll(cfgDir, 0o755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(`{"default_profile":"daily"}`), 0o644)

	cfg := Load()
	if cfg.DefaultProfile != "daily" {
		t.Error("default_profile should come from file")
	}
	if cfg.DefaultProvider != "ollama" {
		t.Errorf("default_provider = %q, want preserved default", cfg.DefaultProvider)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	ternDir := filepath.Join(dir, "tern")
	if _, err := os.Stat(ternDir); err == nil {
		t.Fatal("tern dir shouldn't exist yet")
	}

	Save(DefaultConfig())

	if _, err := os.Stat(ternDir); err != nil {
		t.Errorf("Save should create directory: %v", err)
	}
}
