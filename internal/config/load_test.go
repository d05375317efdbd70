package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nonexistent.yaml")

	cfg, err := Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Flush.IntervalSeconds != 15*time.Second {
		t.Fatalf("expected default flush interval, got %v", cfg.Flush.IntervalSeconds)
	}
	if cfg.SelfAPI.BaseURL != "" {
		t.Fatalf("expected empty default self_api base url, got %q", cfg.SelfAPI.BaseURL)
	}
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
flush:
  via_adapter: true
  interval_seconds: 30s
self_api:
  quest_api_base_url: https://api.internal.example.com
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Flush.ViaAdapter {
		t.Fatal("expected flush.via_adapter true from YAML")
	}
	if cfg.Flush.IntervalSeconds != 30*time.Second {
		t.Fatalf("expected flush interval 30s, got %v", cfg.Flush.IntervalSeconds)
	}
	if cfg.SelfAPI.BaseURL != "https://api.internal.example.com" {
		t.Fatalf("expected quest_api_base_url from YAML, got %q", cfg.SelfAPI.BaseURL)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
flush:
  via_adapter: false
`
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("NONAGON_FLUSH_VIA_ADAPTER", "true")

	cfg, err := Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Flush.ViaAdapter {
		t.Fatal("expected env override to set flush.via_adapter true")
	}
}

func TestLoad_EnvDeepNestedUnderscore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nonexistent.yaml")

	t.Setenv("NONAGON_GATEWAY_BOT_TOKEN", "secret-token")

	cfg, err := Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.BotToken != "secret-token" {
		t.Fatalf("expected bot_token from env, got %q", cfg.Gateway.BotToken)
	}
}

func TestLoad_FromFlags(t *testing.T) {
	flags := SetupFlags()
	if err := flags.Parse([]string{
		"--self_api.quest_api_base_url=https://api.example.com",
		"--flush.via_adapter=true",
	}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nonexistent.yaml")

	cfg, err := Load(cfgPath, flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SelfAPI.BaseURL != "https://api.example.com" {
		t.Fatalf("expected quest_api_base_url from flags, got %q", cfg.SelfAPI.BaseURL)
	}
	if !cfg.Flush.ViaAdapter {
		t.Fatal("expected flush.via_adapter true from flags")
	}
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
database:
  dir: ""
`
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, nil); err == nil {
		t.Fatal("expected validation failure for empty database.dir")
	}
}
