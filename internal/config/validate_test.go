package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return Defaults()
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Flush.ViaAdapter {
		t.Fatalf("expected flush.via_adapter to default false")
	}
	if cfg.Flush.IntervalSeconds != 15*time.Second {
		t.Fatalf("expected default flush interval 15s, got %v", cfg.Flush.IntervalSeconds)
	}
	if cfg.Wizard.QuestAskTimeout != 300*time.Second {
		t.Fatalf("expected default quest ask timeout 300s, got %v", cfg.Wizard.QuestAskTimeout)
	}
	if cfg.Wizard.CharacterAskTimeout != 180*time.Second {
		t.Fatalf("expected default character ask timeout 180s, got %v", cfg.Wizard.CharacterAskTimeout)
	}
}

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
}

func TestValidate_SelfAPIDisabledByEmptyURL(t *testing.T) {
	cfg := validConfig()
	cfg.SelfAPI.BaseURL = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("empty self_api base url should be valid (disables remote path): %v", err)
	}
}

func TestValidate_SelfAPIInvalidURL(t *testing.T) {
	cfg := validConfig()
	cfg.SelfAPI.BaseURL = "not-a-url"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid self_api base url")
	}
	if !strings.Contains(err.Error(), "quest_api_base_url") {
		t.Fatalf("expected error about quest_api_base_url, got: %v", err)
	}
}

func TestValidate_DatabaseDirRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Dir = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty database.dir")
	}
	if !strings.Contains(err.Error(), "database.dir") {
		t.Fatalf("expected error about database.dir, got: %v", err)
	}
}

func TestValidate_FlushIntervalMustBePositive(t *testing.T) {
	cfg := validConfig()
	cfg.Flush.IntervalSeconds = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero flush interval")
	}
	if !strings.Contains(err.Error(), "flush.interval_seconds") {
		t.Fatalf("expected error about flush.interval_seconds, got: %v", err)
	}
}

func TestValidate_WizardTimeoutsTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Wizard.QuestAskTimeout = 100 * time.Millisecond
	cfg.Wizard.CharacterAskTimeout = 100 * time.Millisecond

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors for sub-second wizard timeouts")
	}
	msg := err.Error()
	if !strings.Contains(msg, "quest_ask_timeout") {
		t.Fatalf("expected quest_ask_timeout error, got: %v", err)
	}
	if !strings.Contains(msg, "character_ask_timeout") {
		t.Fatalf("expected character_ask_timeout error, got: %v", err)
	}
}

func TestValidate_LogLevelInvalid(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("expected error about log.level, got: %v", err)
	}
}
