package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "3001" {
		t.Errorf("default port = %q", cfg.Port)
	}
	if cfg.ContainerSize != 54 {
		t.Errorf("default container size = %d", cfg.ContainerSize)
	}
	if !cfg.EvaluatorEnabled {
		t.Error("evaluator should default to enabled")
	}
	if cfg.JanitorInterval != 30*time.Second {
		t.Errorf("default janitor interval = %v", cfg.JanitorInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MENU_CONTAINER_SIZE", "27")
	t.Setenv("PLACEHOLDER_EVALUATOR_ENABLED", "false")
	t.Setenv("JANITOR_INTERVAL", "5s")
	t.Setenv("CLICK_RATE_PER_SECOND", "2.5")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("port override failed: %q", cfg.Port)
	}
	if cfg.ContainerSize != 27 {
		t.Errorf("container size override failed: %d", cfg.ContainerSize)
	}
	if cfg.EvaluatorEnabled {
		t.Error("evaluator override failed")
	}
	if cfg.JanitorInterval != 5*time.Second {
		t.Errorf("janitor interval override failed: %v", cfg.JanitorInterval)
	}
	if cfg.ClickRatePerSecond != 2.5 {
		t.Errorf("click rate override failed: %v", cfg.ClickRatePerSecond)
	}
}

func TestLoadInvalidEnvKeepsDefaults(t *testing.T) {
	t.Setenv("MENU_CONTAINER_SIZE", "not-a-number")
	t.Setenv("JANITOR_INTERVAL", "soon")

	cfg := Load()
	if cfg.ContainerSize != 54 {
		t.Errorf("invalid int should keep default, got %d", cfg.ContainerSize)
	}
	if cfg.JanitorInterval != 30*time.Second {
		t.Errorf("invalid duration should keep default, got %v", cfg.JanitorInterval)
	}
}

func TestLoadMessagesDefaults(t *testing.T) {
	msgs, err := LoadMessages("")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if msgs.PermissionDenied == "" || msgs.MenuNotFound == "" {
		t.Error("defaults must not be empty")
	}
}

func TestLoadMessagesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	content := "permission_denied: Nope.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	msgs, err := LoadMessages(path)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if msgs.PermissionDenied != "Nope." {
		t.Errorf("override failed: %q", msgs.PermissionDenied)
	}
	// Fields absent from the file keep their defaults.
	if msgs.ConditionNotMet != DefaultMessages().ConditionNotMet {
		t.Errorf("unset field should keep default, got %q", msgs.ConditionNotMet)
	}
}

func TestLoadMessagesBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMessages(path); err == nil {
		t.Error("expected a parse error")
	}
}
