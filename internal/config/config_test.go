package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidate_SchedulerTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.TimeoutSeconds = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for timeoutSeconds=0")
	}
}

func TestValidate_SchedulerEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.Endpoint = "ftp://example.com"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for non-http endpoint")
	}

	cfg.Scheduler.Endpoint = "https://script.google.com/macros/s/x/exec"
	if err := Validate(cfg); err != nil {
		t.Fatalf("https endpoint should be valid: %v", err)
	}
}

func TestValidate_HistoryNeedsPath(t *testing.T) {
	cfg := Defaults()
	cfg.History.Enabled = true
	cfg.History.DBPath = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled history without dbPath")
	}
}

// --- Load / Save ---

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Server.Port = 8088
	cfg.Scheduler.Endpoint = "https://example.com/exec"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Port != 8088 {
		t.Errorf("expected port 8088, got %d", loaded.Server.Port)
	}
	if loaded.Scheduler.Endpoint != "https://example.com/exec" {
		t.Errorf("endpoint not preserved: %s", loaded.Scheduler.Endpoint)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := Save(path, Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Setenv("WA_ACCESS_TOKEN", "token-from-env")
	t.Setenv("SCHEDULER_URL", "https://env.example.com/exec")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Channels.WhatsApp.AccessToken != "token-from-env" {
		t.Errorf("WA_ACCESS_TOKEN override not applied: %q", cfg.Channels.WhatsApp.AccessToken)
	}
	if cfg.Scheduler.Endpoint != "https://env.example.com/exec" {
		t.Errorf("SCHEDULER_URL override not applied: %q", cfg.Scheduler.Endpoint)
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_Basic(t *testing.T) {
	os.Setenv("CITABOT_TEST_VAR", "value123")
	defer os.Unsetenv("CITABOT_TEST_VAR")

	result := ExpandEnvVars("token is ${CITABOT_TEST_VAR}")
	if result != "token is value123" {
		t.Errorf("expected substitution, got: %s", result)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	os.Unsetenv("CITABOT_UNSET_VAR")

	result := ExpandEnvVars("${CITABOT_UNSET_VAR:-fallback}")
	if result != "fallback" {
		t.Errorf("expected fallback, got: %s", result)
	}
}

func TestExpandEnvVars_UnsetNoDefault(t *testing.T) {
	os.Unsetenv("CITABOT_UNSET_VAR")

	result := ExpandEnvVars("${CITABOT_UNSET_VAR}")
	if result != "${CITABOT_UNSET_VAR}" {
		t.Errorf("expected original kept, got: %s", result)
	}
}
