package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for citabot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Server    ServerConfig    `json:"server"`
	Channels  ChannelsConfig  `json:"channels"`
	Scheduler SchedulerConfig `json:"scheduler"`
	History   HistoryConfig   `json:"history"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
	RepliesFile           string `json:"repliesFile,omitempty"` // optional YAML overriding reply texts
}

// ServerConfig configures the HTTP server hosting the webhook, /healthz and /metrics.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

type WhatsAppConfig struct {
	AppSecret     string `json:"appSecret,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
	VerifyToken   string `json:"verifyToken,omitempty"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	WebhookPath   string `json:"webhookPath,omitempty"`
}

// SchedulerConfig configures the external scheduling gateway. An endpoint
// that is empty or not an http(s) URL switches the client to local mode
// with fixed placeholder slots.
type SchedulerConfig struct {
	Endpoint       string `json:"endpoint,omitempty"`
	Token          string `json:"token,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxSlots       int    `json:"maxSlots"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.citabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".citabot"
	}
	return filepath.Join(home, ".citabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.History.DBPath = ExpandPath(cfg.History.DBPath)
	cfg.General.RepliesFile = ExpandPath(cfg.General.RepliesFile)

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file, matching the variable names the WhatsApp deployment uses.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WA_ACCESS_TOKEN"); v != "" {
		cfg.Channels.WhatsApp.AccessToken = v
	}
	if v := os.Getenv("WA_VERIFY_TOKEN"); v != "" {
		cfg.Channels.WhatsApp.VerifyToken = v
	}
	if v := os.Getenv("WA_APP_SECRET"); v != "" {
		cfg.Channels.WhatsApp.AppSecret = v
	}
	if v := os.Getenv("WA_PHONE_NUMBER_ID"); v != "" {
		cfg.Channels.WhatsApp.PhoneNumberID = v
	}
	if v := os.Getenv("SCHEDULER_URL"); v != "" {
		cfg.Scheduler.Endpoint = v
	}
	if v := os.Getenv("SCHEDULER_TOKEN"); v != "" {
		cfg.Scheduler.Token = v
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	if cfg.Scheduler.TimeoutSeconds < 1 {
		errs = append(errs, "scheduler.timeoutSeconds must be >= 1")
	}
	if cfg.Scheduler.MaxSlots < 1 || cfg.Scheduler.MaxSlots > 9 {
		errs = append(errs, "scheduler.maxSlots must be between 1 and 9")
	}
	if cfg.Scheduler.Endpoint != "" && !strings.HasPrefix(cfg.Scheduler.Endpoint, "http") {
		errs = append(errs, "scheduler.endpoint must be an http(s) URL when set")
	}

	if cfg.History.Enabled && cfg.History.DBPath == "" {
		errs = append(errs, "history.dbPath is required when history is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
