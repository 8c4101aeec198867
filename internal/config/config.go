// Package config loads the relaybot configuration from a YAML file.
// Configuration is read once at startup and is immutable afterwards;
// see Watch for what happens when the file changes on disk.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Routes     map[string]int64 `json:"routes"`
	Moderation ModerationConfig `json:"moderation"`
	Translate  TranslateConfig  `json:"translate"`
	Logging    LoggingConfig    `json:"logging"`
	Storage    *StorageConfig   `json:"storage,omitempty"`
	Reminder   *ReminderConfig  `json:"reminder,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via the
	// BOT_TOKEN environment variable instead.
	Token string `json:"token,omitempty"`

	// SourceChannel is the channel whose posts are relayed.
	SourceChannel int64 `json:"source_channel"`

	// AdminChat receives review items and accepts admin commands.
	AdminChat int64 `json:"admin_chat"`

	// PollTimeout is a Go duration string (default "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`

	// SendRatePerSec caps outbound API calls (default 25).
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type ModerationConfig struct {
	// Enabled is the initial state of the moderation toggle.
	Enabled bool `json:"enabled"`

	// AlbumDebounce is the quiet period after which an album is
	// considered complete (Go duration string, default "1s"). This is a
	// heuristic: Telegram delivers media-group fragments as independent
	// updates with no end-of-group marker, so a fragment arriving later
	// than the debounce window becomes a separate post.
	AlbumDebounce string `json:"album_debounce,omitempty"`
}

type TranslateConfig struct {
	// Provider selects the backend: "google" (default) or "openai".
	Provider string `json:"provider,omitempty"`

	// SourceLang is the language posts are written in (default "ru").
	SourceLang string `json:"source_lang,omitempty"`

	// Endpoint overrides the google backend URL (tests, proxies).
	Endpoint string `json:"endpoint,omitempty"`

	// APIKey may come from the OPENAI_API_KEY environment variable.
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model,omitempty"`

	// Timeout bounds one translation call (Go duration string, default "15s").
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string                `json:"level,omitempty"`
	Console  bool                  `json:"console"`
	File     LoggingFileConfig     `json:"file,omitempty"`
	Telegram LoggingTelegramConfig `json:"telegram,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// LoggingTelegramConfig mirrors warn/error logs into the admin chat.
type LoggingTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the delivery log.
//
// Driver values:
//   - "file": JSONL append log
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", the delivery log is disabled.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ReminderConfig controls the pending-review digest.
type ReminderConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a cron spec, e.g. "0 * * * *" for hourly.
	Schedule string `json:"schedule,omitempty"`
}

// Load reads, decodes, overlays environment secrets, and validates the
// config at path. It is called exactly once at startup.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse strictly decodes config bytes (YAML or JSON, by extension).
func Parse(path string, b []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" && strings.TrimSpace(cfg.Telegram.Token) == "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && strings.TrimSpace(cfg.Translate.APIKey) == "" {
		cfg.Translate.APIKey = v
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (file or BOT_TOKEN)")
	}
	if c.Telegram.SourceChannel == 0 {
		return fmt.Errorf("telegram.source_channel is required")
	}
	if c.Telegram.AdminChat == 0 {
		return fmt.Errorf("telegram.admin_chat is required")
	}
	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one route (language -> channel) is required")
	}
	for lang, ch := range c.Routes {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("routes: empty language code")
		}
		if ch == 0 {
			return fmt.Errorf("routes.%s: destination channel is required", lang)
		}
	}
	if _, err := ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 0); err != nil {
		return err
	}
	if _, err := ParseDurationOrDefault("moderation.album_debounce", c.Moderation.AlbumDebounce, 0); err != nil {
		return err
	}
	if _, err := ParseDurationOrDefault("translate.timeout", c.Translate.Timeout, 0); err != nil {
		return err
	}
	switch p := strings.TrimSpace(c.Translate.Provider); p {
	case "", "google":
	case "openai":
		if strings.TrimSpace(c.Translate.APIKey) == "" {
			return fmt.Errorf("translate.api_key is required for the openai provider (file or OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("translate.provider: unknown provider %q", p)
	}
	if c.Storage != nil {
		switch d := strings.TrimSpace(c.Storage.Driver); d {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", d)
		}
		if _, err := ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 0); err != nil {
			return err
		}
	}
	if c.Reminder != nil && c.Reminder.Enabled && strings.TrimSpace(c.Reminder.Schedule) == "" {
		return fmt.Errorf("reminder.schedule is required when reminder is enabled")
	}
	return nil
}
