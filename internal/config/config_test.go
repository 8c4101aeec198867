package config

import (
	"strings"
	"testing"
)

const validYAML = `
telegram:
  token: "123:abc"
  source_channel: -1001
  admin_chat: -2002
routes:
  en: -3003
  de: -4004
moderation:
  enabled: true
  album_debounce: 2s
translate:
  provider: google
  source_lang: ru
logging:
  level: debug
  console: true
`

func TestParseValidYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Parse("config.yaml", []byte(validYAML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.SourceChannel != -1001 {
		t.Fatalf("SourceChannel = %d, want -1001", cfg.Telegram.SourceChannel)
	}
	if cfg.Routes["en"] != -3003 || cfg.Routes["de"] != -4004 {
		t.Fatalf("routes = %v", cfg.Routes)
	}
	if !cfg.Moderation.Enabled || cfg.Moderation.AlbumDebounce != "2s" {
		t.Fatalf("moderation = %+v", cfg.Moderation)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	raw := validYAML + "\nunknown_section:\n  x: 1\n"
	if _, err := Parse("config.yaml", []byte(raw)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }, want: "token"},
		{name: "missing source channel", mutate: func(c *Config) { c.Telegram.SourceChannel = 0 }, want: "source_channel"},
		{name: "missing admin chat", mutate: func(c *Config) { c.Telegram.AdminChat = 0 }, want: "admin_chat"},
		{name: "no routes", mutate: func(c *Config) { c.Routes = nil }, want: "route"},
		{name: "zero route channel", mutate: func(c *Config) { c.Routes["en"] = 0 }, want: "routes.en"},
		{name: "bad debounce", mutate: func(c *Config) { c.Moderation.AlbumDebounce = "soon" }, want: "album_debounce"},
		{name: "openai without key", mutate: func(c *Config) { c.Translate.Provider = "openai" }, want: "api_key"},
		{name: "unknown provider", mutate: func(c *Config) { c.Translate.Provider = "babelfish" }, want: "provider"},
		{name: "unknown storage driver", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }, want: "driver"},
		{
			name:   "reminder without schedule",
			mutate: func(c *Config) { c.Reminder = &ReminderConfig{Enabled: true} },
			want:   "schedule",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse("config.yaml", []byte(validYAML))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEnvFillsMissingSecrets(t *testing.T) {
	raw := strings.Replace(validYAML, `token: "123:abc"`, `token: ""`, 1)
	cfg, err := Parse("config.yaml", []byte(raw))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	t.Setenv("BOT_TOKEN", "env:token")
	applyEnv(cfg)
	if cfg.Telegram.Token != "env:token" {
		t.Fatalf("Token = %q, want env value", cfg.Telegram.Token)
	}

	// A token present in the file wins over the environment.
	cfg2, _ := Parse("config.yaml", []byte(validYAML))
	applyEnv(cfg2)
	if cfg2.Telegram.Token != "123:abc" {
		t.Fatalf("Token = %q, file value must win", cfg2.Telegram.Token)
	}
}

func TestParseJSONByExtension(t *testing.T) {
	t.Parallel()
	raw := `{"telegram":{"token":"t","source_channel":-1,"admin_chat":-2},"routes":{"en":-3}}`
	cfg, err := Parse("config.json", []byte(raw))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Routes["en"] != -3 {
		t.Fatalf("routes = %v", cfg.Routes)
	}
}
