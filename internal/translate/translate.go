// Package translate provides the machine-translation gateway used by
// the fan-out planner: a Translator interface with an HTTP ("google")
// backend and an OpenAI chat-completion backend.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relaybot/internal/config"
)

// Translator converts text between two language codes (e.g. "ru", "en").
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, destLang string) (string, error)
}

// Func adapts a plain function to Translator (handy in tests).
type Func func(ctx context.Context, text, sourceLang, destLang string) (string, error)

func (f Func) Translate(ctx context.Context, text, sourceLang, destLang string) (string, error) {
	return f(ctx, text, sourceLang, destLang)
}

// Text translates via tr, short-circuiting empty input to "" without
// invoking the gateway.
func Text(ctx context.Context, tr Translator, text, sourceLang, destLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return tr.Translate(ctx, text, sourceLang, destLang)
}

// New builds the Translator selected by cfg.
func New(cfg config.TranslateConfig) (Translator, error) {
	timeout, err := config.ParseDurationOrDefault("translate.timeout", cfg.Timeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	switch p := strings.TrimSpace(cfg.Provider); p {
	case "", "google":
		return NewGoogle(cfg.Endpoint, timeout), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, timeout)
	default:
		return nil, fmt.Errorf("translate: unknown provider %q", p)
	}
}
