package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// Google calls the free web translate endpoint (the same wire contract
// the googletrans family of clients uses). No API key required.
type Google struct {
	endpoint string
	http     *http.Client
}

func NewGoogle(endpoint string, timeout time.Duration) *Google {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultGoogleEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Google{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

func (g *Google) Translate(ctx context.Context, text, sourceLang, destLang string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", sourceLang)
	q.Set("tl", destLang)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translate: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return parseGoogleBody(b)
}

// parseGoogleBody decodes the endpoint's untyped JSON shape:
// [[["<translated>","<original>",...], ...], ...] — one inner entry per
// sentence; translations are concatenated in order.
func parseGoogleBody(b []byte) (string, error) {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return "", fmt.Errorf("translate: bad response: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("translate: empty response")
	}
	segs, ok := raw[0].([]any)
	if !ok {
		return "", fmt.Errorf("translate: unexpected response shape")
	}
	var sb strings.Builder
	for _, s := range segs {
		part, ok := s.([]any)
		if !ok || len(part) == 0 {
			continue
		}
		if t, ok := part[0].(string); ok {
			sb.WriteString(t)
		}
	}
	return sb.String(), nil
}
