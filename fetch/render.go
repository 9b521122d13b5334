package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RenderedPage is the upstream response as seen by a JS-rendering backend.
type RenderedPage struct {
	Status int
	Header http.Header
	Body   []byte
}

// Renderer fetches a URL through a JavaScript-executing browser, local or
// remote.
type Renderer interface {
	Render(ctx context.Context, rawurl string) (*RenderedPage, error)
}

// RenderClient talks to a remote rendering service over its JSON API. The
// service runs the page in a real browser with anti-bot evasion and returns
// the upstream response verbatim.
type RenderClient struct {
	baseURL string
	apiKey  string
	country string
	client  *http.Client
	logger  *slog.Logger
}

// NewRenderClient builds a rendering-service client. country selects the
// egress location ("us" when empty).
func NewRenderClient(baseURL, apiKey, country string, logger *slog.Logger) *RenderClient {
	if country == "" {
		country = "us"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		country: country,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

type renderRequest struct {
	URL      string `json:"url"`
	RenderJS bool   `json:"render_js"`
	AntiBot  bool   `json:"anti_bot"`
	Country  string `json:"country"`
}

type renderResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	BodyBase64 string            `json:"body_base64"`
}

// Render submits the URL and decodes the upstream response.
func (c *RenderClient) Render(ctx context.Context, rawurl string) (*RenderedPage, error) {
	payload, err := json.Marshal(renderRequest{
		URL:      rawurl,
		RenderJS: true,
		AntiBot:  true,
		Country:  c.country,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fetch: render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: render call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch: render service status %d: %s", resp.StatusCode, body)
	}

	var rr renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("fetch: decode render response: %w", err)
	}
	body, err := base64.StdEncoding.DecodeString(rr.BodyBase64)
	if err != nil {
		return nil, fmt.Errorf("fetch: decode render body: %w", err)
	}

	header := http.Header{}
	for k, v := range rr.Headers {
		header.Set(k, v)
	}
	c.logger.DebugContext(ctx, "rendered page",
		"url", rawurl,
		"status", rr.StatusCode,
		"size", len(body),
		"elapsed_ms", time.Since(start).Milliseconds())
	return &RenderedPage{Status: rr.StatusCode, Header: header, Body: body}, nil
}
