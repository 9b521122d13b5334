package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/docread/fetch"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docread.yaml")
	data := `
addr: ":9090"
log_level: debug
tls:
  legacy_domains: ["old.example.com"]
wiki_domains: ["wiki.example.com"]
dashboard_domains: ["dash.example.com"]
root_selectors:
  docs.example.com: "#doc-body"
ocr:
  base_url: "http://ocr.internal"
  api_key: "k"
render:
  enabled: true
  disabled_domains: ["plain.example.com"]
  disabled_suffixes: [".static.example.com"]
whisper:
  api_key: "wk"
  model: "whisper-1"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if len(cfg.TLS.LegacyDomains) != 1 || cfg.TLS.LegacyDomains[0] != "old.example.com" {
		t.Errorf("LegacyDomains = %v", cfg.TLS.LegacyDomains)
	}
	if cfg.RootSelectors["docs.example.com"] != "#doc-body" {
		t.Errorf("RootSelectors = %v", cfg.RootSelectors)
	}
	if cfg.OCR.BaseURL != "http://ocr.internal" || cfg.OCR.APIKey != "k" {
		t.Errorf("OCR = %+v", cfg.OCR)
	}
	if !cfg.Render.Enabled {
		t.Error("Render.Enabled not set")
	}
	if len(cfg.Render.DisabledDomains) != 1 || cfg.Render.DisabledDomains[0] != "plain.example.com" {
		t.Errorf("Render.DisabledDomains = %v", cfg.Render.DisabledDomains)
	}
	if len(cfg.Render.DisabledSuffixes) != 1 {
		t.Errorf("Render.DisabledSuffixes = %v", cfg.Render.DisabledSuffixes)
	}
	if cfg.Whisper.APIKey != "wk" {
		t.Errorf("Whisper = %+v", cfg.Whisper)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadHallucinationsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hallucinations.yaml")
	data := `
exact: ["thanks for watching"]
substrings: ["subscribe to"]
prefixes: ["transcribed by"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := LoadHallucinationsFile(path)
	if err != nil {
		t.Fatalf("LoadHallucinationsFile: %v", err)
	}
	if len(h.Exact) != 1 || h.Exact[0] != "thanks for watching" {
		t.Errorf("Exact = %v", h.Exact)
	}
	if len(h.Substrings) != 1 || len(h.Prefixes) != 1 {
		t.Errorf("tables = %+v", h)
	}
}

type stubRenderer struct {
	hits int
}

func (r *stubRenderer) Render(ctx context.Context, rawurl string) (*fetch.RenderedPage, error) {
	r.hits++
	return nil, errors.New("render unavailable")
}

// The disabled render lists opt domains out of the fallback; everything
// else still renders.
func TestNewFetcherDisabledRenderDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>shell</html>"))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))

	renderer := &stubRenderer{}
	cfg := &Config{Render: RenderConfig{Enabled: true, DisabledDomains: []string{"127.0.0.1"}}}
	f := newFetcher(cfg, renderer, logger)

	a, err := f.Fetch(context.Background(), srv.URL+"/page", nil, "", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	a.Cleanup()
	if renderer.hits != 0 {
		t.Errorf("renderer hit %d times for a disabled domain", renderer.hits)
	}

	cfg = &Config{Render: RenderConfig{Enabled: true}}
	f = newFetcher(cfg, renderer, logger)

	a, err = f.Fetch(context.Background(), srv.URL+"/page", nil, "", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	a.Cleanup()
	if renderer.hits != 1 {
		t.Errorf("renderer hits = %d, want 1 for an unlisted domain", renderer.hits)
	}
}
