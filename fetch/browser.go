package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserRenderer renders pages in a local headless Chrome via Rod, with
// stealth patches applied so bot walls treat it like a regular visitor. It
// is the self-hosted alternative to RenderClient.
type BrowserRenderer struct {
	mu         sync.Mutex
	browser    *rod.Browser
	lnch       *launcher.Launcher
	navTimeout time.Duration
	logger     *slog.Logger
}

// NewBrowserRenderer prepares a renderer; Chrome launches lazily on the
// first Render call.
func NewBrowserRenderer(logger *slog.Logger) *BrowserRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserRenderer{navTimeout: 30 * time.Second, logger: logger}
}

func (b *BrowserRenderer) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	b.lnch = launcher.New().Headless(true)
	wsURL, err := b.lnch.Launch()
	if err != nil {
		return nil, fmt.Errorf("fetch: launch browser: %w", err)
	}
	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("fetch: connect browser: %w", err)
	}
	b.browser = browser
	return browser, nil
}

// Render navigates a stealth tab to the URL, waits for the page to load,
// and returns the rendered document.
func (b *BrowserRenderer) Render(ctx context.Context, rawurl string) (*RenderedPage, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("fetch: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.navTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(rawurl); err != nil {
		return nil, fmt.Errorf("fetch: navigate %s: %w", rawurl, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.logger.WarnContext(ctx, "wait load timeout", "url", rawurl, "error", err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("fetch: read DOM: %w", err)
	}
	html := res.Value.Str()

	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &RenderedPage{Status: http.StatusOK, Header: header, Body: []byte(html)}, nil
}

// Close shuts the browser down.
func (b *BrowserRenderer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
}
