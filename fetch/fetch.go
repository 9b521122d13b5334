// Package fetch acquires web resources. The primary path is a direct HTTP
// GET with per-domain TLS policy and a pre-download size cap; when that
// yields nothing useful for a public page, a JavaScript-rendering fallback
// takes over. Payloads stream to temp files owned by the returned Artifact.
package fetch

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/docread/document"
)

const mibAsBytes = 1 << 20

// DefaultMaxFileSize rejects oversized downloads before a byte is read,
// via Content-Length. Audio and video bypass it: the transcript engine
// chunks them instead of loading them whole.
const DefaultMaxFileSize = 100 * mibAsBytes

// TLSPolicy captures the per-domain transport exceptions some intranet
// sources need.
type TLSPolicy struct {
	// LegacyDomains negotiate with servers that still require insecure
	// renegotiation.
	LegacyDomains []string `yaml:"legacy_domains"`
	// InsecureDomains skip certificate verification.
	InsecureDomains []string `yaml:"insecure_domains"`
	// SkipVerifyAll disables verification everywhere; meant for local
	// development, never production.
	SkipVerifyAll bool `yaml:"skip_verify_all"`
}

// Fetcher downloads URLs.
type Fetcher struct {
	client                 *http.Client
	legacyClient           *http.Client
	insecureClient         *http.Client
	tlsPolicy              TLSPolicy
	renderer               Renderer
	renderDisabledDomains  []string
	renderDisabledSuffixes []string
	maxFileSize            int64
	ua                     string
	logger                 *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTLSPolicy sets the per-domain TLS exceptions.
func WithTLSPolicy(p TLSPolicy) Option {
	return func(f *Fetcher) { f.tlsPolicy = p }
}

// WithRenderer enables the JS-rendering fallback.
func WithRenderer(r Renderer) Option {
	return func(f *Fetcher) { f.renderer = r }
}

// WithRenderRules disables the rendering fallback for exact domains and
// domain suffixes (sites that block rendering proxies, or that never need
// JS).
func WithRenderRules(domains, suffixes []string) Option {
	return func(f *Fetcher) {
		f.renderDisabledDomains = domains
		f.renderDisabledSuffixes = suffixes
	}
}

// WithMaxFileSize overrides the pre-download size cap.
func WithMaxFileSize(n int64) Option {
	return func(f *Fetcher) { f.maxFileSize = n }
}

// WithClient sets a custom HTTP client for the default (verified) path.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		maxFileSize: DefaultMaxFileSize,
		ua:          "Mozilla/5.0 (compatible; docread/1.0)",
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 60 * time.Second}
	}
	f.legacyClient = &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{Renegotiation: tls.RenegotiateFreelyAsClient},
		},
	}
	f.insecureClient = &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return f
}

// Fetch downloads a URL. The direct HTTP path runs first; if it fails or
// only yields raw HTML, and the request carries no credentials or custom
// headers, the rendering fallback runs for eligible domains. A successful
// render wins over the direct result (whose temp file is then deleted);
// otherwise the earliest error surfaces.
func (f *Fetcher) Fetch(ctx context.Context, rawurl string, headers map[string]string, authorization, forceMime string) (*document.Artifact, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, document.ErrBadFilename(rawurl)
	}
	domain := u.Hostname()

	direct, firstErr := f.direct(ctx, rawurl, domain, headers, authorization, forceMime)

	if (direct == nil || direct.Mime == document.MimeHTML) &&
		authorization == "" && len(headers) == 0 && f.renderEligible(domain) {
		rendered, rerr := f.rendered(ctx, rawurl, forceMime)
		if rendered != nil {
			if direct != nil {
				direct.Cleanup()
			}
			return rendered, nil
		}
		if firstErr == nil {
			firstErr = rerr
		}
	}

	if direct != nil {
		f.logger.InfoContext(ctx, "fetched",
			"url", rawurl,
			"mime", direct.Mime,
			"filename", direct.Filename,
			"charset", direct.Charset)
		return direct, nil
	}
	return nil, firstErr
}

func (f *Fetcher) renderEligible(domain string) bool {
	if f.renderer == nil {
		return false
	}
	for _, d := range f.renderDisabledDomains {
		if domain == d {
			return false
		}
	}
	for _, s := range f.renderDisabledSuffixes {
		if strings.HasSuffix(domain, s) {
			return false
		}
	}
	return true
}

// clientFor picks the HTTP client matching the domain's TLS policy.
func (f *Fetcher) clientFor(domain string) *http.Client {
	for _, d := range f.tlsPolicy.LegacyDomains {
		if domain == d {
			return f.legacyClient
		}
	}
	if f.tlsPolicy.SkipVerifyAll {
		return f.insecureClient
	}
	for _, d := range f.tlsPolicy.InsecureDomains {
		if domain == d {
			return f.insecureClient
		}
	}
	return f.client
}

func (f *Fetcher) direct(ctx context.Context, rawurl, domain string, headers map[string]string, authorization, forceMime string) (*document.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	req.Header.Set("User-Agent", f.ua)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	// GitLab wants its token in a dedicated header.
	if authorization != "" {
		if token, ok := strings.CutPrefix(authorization, "Private-Token "); ok {
			req.Header.Set("Private-Token", token)
		} else {
			req.Header.Set("Authorization", authorization)
		}
	}

	resp, err := f.clientFor(domain).Do(req)
	if err != nil {
		return nil, document.ErrNetwork(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, document.ErrBadResponse(resp.StatusCode, "web")
	}
	return handleResponse(rawurl, resp, forceMime, f.maxFileSize)
}

func (f *Fetcher) rendered(ctx context.Context, rawurl, forceMime string) (*document.Artifact, error) {
	page, err := f.renderer.Render(ctx, rawurl)
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	if page.Status != http.StatusOK {
		return nil, document.ErrBadResponse(page.Status, "render")
	}
	return handleRenderedPage(rawurl, page, forceMime, f.maxFileSize)
}
