// Package pipeline dispatches acquisition and extraction. A URL walks an
// ordered downloader chain (domain-scoped authenticated sources first, the
// generic web fetcher last), the resulting artifact walks an ordered
// extractor chain. The first matching handler is authoritative: if it
// fails, the failure surfaces, no later handler runs.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/fetch"
	"github.com/hazyhaar/docread/transcript"
)

// Downloader turns a URL into an artifact. Match must be pure: only the
// first matching downloader performs I/O.
type Downloader interface {
	Match(u *url.URL) bool
	Download(ctx context.Context, u *url.URL, opts document.ExtractOptions, headers map[string]string, authorization string) (*document.Artifact, error)
}

// Extractor turns an artifact into text plus blobs. Match must be pure.
type Extractor interface {
	Match(a *document.Artifact, opts document.ExtractOptions) bool
	Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error)
}

// Config assembles a Pipeline.
type Config struct {
	// Fetcher is the generic web downloader. Required.
	Fetcher *fetch.Fetcher
	// WikiDomains get the authenticated wiki downloader; DashboardDomains
	// get the dashboard-view downloader.
	WikiDomains      []string `yaml:"wiki_domains"`
	DashboardDomains []string `yaml:"dashboard_domains"`
	// OCR enables the PDF extractor when set.
	OCR *OCRClient
	// Engine enables media transcription.
	Engine *transcript.Engine
	// RootSelectors maps a domain to the CSS selector of its content root,
	// used when the request does not name one. Wiki domains default to
	// "#main-content".
	RootSelectors map[string]string `yaml:"root_selectors"`
	// Client is used for dashboard API calls and inline image downloads.
	Client *http.Client
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Pipeline is the assembled downloader and extractor chains.
type Pipeline struct {
	downloaders []Downloader
	extractors  []Extractor
	logger      *slog.Logger
}

// New builds the chains in their fixed priority order.
func New(cfg Config) *Pipeline {
	cfg.defaults()

	var downloaders []Downloader
	for _, domain := range cfg.WikiDomains {
		downloaders = append(downloaders, &WikiDownloader{Domain: domain, Fetcher: cfg.Fetcher})
	}
	for _, domain := range cfg.DashboardDomains {
		downloaders = append(downloaders, &DashboardDownloader{Domain: domain, Client: cfg.Client, Logger: cfg.Logger})
	}
	downloaders = append(downloaders, &WebDownloader{Fetcher: cfg.Fetcher})

	rootSelectors := map[string]string{}
	for d, sel := range cfg.RootSelectors {
		rootSelectors[d] = sel
	}
	for _, d := range cfg.WikiDomains {
		if _, ok := rootSelectors[d]; !ok {
			rootSelectors[d] = "#main-content"
		}
	}

	extractors := []Extractor{
		&ArchiveExtractor{Logger: cfg.Logger},
		&ConversionExtractor{OCR: cfg.OCR, Logger: cfg.Logger},
		&SpreadsheetExtractor{},
		&HTMLExtractor{RootSelectors: rootSelectors, Client: cfg.Client, Logger: cfg.Logger},
		&ImageExtractor{},
		&PandocExtractor{},
		&PDFExtractor{OCR: cfg.OCR},
		&PlainTextExtractor{},
		&TranscriptExtractor{Engine: cfg.Engine},
		&FallbackExtractor{},
	}

	return &Pipeline{downloaders: downloaders, extractors: extractors, logger: cfg.Logger}
}

// Response is the assembled result of a read.
type Response struct {
	Name    string                `json:"name"`
	Mime    string                `json:"mime_type"`
	Mode    document.FragmentMode `json:"mode"`
	Headers http.Header           `json:"headers,omitempty"`
	Text    string                `json:"text"`
	Blobs   map[string]string     `json:"blobs,omitempty"`
}

// Read downloads a URL and extracts its content. The artifact's temp file
// is removed on every exit path.
func (p *Pipeline) Read(ctx context.Context, rawurl string, opts document.ExtractOptions, headers map[string]string, authorization string) (*Response, error) {
	a, err := p.Download(ctx, rawurl, opts, headers, authorization)
	if err != nil {
		return nil, err
	}
	defer a.Cleanup()
	return p.extractAndAssemble(ctx, a, opts)
}

// ReadArtifact extracts an already-acquired artifact (an upload or inline
// blob). The caller keeps ownership of the artifact's backing file.
func (p *Pipeline) ReadArtifact(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*Response, error) {
	return p.extractAndAssemble(ctx, a, opts)
}

// Download runs the downloader chain.
func (p *Pipeline) Download(ctx context.Context, rawurl string, opts document.ExtractOptions, headers map[string]string, authorization string) (*document.Artifact, error) {
	u, err := url.Parse(rawurl)
	if err != nil || u.Host == "" {
		return nil, document.ErrBadFilename(rawurl)
	}
	for _, d := range p.downloaders {
		if d.Match(u) {
			return d.Download(ctx, u, opts, headers, authorization)
		}
	}
	return nil, errors.New("pipeline: no downloader matched URL")
}

// Extract runs the extractor chain. The first match is authoritative.
func (p *Pipeline) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	if opts.MimeType != "" {
		a.Mime = opts.MimeType
	}
	for _, e := range p.extractors {
		if e.Match(a, opts) {
			return e.Extract(ctx, a, opts)
		}
	}
	return nil, errors.New("pipeline: no extractor matched artifact")
}

func (p *Pipeline) extractAndAssemble(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*Response, error) {
	extracted, err := p.Extract(ctx, a, opts)
	if err != nil {
		return nil, err
	}
	if missing := extracted.MissingBlobs(); len(missing) > 0 {
		p.logger.WarnContext(ctx, "dangling fragment references",
			"artifact", a.Label(), "fragments", missing)
	}
	return assemble(a, extracted), nil
}

// assemble merges artifact and extraction metadata into the response. The
// name falls back through extraction name, source name, extraction path,
// and filename.
func assemble(a *document.Artifact, e *document.Extracted) *Response {
	name := firstNonEmpty(e.Name, a.Name, e.Path, a.Filename, "unknown")
	mime := firstNonEmpty(e.Mime, a.Mime, document.MimePlain)
	return &Response{
		Name:    name,
		Mime:    mime,
		Mode:    e.Mode,
		Headers: a.Headers,
		Text:    strings.ReplaceAll(e.Text, "\r\n", "\n"),
		Blobs:   e.Blobs,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ArtifactFromBytes materializes an uploaded or inline payload as a
// file-backed artifact. The content type wins unless it is a useless
// placeholder, in which case the filename decides.
func ArtifactFromBytes(name, contentType string, data []byte) (*document.Artifact, error) {
	filename, ok := document.NormalizeFilename(name)
	if !ok {
		return nil, document.ErrBadFilename(name)
	}

	mimeType := contentType
	if mimeType == "" || document.UselessMime(mimeType) {
		mimeType = document.GuessMime(filename, false)
	}

	f, err := os.CreateTemp("", "upload-*"+document.FileExt(filename))
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, document.ErrDownloadUnexpected(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, document.ErrDownloadUnexpected(err)
	}

	return &document.Artifact{
		Name:     name,
		Filename: filename,
		Mime:     mimeType,
		Path:     f.Name(),
	}, nil
}
