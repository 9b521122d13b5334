package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"

	"github.com/hazyhaar/docread/document"
)

// scaffoldingTags are removed when extracting a whole page (not a selected
// root): chrome around the content, never the content itself.
var scaffoldingTags = []string{"footer", "header", "nav", "script", "style", "svg"}

// strippedSelectors drop non-content elements wherever they appear:
// navigation roles, analytics hooks, and framework hidden-element classes.
var strippedSelectors = []string{
	"[role=banner]",
	"[role=navigation]",
	"[role=search]",
	"[data-analytics]",
	"[data-tracking]",
	".d-none",
	".d-print-none",
	".ui-helper-hidden",
	".ui-hidden",
	".rs_do_not_process",
	".rs_skip_always",
	".rs_skip",
}

// htmlPolicy sanitizes the trimmed page before markdown conversion. The
// self scheme carries fragment references and must survive.
var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("http", "https", "self")
	return p
}()

// HTMLExtractor turns a web page into markdown: pick the content root,
// strip scaffolding, normalize links, inline images as fragments, sanitize,
// convert.
type HTMLExtractor struct {
	// RootSelectors maps a domain to its default content-root selector.
	RootSelectors map[string]string
	Client        *http.Client
	Logger        *slog.Logger
}

func (e *HTMLExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	if opts.Original {
		return false
	}
	return a.Mime == document.MimeHTML || document.FileExt(a.Filename) == ".html"
}

func (e *HTMLExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	raw, err := a.Bytes()
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	pageHTML := decodePage(raw, a)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, document.ErrExtractFailed("html", err.Error())
	}

	// Not actually a page (probably code or markdown served as text/html):
	// pass the text through untouched.
	if doc.Find("body").Children().Length() == 0 && doc.Find("head").Children().Length() == 0 {
		mime := a.Mime
		if mime == "" {
			mime = document.MimePlain
		}
		return &document.Extracted{
			Mime: mime,
			Mode: document.FragmentPlain,
			Text: strings.TrimSpace(pageHTML),
		}, nil
	}

	baseURL := e.resolveBase(a, doc)
	title := extractTitle(doc)

	root := doc.Selection
	selector := e.rootSelector(a, opts)
	if selector != "" {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			root = sel
		}
	} else {
		// Whole-page extraction drops the page chrome.
		for _, tag := range scaffoldingTags {
			root.Find(tag).Remove()
		}
	}
	for _, sel := range strippedSelectors {
		root.Find(sel).Remove()
	}
	for _, sel := range opts.HTML.IgnoreSelectors {
		root.Find(sel).Remove()
	}

	// Links and headings with no text contribute nothing to markdown.
	root.Find("a, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) == "" {
			s.Remove()
		}
	})

	// The link text provides enough context; the title attribute is noise.
	root.Find("a").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("title")
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if normalized := normalizeHref(baseURL, href); normalized != "" {
			s.SetAttr("href", normalized)
		} else {
			s.RemoveAttr("href")
		}
	})

	blobs := map[string]string{}
	root.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if ok {
			if normalized := normalizeHref(baseURL, src); normalized != "" {
				if dataURI, mime, ok := downloadImageDataURI(ctx, e.Client, normalized); ok {
					if name := imageFragmentName(normalized, mime); name != "" {
						uri := document.FragmentURI(name)
						s.SetAttr("src", uri)
						blobs[uri] = dataURI
						return
					}
				}
			}
		}
		// Images that cannot be downloaded are just discarded.
		s.Remove()
	})

	// Mermaid sources render client-side; fence them so they survive as code.
	root.Find("div.mermaid").Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("```mermaid\n")
		s.AppendHtml("\n```\n\n")
	})

	rootHTML, err := goquery.OuterHtml(root)
	if err != nil {
		return nil, document.ErrExtractFailed("html", err.Error())
	}
	rootHTML = htmlPolicy.Sanitize(rootHTML)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	content, err := conv.ConvertString(rootHTML)
	if err != nil {
		return nil, document.ErrExtractFailed("html", "cannot translate HTML to Markdown: "+err.Error())
	}

	return &document.Extracted{
		Name:  title,
		Mime:  document.MimeHTML,
		Mode:  document.FragmentMarkdown,
		Text:  content,
		Blobs: blobs,
	}, nil
}

// decodePage converts a page to UTF-8 using the response charset, the meta
// tags, or the BOM. Undecodable input passes through as-is.
func decodePage(raw []byte, a *document.Artifact) string {
	// Without a declared charset the HTML default is windows-1252, which
	// would mangle undeclared UTF-8. Valid UTF-8 wins.
	if a.Charset == "" && utf8.Valid(raw) {
		return string(raw)
	}
	contentType := a.Mime
	if a.Charset != "" {
		contentType += "; charset=" + a.Charset
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func (e *HTMLExtractor) rootSelector(a *document.Artifact, opts document.ExtractOptions) string {
	if opts.HTML.RootSelector != "" {
		return opts.HTML.RootSelector
	}
	if a.URL != "" {
		if u, err := url.Parse(a.URL); err == nil {
			if sel, ok := e.RootSelectors[u.Hostname()]; ok {
				return sel
			}
		}
	}
	return ""
}

// resolveBase returns the URL hrefs resolve against: a <base> tag when
// present, the page URL otherwise.
func (e *HTMLExtractor) resolveBase(a *document.Artifact, doc *goquery.Document) *url.URL {
	var baseURL *url.URL
	if a.URL != "" {
		baseURL, _ = url.Parse(a.URL)
	}
	if href, ok := doc.Find("base").First().Attr("href"); ok && href != "" {
		if u, err := url.Parse(href); err == nil {
			if u.IsAbs() {
				return u
			}
			if baseURL != nil {
				return baseURL.ResolveReference(u)
			}
		}
	}
	return baseURL
}

// extractTitle returns the first <title> text and removes title elements so
// they do not leak into the body.
func extractTitle(doc *goquery.Document) string {
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	doc.Find("title").Remove()
	return title
}

// normalizeHref resolves a link against the base URL. Full https URLs pass
// through, in-page anchors and unresolvable links are dropped.
func normalizeHref(baseURL *url.URL, href string) string {
	switch {
	case strings.HasPrefix(href, "https://"):
		if u, err := url.Parse(href); err == nil {
			return u.String()
		}
		return ""
	case strings.HasPrefix(href, "#"):
		return ""
	case baseURL != nil:
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return baseURL.ResolveReference(u).String()
	default:
		return ""
	}
}

// imageFragmentName derives the fragment filename for an inlined image.
func imageFragmentName(rawurl, mime string) string {
	guessed := document.GuessFilename(rawurl, mime)
	name, ok := document.NormalizeFilename(guessed)
	if !ok {
		return ""
	}
	return name
}
