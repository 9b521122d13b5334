package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hazyhaar/docread/document"
)

func htmlExtractor() *HTMLExtractor {
	return &HTMLExtractor{
		RootSelectors: map[string]string{},
		Client:        http.DefaultClient,
	}
}

func TestHTMLExtractBasicPage(t *testing.T) {
	page := `<html><head><title>My  Page</title></head><body>
		<nav><a href="/home">Home</a></nav>
		<h1>Welcome</h1>
		<p>Some <strong>content</strong> here.</p>
	</body></html>`
	a := document.DataArtifact("page.html", document.MimeHTML, []byte(page))

	extracted, err := htmlExtractor().Extract(context.Background(), a, document.ExtractOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if extracted.Name != "My Page" {
		t.Errorf("name = %q", extracted.Name)
	}
	if extracted.Mode != document.FragmentMarkdown {
		t.Errorf("mode = %q", extracted.Mode)
	}
	if !strings.Contains(extracted.Text, "Welcome") || !strings.Contains(extracted.Text, "**content**") {
		t.Errorf("text = %q", extracted.Text)
	}
	// The nav is page chrome and must not survive whole-page extraction.
	if strings.Contains(extracted.Text, "Home") {
		t.Errorf("nav content leaked into %q", extracted.Text)
	}
	// The title element must not leak into the body.
	if strings.Contains(extracted.Text, "My Page") {
		t.Errorf("title leaked into body: %q", extracted.Text)
	}
}

func TestHTMLExtractRootSelector(t *testing.T) {
	page := `<html><body>
		<div id="sidebar"><p>sidebar junk</p></div>
		<div id="main-content"><p>the real article</p></div>
	</body></html>`
	a := document.DataArtifact("page.html", document.MimeHTML, []byte(page))

	opts := document.ExtractOptions{HTML: document.HTMLOptions{RootSelector: "#main-content"}}
	extracted, err := htmlExtractor().Extract(context.Background(), a, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(extracted.Text, "the real article") {
		t.Errorf("text = %q", extracted.Text)
	}
	if strings.Contains(extracted.Text, "sidebar junk") {
		t.Errorf("root selector must exclude siblings: %q", extracted.Text)
	}
}

func TestHTMLExtractIgnoreSelectors(t *testing.T) {
	page := `<html><body><p class="ad">buy now</p><p>keep me</p></body></html>`
	a := document.DataArtifact("page.html", document.MimeHTML, []byte(page))

	opts := document.ExtractOptions{HTML: document.HTMLOptions{IgnoreSelectors: []string{".ad"}}}
	extracted, err := htmlExtractor().Extract(context.Background(), a, opts)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(extracted.Text, "buy now") {
		t.Errorf("ignored selector survived: %q", extracted.Text)
	}
	if !strings.Contains(extracted.Text, "keep me") {
		t.Errorf("content lost: %q", extracted.Text)
	}
}

func TestHTMLExtractInlinesImages(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), []byte("pixels")...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/figure.png" {
			w.Write(png)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	page := `<html><body>
		<p>Figure:</p>
		<img src="` + srv.URL + `/figure.png" alt="fig">
		<img src="` + srv.URL + `/missing.png" alt="gone">
	</body></html>`
	a := document.DataArtifact("page.html", document.MimeHTML, []byte(page))
	a.URL = srv.URL + "/article"

	extracted, err := htmlExtractor().Extract(context.Background(), a, document.ExtractOptions{})
	if err != nil {
		t.Fatal(err)
	}
	uri := document.FragmentURI("figure.png")
	if !strings.Contains(extracted.Text, uri) {
		t.Errorf("image reference missing from %q", extracted.Text)
	}
	if _, ok := extracted.Blobs[uri]; !ok {
		t.Error("image blob missing")
	}
	if len(extracted.Blobs) != 1 {
		t.Errorf("undownloadable image should be dropped, blobs = %v", extracted.Blobs)
	}
	if missing := extracted.MissingBlobs(); len(missing) > 0 {
		t.Errorf("dangling fragments: %v", missing)
	}
}

func TestHTMLExtractPlainPassthrough(t *testing.T) {
	a := document.DataArtifact("page.html", document.MimeHTML, []byte("   \n  "))
	extracted, err := htmlExtractor().Extract(context.Background(), a, document.ExtractOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if extracted.Mode != document.FragmentPlain || extracted.Text != "" {
		t.Errorf("extracted = %+v", extracted)
	}
}

func TestHTMLMatch(t *testing.T) {
	e := htmlExtractor()
	if !e.Match(document.DataArtifact("x", document.MimeHTML, nil), document.ExtractOptions{}) {
		t.Error("text/html should match")
	}
	if !e.Match(&document.Artifact{Filename: "page.html", Mime: ""}, document.ExtractOptions{}) {
		t.Error(".html filename should match")
	}
	if e.Match(document.DataArtifact("x", document.MimeHTML, nil), document.ExtractOptions{Original: true}) {
		t.Error("original mode must not match")
	}
}

func TestNormalizeHref(t *testing.T) {
	base, _ := url.Parse("https://example.com/docs/page")
	tests := []struct {
		href string
		want string
	}{
		{"https://other.com/x", "https://other.com/x"},
		{"#section", ""},
		{"../img/pic.png", "https://example.com/img/pic.png"},
		{"/abs/path", "https://example.com/abs/path"},
	}
	for _, tt := range tests {
		if got := normalizeHref(base, tt.href); got != tt.want {
			t.Errorf("normalizeHref(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
	if got := normalizeHref(nil, "relative/link"); got != "" {
		t.Errorf("relative link without a base should drop, got %q", got)
	}
}

func TestDecodePageLatin1(t *testing.T) {
	raw := []byte("<html><body><p>caf\xe9</p></body></html>")
	a := document.DataArtifact("page.html", document.MimeHTML, raw)
	a.Charset = "iso-8859-1"

	got := decodePage(raw, a)
	if !strings.Contains(got, "café") {
		t.Errorf("decodePage did not transcode latin1: %q", got)
	}
}

func TestDecodePageUTF8Passthrough(t *testing.T) {
	raw := []byte("<html><body><p>café</p></body></html>")
	a := document.DataArtifact("page.html", document.MimeHTML, raw)

	if got := decodePage(raw, a); got != string(raw) {
		t.Errorf("decodePage altered UTF-8 input: %q", got)
	}
}
