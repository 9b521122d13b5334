package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/docread/document"
)

func TestPDFExtract(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), []byte("pixels")...)
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/marker":
			if r.Header.Get("X-API-Key") != "key123" {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if r.FormValue("output_format") != "markdown" {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			if r.FormValue("paginate") != "true" {
				http.Error(w, "expected paginate", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"request_id": "req-1", "status": "processing"})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/marker/"):
			if polls.Add(1) < 2 {
				json.NewEncoder(w).Encode(map[string]any{"status": "processing"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status":   "complete",
				"markdown": "# Doc\n\n![fig](page1_fig1.png)\n",
				"images": map[string]string{
					"page1_fig1.png": base64.StdEncoding.EncodeToString(png),
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := document.DataArtifact("doc.pdf", "application/pdf", []byte("%PDF-1.4"))
	e := &PDFExtractor{OCR: &OCRClient{
		BaseURL:      srv.URL,
		APIKey:       "key123",
		PollInterval: 10 * time.Millisecond,
	}}

	opts := document.ExtractOptions{Doc: document.DocOptions{Paginate: true}}
	extracted, err := e.Extract(context.Background(), a, opts)
	if err != nil {
		t.Fatal(err)
	}

	uri := document.FragmentURI("page1_fig1.png")
	if !strings.Contains(extracted.Text, "]("+uri+")") {
		t.Errorf("figure reference not rewritten: %q", extracted.Text)
	}
	if strings.Contains(extracted.Text, "](page1_fig1.png)") {
		t.Errorf("original figure path survived: %q", extracted.Text)
	}
	if _, ok := extracted.Blobs[uri]; !ok {
		t.Error("figure blob missing")
	}
	if polls.Load() < 2 {
		t.Errorf("expected at least 2 polls, got %d", polls.Load())
	}
}

func TestPDFExtractServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"request_id": "req-2"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"error": "corrupt file"})
	}))
	defer srv.Close()

	a := document.DataArtifact("doc.pdf", "application/pdf", []byte("%PDF"))
	e := &PDFExtractor{OCR: &OCRClient{BaseURL: srv.URL, APIKey: "k", PollInterval: time.Millisecond}}
	_, err := e.Extract(context.Background(), a, document.ExtractOptions{})
	if err == nil || !strings.Contains(err.Error(), "corrupt file") {
		t.Fatalf("service error must surface, got %v", err)
	}
}

func TestPDFMatchRequiresClient(t *testing.T) {
	a := document.DataArtifact("doc.pdf", "application/pdf", nil)
	if (&PDFExtractor{}).Match(a, document.ExtractOptions{}) {
		t.Error("must not match without a configured service")
	}
	if !(&PDFExtractor{OCR: &OCRClient{APIKey: "k"}}).Match(a, document.ExtractOptions{}) {
		t.Error("should match with a configured service")
	}
}
