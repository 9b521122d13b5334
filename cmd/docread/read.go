package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/pipeline"
)

// uploadLimit caps multipart upload memory and size (256 MiB, enough for
// hour-long media files).
const uploadLimit = 256 << 20

type server struct {
	pipe   *pipeline.Pipeline
	logger *slog.Logger
}

// DownloadRequest is the body for POST /v1/download.
type DownloadRequest struct {
	URL string `json:"url"`
	// Headers are sent verbatim in the HTTP request fetching the URL.
	Headers    map[string]string          `json:"headers,omitempty"`
	Original   bool                       `json:"original,omitempty"`
	MimeType   string                     `json:"mime_type,omitempty"`
	Doc        document.DocOptions        `json:"doc,omitempty"`
	HTML       document.HTMLOptions       `json:"html,omitempty"`
	Transcript document.TranscriptOptions `json:"transcript,omitempty"`
}

// BlobRequest is the body for POST /v1/blob. Blob is base64.
type BlobRequest struct {
	Name       string                     `json:"name"`
	MimeType   string                     `json:"mime_type,omitempty"`
	Blob       string                     `json:"blob"`
	Original   bool                       `json:"original,omitempty"`
	Doc        document.DocOptions        `json:"doc,omitempty"`
	HTML       document.HTMLOptions       `json:"html,omitempty"`
	Transcript document.TranscriptOptions `json:"transcript,omitempty"`
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	opts := document.ExtractOptions{
		Original:   req.Original,
		MimeType:   req.MimeType,
		Doc:        req.Doc,
		HTML:       req.HTML,
		Transcript: req.Transcript,
	}
	resp, err := s.pipe.Read(r.Context(), req.URL, opts, req.Headers, r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func (s *server) handleBlob(w http.ResponseWriter, r *http.Request) {
	var req BlobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Blob)
	if err != nil {
		http.Error(w, "blob is not valid base64", http.StatusBadRequest)
		return
	}

	a, err := pipeline.ArtifactFromBytes(req.Name, req.MimeType, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer a.Cleanup()

	opts := document.ExtractOptions{
		Original:   req.Original,
		MimeType:   req.MimeType,
		Doc:        req.Doc,
		HTML:       req.HTML,
		Transcript: req.Transcript,
	}
	resp, err := s.pipe.ReadArtifact(r.Context(), a, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.upload(w, r)
	if ok {
		writeJSON(w, resp)
	}
}

// upload reads the multipart file and its X- option headers and runs the
// extraction. On failure the response has already been written.
func (s *server) upload(w http.ResponseWriter, r *http.Request) (*pipeline.Response, bool) {
	if err := r.ParseMultipartForm(uploadLimit); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field required", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, uploadLimit))
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return nil, false
	}

	a, err := pipeline.ArtifactFromBytes(header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	defer a.Cleanup()

	opts := uploadOptions(r.Header)
	resp, err := s.pipe.ReadArtifact(r.Context(), a, opts)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return resp, true
}

// uploadOptions maps the X- option headers of an upload to extract options.
func uploadOptions(h http.Header) document.ExtractOptions {
	opts := document.ExtractOptions{
		Original: headerBool(h, "X-Original", false),
		MimeType: h.Get("X-Mime-Type"),
		Doc: document.DocOptions{
			Paginate:               headerBool(h, "X-Doc-Paginate", false),
			DisableImageExtraction: headerBool(h, "X-Doc-Disable-Image-Extraction", false),
			UseLLM:                 headerBool(h, "X-Doc-Use-Llm", false),
			DisableLinks:           headerBool(h, "X-Doc-Disable-Links", false),
			FilterBlankPages:       headerBool(h, "X-Doc-Filter-Blank-Pages", false),
		},
		HTML: document.HTMLOptions{
			RootSelector:    h.Get("X-Html-Root-Selector"),
			IgnoreSelectors: h.Values("X-Html-Ignore-Selector"),
		},
		Transcript: document.TranscriptOptions{
			Format: document.TranscriptFormat(h.Get("X-Transcript-Format")),
		},
	}
	dedup := headerBool(h, "X-Transcript-Deduplicate", true)
	opts.Transcript.Deduplicate = &dedup
	return opts
}

func headerBool(h http.Header, key string, fallback bool) bool {
	v := h.Get(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (s *server) handleDebugDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	opts := document.ExtractOptions{
		Original:   req.Original,
		MimeType:   req.MimeType,
		Doc:        req.Doc,
		HTML:       req.HTML,
		Transcript: req.Transcript,
	}
	resp, err := s.pipe.Read(r.Context(), req.URL, opts, req.Headers, r.Header.Get("X-Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMarkdown(w, resp)
}

func (s *server) handleDebugUpload(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.upload(w, r)
	if ok {
		writeMarkdown(w, resp)
	}
}

// writeError maps acquisition and extraction failures to their HTTP status.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var dlErr *document.DownloadError
	var exErr *document.ExtractError
	switch {
	case errors.As(err, &dlErr):
		code = dlErr.Code
	case errors.As(err, &exErr):
		code = exErr.Code
	}
	if code >= 500 {
		s.logger.ErrorContext(r.Context(), "read failed", "error", err, "path", r.URL.Path)
	} else {
		s.logger.WarnContext(r.Context(), "read rejected", "error", err, "path", r.URL.Path)
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, resp *pipeline.Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeMarkdown renders a response as a human-readable markdown report for
// the debug endpoints.
func writeMarkdown(w http.ResponseWriter, resp *pipeline.Response) {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "Mode: %s\n", resp.Mode)
	fmt.Fprintf(&b, "Name: %s\n", resp.Name)
	fmt.Fprintf(&b, "MIME-Type: %s\n", resp.Mime)
	b.WriteString("Headers:\n")
	if len(resp.Headers) == 0 {
		b.WriteString("  []\n")
	} else {
		keys := make([]string, 0, len(resp.Headers))
		for k := range resp.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, strings.Join(resp.Headers[k], ", "))
		}
	}
	b.WriteString("Blobs:\n")
	if len(resp.Blobs) == 0 {
		b.WriteString("  []\n")
	} else {
		uris := make([]string, 0, len(resp.Blobs))
		for uri := range resp.Blobs {
			uris = append(uris, uri)
		}
		sort.Strings(uris)
		for _, uri := range uris {
			fmt.Fprintf(&b, "- %s\n", uri)
		}
	}
	b.WriteString("---\n\n")
	b.WriteString(resp.Text)

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, b.String())
}
