// Package document defines the value types shared across the acquisition and
// extraction pipeline: fetched artifacts, extraction results, fragment and
// data URIs, MIME classification, and the error taxonomy surfaced to callers.
package document

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
)

// Artifact is a fetched payload. It is either file-backed (Path set; the
// artifact owns the file and Cleanup removes it) or data-backed (payload held
// in Data; Cleanup is a no-op).
type Artifact struct {
	// URL the payload was fetched from, when applicable.
	URL string
	// Name is a display name some sources provide (a dashboard title);
	// Filename is derived from headers or the URL path.
	Name     string
	Filename string
	Mime     string
	Charset  string
	// Headers of the response that produced the payload.
	Headers http.Header
	Path    string
	Data    []byte
}

// FileArtifact returns an artifact backed by a file on disk. The artifact
// takes ownership of the file.
func FileArtifact(filename, mime, path string) *Artifact {
	return &Artifact{Filename: filename, Mime: mime, Path: path}
}

// DataArtifact returns an in-memory artifact.
func DataArtifact(name, mime string, data []byte) *Artifact {
	return &Artifact{Name: name, Mime: mime, Data: data}
}

// Label returns the best human-readable identifier for the artifact.
func (a *Artifact) Label() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Filename != "":
		return a.Filename
	default:
		return a.URL
	}
}

// InMemory reports whether the payload is held in memory rather than on disk.
func (a *Artifact) InMemory() bool { return a.Path == "" }

// Bytes returns the full payload, reading the backing file when needed.
func (a *Artifact) Bytes() ([]byte, error) {
	if a.InMemory() {
		return a.Data, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("document: read artifact %q: %w", a.Name, err)
	}
	return data, nil
}

// Open returns a reader over the payload.
func (a *Artifact) Open() (io.ReadCloser, error) {
	if a.InMemory() {
		return io.NopCloser(bytes.NewReader(a.Data)), nil
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("document: open artifact %q: %w", a.Name, err)
	}
	return f, nil
}

// Size returns the payload size in bytes.
func (a *Artifact) Size() (int64, error) {
	if a.InMemory() {
		return int64(len(a.Data)), nil
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return 0, fmt.Errorf("document: stat artifact %q: %w", a.Name, err)
	}
	return info.Size(), nil
}

// File returns a path to the payload on disk. In-memory artifacts are
// written to a temp file under dir (or the default temp dir when dir is
// empty); the returned cleanup removes that file. File-backed artifacts
// return their own path with a no-op cleanup.
func (a *Artifact) File(dir string) (string, func(), error) {
	if !a.InMemory() {
		return a.Path, func() {}, nil
	}
	ext := ExtensionForMime(a.Mime)
	f, err := os.CreateTemp(dir, "artifact-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("document: materialize artifact %q: %w", a.Name, err)
	}
	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("document: materialize artifact %q: %w", a.Name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("document: materialize artifact %q: %w", a.Name, err)
	}
	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}

// Cleanup removes the backing file, if any. Safe to call more than once.
func (a *Artifact) Cleanup() {
	if a.Path != "" {
		_ = os.Remove(a.Path)
	}
}

// Extracted is the result of an extraction: text in the declared mode plus
// the binary blobs the text references by fragment URI.
type Extracted struct {
	Name string
	// Path is a logical path some extractions synthesize (the root file of
	// an unpacked archive); it participates in response naming.
	Path  string
	Mime  string
	Mode  FragmentMode
	Text  string
	Blobs map[string]string // fragment URI -> data URI
}

var fragmentRefRe = regexp.MustCompile(`self://[A-Za-z0-9\-._~]+(?:/[A-Za-z0-9\-._]+)*`)

// MissingBlobs lists fragment URIs referenced in Text that have no entry in
// Blobs. The singleton URI counts like any other reference.
func (e *Extracted) MissingBlobs() []string {
	var missing []string
	seen := map[string]bool{}
	for _, uri := range fragmentRefRe.FindAllString(e.Text, -1) {
		uri = strings.TrimRight(uri, ".")
		if seen[uri] {
			continue
		}
		seen[uri] = true
		if _, ok := e.Blobs[uri]; !ok {
			missing = append(missing, uri)
		}
	}
	return missing
}
