package archive

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hazyhaar/docread/document"
)

var inputDirectiveRe = regexp.MustCompile(`\\input\{([^}]+)\}`)

// How many levels of nested \input directives get inlined.
const inputInlineDepth = 3

// LaTeXSource is a LaTeX source tree flattened into a single root file.
type LaTeXSource struct {
	// RootName is the root .tex filename.
	RootName string
	// Path is the rewritten root file: \input directives inlined, figure
	// references pointing at fragment URIs.
	Path string
	// Blobs holds the figures the rewritten document still references,
	// fragment URI -> data URI.
	Blobs map[string]string
}

// ReconstructLaTeX locates the root .tex file of an unpacked source tree,
// inlines its \input directives, and rewrites figure references to fragment
// URIs. Returns false when the tree does not look like a LaTeX document.
//
// The root is the single top-level .tex file; with several candidates, the
// first whose name contains "main" wins.
func ReconstructLaTeX(dir string, logger *slog.Logger) (*LaTeXSource, bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rootName, ok, err := findRootTex(dir)
	if err != nil || !ok {
		return nil, false, err
	}
	rootPath := filepath.Join(dir, rootName)
	raw, err := os.ReadFile(rootPath)
	if err != nil {
		return nil, false, fmt.Errorf("archive: read %s: %w", rootName, err)
	}
	content := string(raw)

	// Decode every figure in the tree up front; unreferenced ones are
	// pruned after inlining.
	replacements := map[string]string{} // relative path -> fragment URI
	allBlobs := map[string]string{}     // fragment URI -> data URI
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		normalized, ok := normalizePath(rel)
		if !ok {
			return nil
		}

		mime := document.GuessMime(d.Name(), false)
		var dataURI string
		switch {
		case mime == "application/pdf":
			dataURI, _ = pdfFigureDataURI(p)
		case strings.HasPrefix(mime, "image/"):
			dataURI, _ = imageDataURI(p, mime)
		}
		if dataURI != "" {
			uri := document.FragmentURI(normalized)
			replacements[rel] = uri
			allBlobs[uri] = dataURI
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("archive: walk source tree: %w", err)
	}

	content = inlineInputs(dir, content, logger)

	// Keep only figures the flattened document actually references.
	blobs := map[string]string{}
	for rel, uri := range replacements {
		if strings.Contains(content, rel) {
			content = strings.ReplaceAll(content, rel, uri)
			blobs[uri] = allBlobs[uri]
		}
	}

	if err := os.WriteFile(rootPath, []byte(content), 0o644); err != nil {
		return nil, false, fmt.Errorf("archive: rewrite %s: %w", rootName, err)
	}
	return &LaTeXSource{RootName: rootName, Path: rootPath, Blobs: blobs}, true, nil
}

func findRootTex(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("archive: read dir: %w", err)
	}
	var candidates []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".tex" {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true, nil
	}
	for _, name := range candidates {
		if strings.Contains(name, "main") {
			return name, true, nil
		}
	}
	return "", false, nil
}

// inlineInputs replaces \input{...} directives with the referenced file's
// content, a fixed number of levels deep. Inputs living in a subdirectory
// get their own nested \input directives re-rooted to that subdirectory so
// the next pass resolves them.
func inlineInputs(dir, content string, logger *slog.Logger) string {
	for range inputInlineDepth {
		if !strings.Contains(content, `\input{`) {
			break
		}
		inlined := map[string]string{}
		for _, m := range inputDirectiveRe.FindAllStringSubmatch(content, -1) {
			directive, key := m[0], m[1]
			if !strings.HasSuffix(key, ".tex") {
				key += ".tex"
			}
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
			if err != nil {
				logger.Warn("LaTeX input not found", "directive", directive)
				continue
			}
			body := string(data)
			if strings.Contains(key, "/") {
				parent := key[:strings.LastIndex(key, "/")]
				body = strings.ReplaceAll(body, `\input{`, `\input{`+parent+"/")
			}
			inlined[directive] = body
		}
		for directive, body := range inlined {
			content = strings.ReplaceAll(content, directive, body)
		}
	}
	return content
}

// normalizePath normalizes each component of a slash-separated relative
// path; components that normalize to nothing sink the whole path.
func normalizePath(rel string) (string, bool) {
	parts := strings.Split(rel, "/")
	for i, part := range parts {
		normalized, ok := document.NormalizeFilename(part)
		if !ok {
			return "", false
		}
		parts[i] = normalized
	}
	return strings.Join(parts, "/"), true
}
