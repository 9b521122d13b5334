package document

import (
	"bytes"
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// MIME types the pipeline refers to by name.
const (
	MimePlain     = "text/plain"
	MimeMarkdown  = "text/markdown"
	MimeHTML      = "text/html"
	MimeYAML      = "text/x-yaml"
	MimeTexSource = "text/x-tex"
	MimeEprintTar = "application/x-eprint-tar"
	MimeOctet     = "application/octet-stream"
)

// MimeMode classifies a MIME type into the handling family the extractor
// chain dispatches on.
type MimeMode string

const (
	ModeDocument    MimeMode = "document"
	ModeImage       MimeMode = "image"
	ModeMarkdown    MimeMode = "markdown"
	ModeMedia       MimeMode = "media"
	ModePlain       MimeMode = "plain"
	ModeSpreadsheet MimeMode = "spreadsheet"
)

var extensionOverridesFile = map[string]string{
	".bat":  "application/bat",
	".bib":  "application/x-bibtex",
	".md":   MimeMarkdown,
	".mdx":  MimeMarkdown,
	".rs":   "text/x-rust",
	".sh":   "text/x-shellscript",
	".ts":   "text/x-typescript",
	".yaml": MimeYAML,
	".yml":  MimeYAML,
}

// Web URLs with a .php path are pages, not PHP source.
var extensionOverridesWeb = map[string]string{
	".php": MimeHTML,
}

var spreadsheetMimes = map[string]bool{
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/csv": true,
}

// Non text/* types whose payload is still readable text.
var textMimes = map[string]bool{
	"application/bat":                true,
	"application/javascript":         true,
	"application/json":               true,
	"application/ld+json":            true,
	"application/sql":                true,
	"application/wasm":               true,
	"application/x-bibtex":           true,
	"application/x-c++src":           true,
	"application/x-csrc":             true,
	"application/x-httpd-php":        true,
	"application/x-httpd-php-source": true,
	"application/x-java-class":       true,
	"application/x-perl":             true,
	"application/x-ruby":             true,
	"application/x-shellscript":      true,
	"application/x-sql":              true,
	"application/x-tex":              true,
	"application/x-yaml":             true,
	"application/xhtml+xml":          true,
	"application/xml":                true,
	"application/xslt+xml":           true,
}

// text/* types that must not be treated as plain text (LaTeX goes through
// the archive reconstruction path).
var notTextMimes = map[string]bool{
	MimeEprintTar: true,
	MimeTexSource: true,
}

// Placeholder content types servers send when they do not know better. They
// never win over an extension guess.
var uselessMimes = map[string]bool{
	"application/download":       true,
	"application/force-download": true,
	"application/gzip":           true,
	MimeOctet:                    true,
	"application/x-file-to-save": true,
	"application/x-unknown":      true,
}

// The platform mime database is consulted last; these pin stable extensions
// for the types the pipeline itself produces.
var mimeExtensionOverrides = map[string]string{
	"application/pdf": ".pdf",
	"audio/mpeg":      ".mp3",
	"audio/wav":       ".wav",
	"image/gif":       ".gif",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	MimeHTML:          ".html",
	MimeMarkdown:      ".md",
	MimePlain:         ".txt",
	"video/mp4":       ".mp4",
}

// UselessMime reports whether m is a placeholder content type that carries
// no real information about the payload.
func UselessMime(m string) bool { return uselessMimes[m] }

// Mode returns the handling family for a MIME type.
func Mode(m string) MimeMode {
	switch {
	case strings.HasPrefix(m, "image/"):
		return ModeImage
	case m == MimeMarkdown || m == "text/x-markdown":
		return ModeMarkdown
	case strings.HasPrefix(m, "audio/") || strings.HasPrefix(m, "video/"):
		return ModeMedia
	case spreadsheetMimes[m]:
		return ModeSpreadsheet
	case !notTextMimes[m] && (strings.HasPrefix(m, "text/") || textMimes[m]):
		return ModePlain
	default:
		return ModeDocument
	}
}

// GuessMime infers a MIME type from a filename or URL path. Override tables
// win over the platform mime database. Returns "" when nothing matches. Set
// web for URL paths, where .php means a rendered page.
func GuessMime(name string, web bool) string {
	if web {
		for ext, m := range extensionOverridesWeb {
			if strings.HasSuffix(name, ext) {
				return m
			}
		}
	}
	for ext, m := range extensionOverridesFile {
		if strings.HasSuffix(name, ext) {
			return m
		}
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	return ""
}

// MimeFromInfo resolves a MIME type from a response: the declared content
// type wins unless it is a useless placeholder, then the filename extension.
func MimeFromInfo(filename, contentType string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && !uselessMimes[mt] {
			return mt
		}
	}
	if filename != "" {
		return GuessMime(filename, false)
	}
	return ""
}

// SniffMime matches the leading bytes of data against known image magic
// numbers. Returns "" when no magic number matches.
func SniffMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return ""
	}
}

// ExtensionForMime returns a file extension (with leading dot) for a MIME
// type, or "" when none is known.
func ExtensionForMime(m string) string {
	if ext, ok := mimeExtensionOverrides[m]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(m)
	if err != nil || len(exts) == 0 {
		return ""
	}
	sort.Strings(exts)
	return exts[0]
}
