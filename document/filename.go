package document

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

const filenameSpecials = "-._"

// NormalizeFilename derives a safe ASCII filename from an arbitrary string,
// usually a title or URL component. Accented characters fold to their ASCII
// equivalent; everything outside [A-Za-z0-9-._] becomes an underscore, runs
// of separators collapse, and leading/trailing separators are trimmed.
// Returns false when nothing usable remains (e.g. a fully non-Latin title).
func NormalizeFilename(value string) (string, bool) {
	if value == "-" {
		return "-", true
	}
	if unquoted, err := url.QueryUnescape(value); err == nil {
		value = unquoted
	}
	if folded, _, err := transform.String(asciiFold, value); err == nil {
		value = folded
	}

	var b strings.Builder
	var last rune
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			last = r
		case strings.ContainsRune(filenameSpecials, r):
			if last == r {
				continue
			}
			b.WriteRune(r)
			last = r
		default:
			if last == '_' {
				continue
			}
			b.WriteRune('_')
			last = '_'
		}
	}
	normalized := strings.TrimLeft(b.String(), "-_")
	normalized = strings.TrimRight(normalized, filenameSpecials)
	if normalized == "" || normalized == "_" || normalized == "." {
		return "", false
	}
	return normalized, true
}

// FilenameFromHeaders extracts a filename from a Content-Disposition header,
// for attachment and inline dispositions only.
func FilenameFromHeaders(h http.Header) string {
	disposition := h.Get("Content-Disposition")
	if disposition == "" {
		return ""
	}
	kind, params, err := mime.ParseMediaType(disposition)
	if err != nil || (kind != "attachment" && kind != "inline") {
		return ""
	}
	if name, ok := NormalizeFilename(params["filename"]); ok {
		return name
	}
	return ""
}

// GuessFilename infers a filename from the last component of a URL path.
// When that component has no extension, the URL likely names a page or an
// API route, so an extension guessed from defaultMime is appended. Returns
// "" when the path yields nothing usable.
func GuessFilename(rawurl, defaultMime string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	p := strings.TrimSuffix(u.Path, "/")
	last := p[strings.LastIndex(p, "/")+1:]
	if last == "" {
		return ""
	}
	name, ok := NormalizeFilename(last)
	if !ok {
		return ""
	}
	if !strings.Contains(name, ".") && defaultMime != "" {
		if ext := ExtensionForMime(defaultMime); ext != "" {
			return name + ext
		}
	}
	return name
}

// FileExt returns the extension of a filename, keeping the compound
// ".tar.gz" suffix whole.
func FileExt(name string) string {
	if strings.HasSuffix(name, ".tar.gz") {
		return ".tar.gz"
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// WithExt replaces the extension of name with ext (which may be empty to
// strip it).
func WithExt(name, ext string) string {
	base := strings.TrimSuffix(name, FileExt(name))
	return base + ext
}
