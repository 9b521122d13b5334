package document

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// FragmentSingleton is the fragment URI used when an extraction produces
// exactly one blob and no path is meaningful (e.g. a standalone image).
const FragmentSingleton = "self://~"

const fragmentScheme = "self://"

// ErrBadDataURI is returned when a data URI cannot be parsed.
var ErrBadDataURI = errors.New("document: malformed data URI")

// FragmentURI builds the fragment URI for a relative path inside the
// extracted document.
func FragmentURI(path string) string {
	return fragmentScheme + path
}

// IsFragmentURI reports whether s is a fragment URI.
func IsFragmentURI(s string) bool {
	return strings.HasPrefix(s, fragmentScheme)
}

// FragmentPath returns the relative path of a fragment URI. The singleton
// URI yields an empty path.
func FragmentPath(uri string) (string, bool) {
	if !IsFragmentURI(uri) {
		return "", false
	}
	p := strings.TrimPrefix(uri, fragmentScheme)
	if p == "~" {
		return "", true
	}
	return p, true
}

// DataURI encodes binary content as "data:{mime};base64,{data}".
func DataURI(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURI splits a data URI into its MIME type and decoded payload.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	mime, b64, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	return mime, data, nil
}
