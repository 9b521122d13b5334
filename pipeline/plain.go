package pipeline

import (
	"context"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/hazyhaar/docread/document"
)

// PlainTextExtractor passes readable text through, decoding legacy charsets
// when the source declared one.
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	mode := document.Mode(a.Mime)
	return a.Mime != "" && (mode == document.ModeMarkdown || mode == document.ModePlain)
}

func (e *PlainTextExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	text := decodeCharset(data, a.Charset)

	mode := document.FragmentPlain
	if document.Mode(a.Mime) == document.ModeMarkdown {
		mode = document.FragmentMarkdown
	}
	return &document.Extracted{
		Mime: a.Mime,
		Mode: mode,
		Text: text,
	}, nil
}

// decodeCharset decodes the legacy single-byte charsets still seen in the
// wild; anything else is treated as UTF-8.
func decodeCharset(data []byte, charset string) string {
	var decoder transform.Transformer
	switch charset {
	case "iso-8859-1", "latin1":
		decoder = charmap.ISO8859_1.NewDecoder()
	case "iso-8859-15":
		decoder = charmap.ISO8859_15.NewDecoder()
	case "windows-1252", "cp1252":
		decoder = charmap.Windows1252.NewDecoder()
	default:
		return string(data)
	}
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
