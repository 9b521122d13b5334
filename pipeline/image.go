package pipeline

import (
	"context"
	"io"
	"net/http"

	"github.com/hazyhaar/docread/document"
)

// ImageExtractor embeds a directly-fetched image into a one-line markdown
// document, so it travels as a fragment like any other blob.
type ImageExtractor struct{}

func (e *ImageExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return document.Mode(a.Mime) == document.ModeImage
}

func (e *ImageExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	data, err := a.Bytes()
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}

	mime := a.Mime
	if sniffed := document.SniffMime(data); sniffed != "" {
		mime = sniffed
	}
	if mime == "" || document.Mode(mime) != document.ModeImage {
		return nil, document.ErrExtractFailed("image", "cannot infer MIME type")
	}

	uri := document.FragmentSingleton
	return &document.Extracted{
		Mime:  mime,
		Mode:  document.FragmentMarkdown,
		Text:  "![](" + uri + ")",
		Blobs: map[string]string{uri: document.DataURI(mime, data)},
	}, nil
}

// downloadImageDataURI fetches an image referenced from a page and returns
// it as a data URI. Returns false when the download fails or the payload is
// not a recognizable image; the caller drops the reference.
func downloadImageDataURI(ctx context.Context, client *http.Client, rawurl string) (string, string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return "", "", false
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", "", false
	}

	mime := document.SniffMime(data)
	if mime == "" {
		return "", "", false
	}
	return document.DataURI(mime, data), mime, true
}
