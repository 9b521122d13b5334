package pipeline

import (
	"context"
	"net/url"

	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/fetch"
)

// WebDownloader is the generic web fetcher. It matches every URL and
// therefore terminates the downloader chain.
type WebDownloader struct {
	Fetcher *fetch.Fetcher
}

func (d *WebDownloader) Match(u *url.URL) bool { return true }

func (d *WebDownloader) Download(ctx context.Context, u *url.URL, opts document.ExtractOptions, headers map[string]string, authorization string) (*document.Artifact, error) {
	return d.Fetcher.Fetch(ctx, u.String(), headers, authorization, opts.MimeType)
}
