package pipeline

import (
	"context"
	"net/url"
	"strings"

	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/fetch"
)

// loginTitleMarker appears in the wiki's login page title. A fetch that
// lands there succeeded at the HTTP level but was not authorized.
const loginTitleMarker = "<title>Log In -"

// WikiDownloader fetches pages from an authenticated Confluence-style wiki.
// API paths under rest/ are left to the generic web fetcher.
type WikiDownloader struct {
	Domain  string
	Fetcher *fetch.Fetcher
}

func (d *WikiDownloader) Match(u *url.URL) bool {
	return u.Hostname() == d.Domain && !strings.HasPrefix(strings.TrimPrefix(u.Path, "/"), "rest/")
}

func (d *WikiDownloader) Download(ctx context.Context, u *url.URL, opts document.ExtractOptions, headers map[string]string, authorization string) (*document.Artifact, error) {
	if opts.Original {
		return nil, document.ErrBadResponse(400, "cannot read wiki pages in original format")
	}
	if !strings.HasPrefix(authorization, "Bearer ") {
		return nil, document.ErrUnauthorized("Bearer")
	}

	a, err := d.Fetcher.Fetch(ctx, u.String(), headers, authorization, opts.MimeType)
	if err != nil {
		return nil, err
	}
	if a.Mime == "" {
		a.Cleanup()
		return nil, document.ErrBadResponse(404, "no content-type")
	}
	if a.Mime == document.MimeHTML {
		body, err := a.Bytes()
		if err != nil {
			a.Cleanup()
			return nil, document.ErrDownloadUnexpected(err)
		}
		if strings.Contains(string(body), loginTitleMarker) {
			a.Cleanup()
			return nil, document.ErrUnauthorized("wiki")
		}
	}
	return a, nil
}
