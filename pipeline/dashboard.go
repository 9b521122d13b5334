package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/hazyhaar/docread/document"
)

// viewLocatorRe recognizes dashboard view URLs, either in the path or in
// the fragment (the server UI puts the locator behind a "#").
var viewLocatorRe = regexp.MustCompile(`^/views/([A-Za-z0-9_\-]+)/([A-Za-z0-9_\-]+)(?:\?.+)?$`)

const dashboardAPIVersion = "3.21"

// DashboardDownloader captures a dashboard view as a PNG through the
// server's REST API: sign in with basic credentials, resolve the view
// locator to an id, download the view image.
type DashboardDownloader struct {
	Domain string
	Client *http.Client
	Logger *slog.Logger
}

type viewLocator struct {
	workbook string
	sheet    string
}

func parseViewLocator(domain string, u *url.URL) (viewLocator, bool) {
	if u.Hostname() != domain {
		return viewLocator{}, false
	}
	for _, candidate := range []string{u.Fragment, "/" + strings.TrimPrefix(u.Path, "/")} {
		if m := viewLocatorRe.FindStringSubmatch(candidate); m != nil {
			return viewLocator{workbook: m[1], sheet: m[2]}, true
		}
	}
	return viewLocator{}, false
}

func (d *DashboardDownloader) Match(u *url.URL) bool {
	_, ok := parseViewLocator(d.Domain, u)
	return ok
}

func (d *DashboardDownloader) Download(ctx context.Context, u *url.URL, opts document.ExtractOptions, headers map[string]string, authorization string) (*document.Artifact, error) {
	locator, ok := parseViewLocator(d.Domain, u)
	if !ok {
		return nil, document.ErrBadFilename(u.String())
	}
	if opts.Original {
		return nil, document.ErrBadResponse(400, "cannot read dashboards in original format")
	}
	username, password, ok := parseBasicCredentials(authorization)
	if !ok {
		return nil, document.ErrUnauthorized("Basic")
	}

	session, err := d.signIn(ctx, username, password)
	if err != nil {
		return nil, err
	}
	view, err := d.findView(ctx, session, locator)
	if err != nil {
		return nil, err
	}
	image, err := d.viewImage(ctx, session, view.ID)
	if err != nil {
		return nil, err
	}

	name := view.Workbook.Name + " / " + view.Name
	d.Logger.DebugContext(ctx, "dashboard view captured", "view", name, "bytes", len(image))
	a := document.DataArtifact(name, "image/png", image)
	a.URL = u.String()
	return a, nil
}

// parseBasicCredentials decodes an "Basic base64(user:pass)" header value.
func parseBasicCredentials(authorization string) (username, password string, ok bool) {
	encoded, found := strings.CutPrefix(authorization, "Basic ")
	if !found {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(decoded), ":")
	return username, password, ok
}

type dashboardSession struct {
	token  string
	siteID string
}

type dashboardView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ContentURL string `json:"contentUrl"`
	Workbook   struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"workbook"`
}

func (d *DashboardDownloader) apiURL(parts ...string) string {
	return fmt.Sprintf("https://%s/api/%s/%s", d.Domain, dashboardAPIVersion, strings.Join(parts, "/"))
}

func (d *DashboardDownloader) signIn(ctx context.Context, username, password string) (*dashboardSession, error) {
	payload := map[string]any{
		"credentials": map[string]any{
			"name":     username,
			"password": password,
			"site":     map[string]string{"contentUrl": ""},
		},
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL("auth", "signin"), bytes.NewReader(body))
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, document.ErrNetwork(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, document.ErrForbidden(fmt.Sprintf("dashboard sign in failed: %d", resp.StatusCode))
	}

	var parsed struct {
		Credentials struct {
			Token string `json:"token"`
			Site  struct {
				ID string `json:"id"`
			} `json:"site"`
		} `json:"credentials"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	return &dashboardSession{token: parsed.Credentials.Token, siteID: parsed.Credentials.Site.ID}, nil
}

// findView resolves a locator against the server's view inventory. Views
// carry a contentUrl of the form "Workbook/sheets/Sheet".
func (d *DashboardDownloader) findView(ctx context.Context, session *dashboardSession, locator viewLocator) (*dashboardView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.apiURL("sites", session.siteID, "views")+"?fields=_all_", nil)
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	req.Header.Set("X-Tableau-Auth", session.token)
	req.Header.Set("Accept", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, document.ErrNetwork(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, document.ErrBadResponse(resp.StatusCode, "dashboard view inventory")
	}

	var parsed struct {
		Views struct {
			View []dashboardView `json:"view"`
		} `json:"views"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}

	wanted := locator.workbook + "/sheets/" + locator.sheet
	for i := range parsed.Views.View {
		if strings.Contains(parsed.Views.View[i].ContentURL, wanted) {
			return &parsed.Views.View[i], nil
		}
	}
	return nil, document.ErrBadResponse(404, fmt.Sprintf("dashboard view %s/%s", locator.workbook, locator.sheet))
}

func (d *DashboardDownloader) viewImage(ctx context.Context, session *dashboardSession, viewID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.apiURL("sites", session.siteID, "views", viewID, "image"), nil)
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	req.Header.Set("X-Tableau-Auth", session.token)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, document.ErrNetwork(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, document.ErrBadResponse(resp.StatusCode, "dashboard view image")
	}
	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	return image, nil
}
