package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/docread/document"
)

// OCRClient talks to the OCR/markdown conversion service: upload a PDF,
// get a job id, poll until the markdown (plus extracted figures) is ready.
type OCRClient struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// Langs hints the OCR languages, comma-separated.
	Langs        string `yaml:"langs"`
	Client       *http.Client
	PollInterval time.Duration
}

func (c *OCRClient) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return 2 * time.Second
}

func (c *OCRClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// OCRResult is a conversion job response.
type OCRResult struct {
	RequestID string            `json:"request_id"`
	Status    string            `json:"status"`
	Error     string            `json:"error"`
	Markdown  string            `json:"markdown"`
	Images    map[string]string `json:"images"`
}

// Convert uploads the PDF at path and blocks until the service finishes.
func (c *OCRClient) Convert(ctx context.Context, path string, opts document.DocOptions) (*OCRResult, error) {
	requestID, err := c.submit(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()
	for {
		result, err := c.poll(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if result.Error != "" {
			return nil, fmt.Errorf("conversion service: %s", result.Error)
		}
		if result.Status == "complete" {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *OCRClient) submit(ctx context.Context, path string, opts document.DocOptions) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "document.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}

	langs := c.Langs
	if langs == "" {
		langs = "en,fr"
	}
	fields := map[string]string{
		"langs":         langs,
		"output_format": "markdown",
	}
	if opts.Paginate {
		fields["paginate"] = "true"
	}
	if opts.DisableImageExtraction {
		fields["disable_image_extraction"] = "true"
	}
	if opts.UseLLM {
		fields["use_llm"] = "true"
	}
	additional := map[string]bool{}
	if opts.DisableLinks {
		additional["disable_links"] = true
	}
	if opts.FilterBlankPages {
		additional["filter_blank_pages"] = true
	}
	if len(additional) > 0 {
		encoded, _ := json.Marshal(additional)
		fields["additional_config"] = string(encoded)
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return "", err
		}
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/marker", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("conversion service: submit status %d", resp.StatusCode)
	}

	var parsed OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.RequestID == "" {
		return "", fmt.Errorf("conversion service: no request id")
	}
	return parsed.RequestID, nil
}

func (c *OCRClient) poll(ctx context.Context, requestID string) (*OCRResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/marker/"+requestID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("conversion service: poll status %d", resp.StatusCode)
	}

	var parsed OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// PDFExtractor sends PDFs through the OCR service and rewrites the figure
// references it returns to fragment URIs.
type PDFExtractor struct {
	OCR *OCRClient
}

func (e *PDFExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return e.OCR != nil && e.OCR.APIKey != "" && a.Mime == "application/pdf"
}

func (e *PDFExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	src, done, err := a.File("")
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	defer done()

	result, err := e.OCR.Convert(ctx, src, opts.Doc)
	if err != nil {
		return nil, document.ErrExtractFailed("pdf", err.Error())
	}

	markdown := result.Markdown
	blobs := map[string]string{}
	for filename, encoded := range result.Images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		mime := document.SniffMime(data)
		if mime == "" {
			continue
		}
		name, ok := document.NormalizeFilename(filename)
		if !ok {
			continue
		}
		uri := document.FragmentURI(name)
		blobs[uri] = document.DataURI(mime, data)
		markdown = strings.ReplaceAll(markdown, "]("+filename+")", "]("+uri+")")
	}

	return &document.Extracted{
		Mime:  "application/pdf",
		Mode:  document.FragmentMarkdown,
		Text:  markdown,
		Blobs: blobs,
	}, nil
}
