package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/sandbox"
)

const (
	mimeMSWord = "application/msword"
	mimePPTX   = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeDocx   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ConversionExtractor handles office formats neither pandoc nor the OCR
// service accept directly. Legacy .doc goes through LibreOffice to docx and
// then pandoc; presentations go through LibreOffice to PDF and then the
// OCR service with pagination forced, one page per slide.
type ConversionExtractor struct {
	OCR    *OCRClient
	Logger *slog.Logger
}

func (e *ConversionExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return a.Mime == mimeMSWord || a.Mime == mimePPTX
}

func (e *ConversionExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	src, done, err := a.File("")
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	defer done()

	dir, err := os.MkdirTemp("", "conversion-")
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	defer os.RemoveAll(dir)

	var targetFormat, targetExt string
	switch a.Mime {
	case mimeMSWord:
		targetFormat, targetExt = "docx:MS Word 2007 XML", ".docx"
	case mimePPTX:
		targetFormat, targetExt = "pdf:impress_pdf_Export", ".pdf"
	}

	converted, err := sandbox.Soffice(ctx, src, targetFormat, targetExt, dir)
	if err != nil {
		return nil, document.ErrExtractFailed("conversion", err.Error())
	}

	var extracted *document.Extracted
	switch a.Mime {
	case mimeMSWord:
		docx := document.FileArtifact(filepath.Base(converted), mimeDocx, converted)
		extracted, err = extractPandoc(ctx, docx)
	case mimePPTX:
		if e.OCR == nil {
			return nil, document.ErrExtractFailed("conversion", "no OCR service configured")
		}
		pdf := document.FileArtifact(filepath.Base(converted), "application/pdf", converted)
		slideOpts := opts
		slideOpts.Doc.Paginate = true
		extracted, err = (&PDFExtractor{OCR: e.OCR}).Extract(ctx, pdf, slideOpts)
	}
	if err != nil {
		return nil, err
	}

	// Keep the source artifact's MIME type so the response reflects what
	// the caller submitted, not the intermediate format.
	return &document.Extracted{
		Name:  extracted.Name,
		Mime:  a.Mime,
		Mode:  extracted.Mode,
		Text:  extracted.Text,
		Blobs: extracted.Blobs,
	}, nil
}
