package pipeline

import (
	"archive/zip"
	"context"
	"io"
	"strings"

	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/sandbox"
)

// pandocExts are the formats routed through pandoc directly.
var pandocExts = map[string]bool{
	".bib": true, ".dbk": true, ".docx": true, ".epub": true, ".fb2": true,
	".ipynb": true, ".muse": true, ".odt": true, ".opml": true, ".org": true,
	".ris": true, ".rst": true, ".rtf": true, ".t2t": true, ".tex": true,
	".textile": true, ".tsv": true,
}

// PandocExtractor converts document formats to markdown through sandboxed
// pandoc. Word documents additionally get their embedded media lifted out
// of the docx zip and rewritten to fragment URIs.
type PandocExtractor struct{}

func (e *PandocExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return pandocExts[document.FileExt(a.Filename)]
}

func (e *PandocExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	return extractPandoc(ctx, a)
}

func extractPandoc(ctx context.Context, a *document.Artifact) (*document.Extracted, error) {
	if a.Mime == "" {
		return nil, document.ErrExtractFailed("pandoc", "requires mime_type")
	}
	ext := document.FileExt(a.Filename)
	if ext == "" {
		return nil, document.ErrExtractFailed("pandoc", "requires filename extension")
	}

	src, done, err := a.File("")
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	defer done()

	// docx reads pandoc data files, which --sandbox forbids; the scratch
	// dir and restricted environment still apply.
	content, err := sandbox.Pandoc(ctx, sandbox.Request{
		SourceFile:   src,
		OutputFormat: sandbox.MarkdownOutput,
		InputFormat:  sandbox.DetectFormat("input" + ext),
		NoSandbox:    ext == ".docx",
	})
	if err != nil {
		return nil, document.ErrExtractFailed("pandoc", err.Error())
	}

	blobs := map[string]string{}
	if ext == ".docx" {
		for mediaPath, dataURI := range docxImages(src) {
			uri := document.FragmentURI(mediaPath)
			blobs[uri] = dataURI
			content = strings.ReplaceAll(content, mediaPath, uri)
		}
	}

	return &document.Extracted{
		Mime:  a.Mime,
		Mode:  document.FragmentMarkdown,
		Text:  content,
		Blobs: blobs,
	}, nil
}

// docxImages lifts images out of a docx zip, keyed by the media path pandoc
// emits (the "word/" prefix stripped). Unreadable entries are skipped.
func docxImages(path string) map[string]string {
	images := map[string]string{}
	r, err := zip.OpenReader(path)
	if err != nil {
		return images
	}
	defer r.Close()

	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, "word/media/") {
			continue
		}
		mime := document.GuessMime(f.Name, false)
		if mime == "image/emf" || !strings.HasPrefix(mime, "image/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		mediaPath := strings.TrimPrefix(f.Name, "word/")
		images[mediaPath] = document.DataURI(mime, data)
	}
	return images
}
