package pipeline

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/hazyhaar/docread/archive"
	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/sandbox"
)

// ArchiveExtractor unpacks zip/tar archives and reads the LaTeX document
// inside (the arXiv source format). Unpacking, root detection, \input
// inlining, and figure extraction live in the archive package; the
// flattened root goes through sandboxed pandoc.
type ArchiveExtractor struct {
	Logger *slog.Logger
}

func (e *ArchiveExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return a.Mime == document.MimeEprintTar || archive.IsArchiveExt(document.FileExt(a.Filename))
}

func (e *ArchiveExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	src, done, err := a.File("")
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	defer done()

	ext := document.FileExt(a.Filename)
	if !archive.IsArchiveExt(ext) {
		// MIME said archive but the filename does not; default to tar.gz,
		// the eprint source format.
		ext = ".tar.gz"
	}
	basename := strings.TrimSuffix(a.Filename, ext)
	if basename == "" {
		basename = "source"
	}

	dir, err := os.MkdirTemp("", "archive-")
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	defer os.RemoveAll(dir)

	switch ext {
	case ".zip":
		err = archive.ExtractZip(src, dir)
	case ".tar":
		err = archive.ExtractTar(src, dir, false)
	case ".tar.gz", ".tgz":
		err = archive.ExtractTar(src, dir, true)
	}
	if err != nil {
		return nil, err
	}

	latex, ok, err := archive.ReconstructLaTeX(dir, e.Logger)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, document.ErrExtractFailed("archive", "unknown archive format: supports LaTeX")
	}

	markdown, err := sandbox.Pandoc(ctx, sandbox.Request{
		SourceFile:   latex.Path,
		OutputFormat: sandbox.MarkdownOutput,
		InputFormat:  "latex",
	})
	if err != nil {
		return nil, document.ErrExtractFailed("archive", err.Error())
	}

	return &document.Extracted{
		Path:  basename + ".tex",
		Mime:  document.MimeTexSource,
		Mode:  document.FragmentMarkdown,
		Text:  markdown,
		Blobs: latex.Blobs,
	}, nil
}
