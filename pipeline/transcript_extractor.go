package pipeline

import (
	"context"
	"strings"

	"github.com/hazyhaar/docread/document"
	"github.com/hazyhaar/docread/transcript"
)

// TranscriptExtractor routes audio and video to the transcription engine.
type TranscriptExtractor struct {
	Engine *transcript.Engine
}

func (e *TranscriptExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return document.Mode(a.Mime) == document.ModeMedia
}

func (e *TranscriptExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	if document.Mode(a.Mime) != document.ModeMedia {
		return nil, document.ErrExpectedTranscript(a.Mime)
	}
	if e.Engine == nil {
		return nil, document.ErrExtractFailed("transcript", "no transcriber configured")
	}

	src, done, err := a.File("")
	if err != nil {
		return nil, document.ErrExtractUnexpected(err)
	}
	defer done()

	basename := strings.TrimSuffix(a.Filename, document.FileExt(a.Filename))
	text, err := e.Engine.Extract(ctx, src, basename, opts.Transcript)
	if err != nil {
		return nil, err
	}

	return &document.Extracted{
		Mime: a.Mime,
		Mode: document.FragmentMarkdown,
		Text: text,
	}, nil
}
