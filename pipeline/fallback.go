package pipeline

import (
	"context"

	"github.com/hazyhaar/docread/document"
)

// FallbackExtractor terminates the extractor chain: anything that reaches
// it has no supported handler.
type FallbackExtractor struct{}

func (e *FallbackExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return true
}

func (e *FallbackExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	return nil, document.ErrExtractFailed("fallback", "not supported")
}
