package document

// FragmentMode declares how the Text of an Extracted should be read.
type FragmentMode string

const (
	// FragmentData means Text is a data URI of the raw payload.
	FragmentData FragmentMode = "data"
	// FragmentMarkdown means Text is markdown, possibly embedding fragment URIs.
	FragmentMarkdown FragmentMode = "markdown"
	// FragmentPlain means Text is plain text.
	FragmentPlain FragmentMode = "plain"
)

// ModeForMime maps a payload MIME type to the fragment mode of its
// plain-content rendition.
func ModeForMime(m string) FragmentMode {
	switch Mode(m) {
	case ModeMarkdown:
		return FragmentMarkdown
	case ModePlain:
		return FragmentPlain
	default:
		return FragmentData
	}
}

// TranscriptFormat selects the rendition of a media transcript.
type TranscriptFormat string

const (
	TranscriptOriginal  TranscriptFormat = "original"
	TranscriptSRTDense  TranscriptFormat = "srt-dense"
	TranscriptSRTSparse TranscriptFormat = "srt-sparse"
	TranscriptText      TranscriptFormat = "text"
)

// DocOptions steer PDF / scanned-document extraction.
type DocOptions struct {
	Paginate               bool `json:"paginate,omitempty" yaml:"paginate,omitempty"`
	DisableImageExtraction bool `json:"disable_image_extraction,omitempty" yaml:"disable_image_extraction,omitempty"`
	UseLLM                 bool `json:"use_llm,omitempty" yaml:"use_llm,omitempty"`
	DisableLinks           bool `json:"disable_links,omitempty" yaml:"disable_links,omitempty"`
	FilterBlankPages       bool `json:"filter_blank_pages,omitempty" yaml:"filter_blank_pages,omitempty"`
}

// HTMLOptions steer page extraction.
type HTMLOptions struct {
	// RootSelector keeps only the elements matching this CSS selector.
	RootSelector string `json:"root_selector,omitempty" yaml:"root_selector,omitempty"`
	// IgnoreSelectors drops all elements matching any of these selectors.
	IgnoreSelectors []string `json:"ignore_selector,omitempty" yaml:"ignore_selector,omitempty"`
}

// TranscriptOptions steer media transcription.
type TranscriptOptions struct {
	// Deduplicate drops repeated segments, a common transcription
	// hallucination. Defaults to true; set to a false pointer for content
	// where repetition is expected (song lyrics).
	Deduplicate *bool            `json:"deduplicate,omitempty" yaml:"deduplicate,omitempty"`
	Format      TranscriptFormat `json:"format,omitempty" yaml:"format,omitempty"`
	Language    string           `json:"language,omitempty" yaml:"language,omitempty"`
}

// Dedup resolves the deduplication flag, defaulting to true.
func (o TranscriptOptions) Dedup() bool {
	return o.Deduplicate == nil || *o.Deduplicate
}

// ExtractOptions steer an extraction end to end.
type ExtractOptions struct {
	// Original returns the raw payload as a data fragment instead of
	// extracting text from it.
	Original bool `json:"original,omitempty" yaml:"original,omitempty"`
	// MimeType overrides the detected MIME type of the payload.
	MimeType   string            `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Doc        DocOptions        `json:"doc,omitempty" yaml:"doc,omitempty"`
	HTML       HTMLOptions       `json:"html,omitempty" yaml:"html,omitempty"`
	Transcript TranscriptOptions `json:"transcript,omitempty" yaml:"transcript,omitempty"`
}
