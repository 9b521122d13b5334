package transcript

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber produces an SRT transcript for one media file.
type Transcriber interface {
	Transcribe(ctx context.Context, path, basename, language string) (string, error)
}

// WhisperTranscriber calls an OpenAI-compatible transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

// NewWhisperTranscriber builds a transcriber against the given API. baseURL
// may be empty for the default endpoint, model may be empty for whisper-1.
func NewWhisperTranscriber(apiKey, baseURL, model string) *WhisperTranscriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: openai.NewClientWithConfig(cfg), model: model}
}

// Transcribe uploads the file and returns the raw SRT text. The filename is
// passed as a prompt; it helps the model with names and jargon, at the cost
// of occasionally being echoed back (the hallucination filter drops those).
func (w *WhisperTranscriber) Transcribe(ctx context.Context, path, basename, language string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Prompt:   "Filename: " + basename,
		Format:   openai.AudioResponseFormatSRT,
		Language: language,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
