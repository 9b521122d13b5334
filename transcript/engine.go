package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/docread/document"
)

const (
	// Files smaller and shorter than these go to the API in one piece.
	chunkMaxSizeBytes    = 25 * 1000 * 1000
	chunkMaxDurationSecs = 600
)

// Config controls the transcription engine.
type Config struct {
	Transcriber Transcriber
	// Hallucinations tables; nil uses the built-in defaults.
	Hallucinations *Hallucinations
	// MaxParallel bounds concurrent chunk jobs. Defaults to 6, enough for
	// an hour of media in one wave without exhausting memory.
	MaxParallel int
	// MaxAttempts per chunk transcription, RetryDelays between them.
	MaxAttempts int
	RetryDelays []time.Duration
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Hallucinations == nil {
		h := DefaultHallucinations()
		c.Hallucinations = &h
	}
	if c.MaxParallel == 0 {
		c.MaxParallel = 6
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelays == nil {
		c.RetryDelays = []time.Duration{
			2 * time.Second, 10 * time.Second, 30 * time.Second,
			60 * time.Second, 120 * time.Second, 240 * time.Second,
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine transcribes media files.
type Engine struct {
	cfg Config
}

// New returns an engine; cfg.Transcriber is required.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg}
}

// Extract transcribes the media file at path and renders it according to
// opts. basename (the filename without extension) seeds the transcription
// prompt and the filename-echo hallucination filter.
func (e *Engine) Extract(ctx context.Context, path, basename string, opts document.TranscriptOptions) (string, error) {
	if basename == "" {
		basename = "transcript"
	}
	segments, totalSecs, err := e.transcribeAll(ctx, path, basename, opts.Language)
	if err != nil {
		return "", err
	}
	segments = e.cfg.Hallucinations.Filter(segments, basename, opts.Dedup())
	return Render(segments, opts.Format, totalSecs), nil
}

// Render applies the requested transcript format. Transcripts over ten
// minutes are merged into five-minute buckets for the dense and sparse SRT
// formats; "original" and short transcripts keep every segment.
func Render(segments []Segment, format document.TranscriptFormat, totalSecs float64) string {
	if format == "" {
		format = document.TranscriptSRTDense
	}
	if format == document.TranscriptText {
		return FormatText(segments)
	}

	merged := segments
	if totalSecs > mergeThresholdSecs {
		switch format {
		case document.TranscriptSRTDense:
			merged = MergeDense(segments, mergeTargetSecs)
		case document.TranscriptSRTSparse:
			merged = MergeSparse(segments, mergeTargetSecs)
		}
	}
	return FormatSRT(merged)
}

func chunkCount(totalSecs float64) int {
	return int(math.Ceil(totalSecs / chunkMaxDurationSecs))
}

func (e *Engine) transcribeAll(ctx context.Context, path, basename, language string) ([]Segment, float64, error) {
	totalSecs, sizeBytes, err := Probe(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	if sizeBytes < chunkMaxSizeBytes && totalSecs < chunkMaxDurationSecs {
		srt, err := e.transcribeWithRetry(ctx, path, basename, language)
		if err != nil {
			return nil, 0, err
		}
		return ParseSRT(srt), totalSecs, nil
	}

	numChunks := chunkCount(totalSecs)
	e.cfg.Logger.InfoContext(ctx, "transcribing in chunks",
		"path", path, "duration_secs", totalSecs, "chunks", numChunks)

	// One failed chunk aborts the whole job; errgroup cancels the others.
	results := make([][]Segment, numChunks)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)
	for i := 0; i < numChunks; i++ {
		g.Go(func() error {
			startSecs := i * chunkMaxDurationSecs
			chunkPath, err := CutChunk(gctx, path, startSecs, chunkMaxDurationSecs)
			if err != nil {
				return err
			}
			defer os.Remove(chunkPath)

			srt, err := e.transcribeWithRetry(gctx, chunkPath, basename, language)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			segments := ParseSRT(srt)
			for j, s := range segments {
				segments[j] = s.Shift(float64(startSecs))
			}
			results[i] = segments
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	// Stitch in chunk order.
	var all []Segment
	for _, segments := range results {
		all = append(all, segments...)
	}
	return all, totalSecs, nil
}

func (e *Engine) transcribeWithRetry(ctx context.Context, path, basename, language string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		srt, err := e.cfg.Transcriber.Transcribe(ctx, path, basename, language)
		if err == nil {
			return srt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
		if attempt < e.cfg.MaxAttempts-1 {
			wait := e.cfg.RetryDelays[min(attempt, len(e.cfg.RetryDelays)-1)]
			e.cfg.Logger.WarnContext(ctx, "retrying transcription",
				"path", path,
				"attempt", attempt+1,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
			select {
			case <-ctx.Done():
				return "", lastErr
			case <-time.After(wait):
			}
		}
	}
	return "", lastErr
}
