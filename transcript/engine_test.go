package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/docread/document"
)

type fakeTranscriber struct {
	failures int
	calls    int
	srt      string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path, basename, language string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("transient failure")
	}
	return f.srt, nil
}

func TestTranscribeWithRetry(t *testing.T) {
	fake := &fakeTranscriber{failures: 2, srt: "1\n00:00:00,000 --> 00:00:01,000\nHi."}
	e := New(Config{
		Transcriber: fake,
		RetryDelays: []time.Duration{time.Millisecond, time.Millisecond},
	})
	srt, err := e.transcribeWithRetry(context.Background(), "x.mp3", "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if srt != fake.srt {
		t.Fatalf("srt = %q", srt)
	}
	if fake.calls != 3 {
		t.Fatalf("calls = %d, want 3", fake.calls)
	}
}

func TestTranscribeWithRetryGivesUp(t *testing.T) {
	fake := &fakeTranscriber{failures: 10}
	e := New(Config{
		Transcriber: fake,
		RetryDelays: []time.Duration{time.Millisecond},
	})
	if _, err := e.transcribeWithRetry(context.Background(), "x.mp3", "x", ""); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if fake.calls != 3 {
		t.Fatalf("calls = %d, want 3", fake.calls)
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		secs float64
		want int
	}{
		{599, 1},
		{600, 1},
		{601, 2},
		{1200, 2},
		{1201, 3},
	}
	for _, tt := range tests {
		if got := chunkCount(tt.secs); got != tt.want {
			t.Errorf("chunkCount(%v) = %d, want %d", tt.secs, got, tt.want)
		}
	}
}

func TestRenderDefaultsToDenseSRT(t *testing.T) {
	segments := []Segment{
		{Text: "a", Start: 0, End: 100},
		{Text: "b", Start: 300, End: 400},
	}
	// Short transcript: no merging even for dense.
	got := Render(segments, "", 550)
	if got != FormatSRT(segments) {
		t.Fatalf("short transcript should not merge, got %q", got)
	}
	// Long transcript: dense merge kicks in.
	got = Render(segments, "", 700)
	if got == FormatSRT(segments) {
		t.Fatal("long transcript should merge")
	}
	// "original" never merges.
	got = Render(segments, document.TranscriptOriginal, 700)
	if got != FormatSRT(segments) {
		t.Fatalf("original format should keep segments, got %q", got)
	}
}

func TestRenderText(t *testing.T) {
	segments := []Segment{{Text: "a"}, {Text: "b"}}
	if got := Render(segments, document.TranscriptText, 9999); got != "a\nb" {
		t.Fatalf("got %q", got)
	}
}
