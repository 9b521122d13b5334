// Package transcript turns audio and video files into timestamped text. It
// probes media with ffprobe, cuts long recordings into chunks with ffmpeg,
// transcribes chunks in parallel, filters known transcription hallucinations,
// and renders the result as SRT or plain text.
package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Segment is one timed block of transcript text.
type Segment struct {
	Text  string
	Start float64 // seconds
	End   float64 // seconds
}

// Shift returns the segment moved by secs.
func (s Segment) Shift(secs float64) Segment {
	return Segment{Text: s.Text, Start: s.Start + secs, End: s.End + secs}
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// FormatSRT renders segments in SubRip format, 1-indexed, blocks separated
// by a blank line.
func FormatSRT(segments []Segment) string {
	blocks := make([]string, len(segments))
	for i, s := range segments {
		blocks[i] = fmt.Sprintf("%d\n%s --> %s\n%s",
			i+1, formatSRTTime(s.Start), formatSRTTime(s.End), s.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// FormatText renders segments as one line of text each, without timestamps.
func FormatText(segments []Segment) string {
	lines := make([]string, len(segments))
	for i, s := range segments {
		lines[i] = s.Text
	}
	return strings.Join(lines, "\n")
}

// ParseSRT parses SubRip text into segments. Blocks that do not have exactly
// index, timestamps, and one text line are skipped; transcription services
// emit empty blocks on silence.
func ParseSRT(srt string) []Segment {
	srt = strings.ReplaceAll(srt, "\r\n", "\n")
	var segments []Segment
	for _, block := range strings.Split(srt, "\n\n") {
		parts := strings.Split(strings.TrimSpace(block), "\n")
		if len(parts) != 3 {
			continue
		}
		start, end, ok := strings.Cut(parts[1], " --> ")
		if !ok {
			continue
		}
		startSecs, err1 := parseSRTTime(start)
		endSecs, err2 := parseSRTTime(end)
		if err1 != nil || err2 != nil {
			continue
		}
		segments = append(segments, Segment{Text: parts[2], Start: startSecs, End: endSecs})
	}
	return segments
}

func parseSRTTime(s string) (float64, error) {
	var h, m, sec, ms int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d:%d,%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("transcript: bad SRT timestamp %q: %w", s, err)
	}
	return float64(h*3600+m*60+sec) + float64(ms)/1000, nil
}

func formatSRTTime(secs float64) string {
	d := time.Duration(secs * float64(time.Second)).Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
