package transcript

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Probe returns the duration in seconds and the size in bytes of a media
// file, using ffprobe for the former.
func Probe(ctx context.Context, path string) (float64, int64, error) {
	out, err := runTool(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("transcript: parse ffprobe duration %q: %w", strings.TrimSpace(out), err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("transcript: stat %s: %w", path, err)
	}
	return secs, info.Size(), nil
}

// CutChunk extracts the audio window [start, start+window+10) seconds of a
// media file into a temp file and returns its path; the caller removes it.
// WAV input is re-encoded to a low-bitrate mono MP3 to stay under upload
// limits; anything else keeps its audio stream via stream copy.
func CutChunk(ctx context.Context, path string, startSecs, windowSecs int) (string, error) {
	var args []string
	var outPath string
	window := strconv.Itoa(windowSecs + 10)

	if filepath.Ext(path) == ".wav" {
		f, err := os.CreateTemp("", "chunk-*.mp3")
		if err != nil {
			return "", fmt.Errorf("transcript: chunk temp file: %w", err)
		}
		f.Close()
		outPath = f.Name()
		args = []string{
			"-y", "-i", path,
			"-ss", strconv.Itoa(startSecs),
			"-t", window,
			"-vn",
			"-acodec", "libmp3lame",
			"-ar", "12000",
			"-ab", "16k",
			"-ac", "1",
			"-q:a", "9",
			outPath,
		}
	} else {
		f, err := os.CreateTemp("", "chunk-*.mp4")
		if err != nil {
			return "", fmt.Errorf("transcript: chunk temp file: %w", err)
		}
		f.Close()
		outPath = f.Name()
		args = []string{
			"-y", "-i", path,
			"-ss", strconv.Itoa(startSecs),
			"-t", window,
			"-vn",
			"-acodec", "copy",
			outPath,
		}
	}

	if _, err := runTool(ctx, "ffmpeg", args...); err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}

func runTool(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("transcript: %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
