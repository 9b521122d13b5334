// Package sandbox runs external document converters in a restricted
// environment. Converter input is attacker-controlled (LaTeX in particular
// can read files and environment variables through its macro system), so
// every invocation gets a scratch directory, a minimal environment, and
// pandoc's own --sandbox mode.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrPandocNotFound is returned when the pandoc executable is not in PATH.
var ErrPandocNotFound = errors.New("sandbox: pandoc executable not found in PATH")

// Input formats by extension. Formats that can execute code or touch the
// filesystem on their own are deliberately absent.
var formatByExt = map[string]string{
	".bib":     "bibtex",
	".dbk":     "docbook",
	".docx":    "docx",
	".epub":    "epub",
	".fb2":     "fb2",
	".ipynb":   "ipynb",
	".md":      "markdown",
	".muse":    "muse",
	".odt":     "odt",
	".opml":    "opml",
	".org":     "org",
	".ris":     "ris",
	".rst":     "rst",
	".rtf":     "rtf",
	".t2t":     "t2t",
	".tex":     "latex",
	".textile": "textile",
	".tsv":     "tsv",
}

// MarkdownOutput is the pandoc output format the pipeline standardizes on:
// pipe tables and hard line breaks on, raw passthrough and span/div noise off.
const MarkdownOutput = "markdown" +
	"-header_attributes" +
	"-link_attributes" +
	"-native_divs" +
	"-native_spans" +
	"-raw_html" +
	"+hard_line_breaks" +
	"+latex_macros" +
	"+pipe_tables" +
	"-fenced_divs" +
	"-bracketed_spans"

// Request describes one pandoc invocation. Exactly one of SourceFile or
// SourceContent must be set.
type Request struct {
	SourceFile    string
	SourceContent string
	// OutputFormat defaults to MarkdownOutput.
	OutputFormat string
	// OutputFile, when set, receives the result instead of the return value.
	OutputFile string
	// InputFormat overrides extension-based detection.
	InputFormat string
	// ExtraArgs are appended to the command line. A --reference-doc path is
	// staged into the scratch directory so the sandbox can read it.
	ExtraArgs []string
	// Timeout defaults to 60s.
	Timeout time.Duration
	// NoSandbox disables pandoc's --sandbox flag, needed for formats like
	// docx that read data files. The scratch dir and environment stay.
	NoSandbox bool
}

// DetectFormat returns the pandoc input format for a file, defaulting to
// markdown.
func DetectFormat(path string) string {
	if f, ok := formatByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return "markdown"
}

// safeEnvironment is the minimal environment converters run with. The real
// environment may hold credentials that injected TeX could exfiltrate.
func safeEnvironment() []string {
	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=/tmp",
		"USER=nobody",
		"LANG=C.UTF-8",
	}
	if dataDir := os.Getenv("PANDOC_DATA_DIR"); dataDir != "" {
		env = append(env, "PANDOC_DATA_DIR="+dataDir)
	}
	return env
}

// Pandoc converts a document and returns the output (or writes it to
// req.OutputFile). The input is staged into a fresh scratch directory that
// is removed on every exit path.
func Pandoc(ctx context.Context, req Request) (string, error) {
	if req.SourceFile == "" && req.SourceContent == "" {
		return "", errors.New("sandbox: either SourceFile or SourceContent is required")
	}
	pandocPath, err := exec.LookPath("pandoc")
	if err != nil {
		return "", ErrPandocNotFound
	}

	scratch, err := os.MkdirTemp("", "pandoc-sandbox-")
	if err != nil {
		return "", fmt.Errorf("sandbox: scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	// Stage the input inside the scratch dir so pandoc never sees the
	// original path.
	var staged string
	if req.SourceContent != "" {
		staged = filepath.Join(scratch, "input.md")
		if err := os.WriteFile(staged, []byte(req.SourceContent), 0o644); err != nil {
			return "", fmt.Errorf("sandbox: stage input: %w", err)
		}
	} else {
		ext := filepath.Ext(req.SourceFile)
		if ext == "" {
			ext = ".md"
		}
		staged = filepath.Join(scratch, "input"+ext)
		if err := copyFile(req.SourceFile, staged); err != nil {
			return "", fmt.Errorf("sandbox: stage input: %w", err)
		}
	}

	inputFormat := req.InputFormat
	if inputFormat == "" {
		if req.SourceFile != "" {
			inputFormat = DetectFormat(req.SourceFile)
		} else {
			inputFormat = "markdown"
		}
	}
	// Raw HTML and TeX passthrough are injection vectors; strip them from
	// the markdown family.
	switch inputFormat {
	case "markdown", "commonmark", "gfm":
		inputFormat += "-raw_html-raw_tex"
	}

	outputFormat := req.OutputFormat
	if outputFormat == "" {
		outputFormat = MarkdownOutput
	}

	extraArgs, err := stageReferenceDoc(req.ExtraArgs, scratch)
	if err != nil {
		return "", err
	}

	var stagedOutput string
	if req.OutputFile != "" {
		stagedOutput = filepath.Join(scratch, filepath.Base(req.OutputFile))
	}

	args := []string{
		staged,
		"--to", outputFormat,
		"--from", inputFormat,
		"--no-highlight",
		"--standalone",
	}
	if !req.NoSandbox {
		args = append(args, "--sandbox")
	}
	if stagedOutput != "" {
		args = append(args, "--output", stagedOutput)
	}
	args = append(args, extraArgs...)

	timeout := req.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, pandocPath, args...)
	cmd.Env = safeEnvironment()
	cmd.Dir = scratch
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.New("sandbox: pandoc conversion timed out")
		}
		return "", fmt.Errorf("sandbox: pandoc failed: %s", strings.TrimSpace(stderr.String()))
	}

	if stagedOutput != "" {
		if err := copyFile(stagedOutput, req.OutputFile); err != nil {
			return "", fmt.Errorf("sandbox: move pandoc output: %w", err)
		}
		return "", nil
	}
	return stdout.String(), nil
}

// stageReferenceDoc copies any --reference-doc argument into the scratch
// directory and rewrites the argument to point there.
func stageReferenceDoc(extraArgs []string, scratch string) ([]string, error) {
	var out []string
	for i := 0; i < len(extraArgs); i++ {
		arg := extraArgs[i]
		switch {
		case strings.HasPrefix(arg, "--reference-doc="):
			stagedRef := filepath.Join(scratch, "reference.docx")
			if err := copyFile(strings.TrimPrefix(arg, "--reference-doc="), stagedRef); err != nil {
				return nil, fmt.Errorf("sandbox: stage reference doc: %w", err)
			}
			out = append(out, "--reference-doc="+stagedRef)
		case arg == "--reference-doc" && i+1 < len(extraArgs):
			stagedRef := filepath.Join(scratch, "reference.docx")
			if err := copyFile(extraArgs[i+1], stagedRef); err != nil {
				return nil, fmt.Errorf("sandbox: stage reference doc: %w", err)
			}
			out = append(out, "--reference-doc", stagedRef)
			i++
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
