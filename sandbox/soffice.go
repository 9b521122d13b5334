package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Soffice converts a document with headless LibreOffice and returns the
// path of the converted file. The source is staged into outDir first;
// LibreOffice refuses to convert files that do not sit next to the output.
func Soffice(ctx context.Context, src, targetFormat, targetExt, outDir string) (string, error) {
	staged := filepath.Join(outDir, filepath.Base(src))
	if staged != src {
		if err := copyFile(src, staged); err != nil {
			return "", fmt.Errorf("sandbox: stage soffice input: %w", err)
		}
	}

	out, err := exec.CommandContext(ctx, "soffice",
		"--headless",
		"--convert-to", targetFormat,
		"--outdir", outDir,
		staged,
	).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("sandbox: soffice: %w: %s", err, strings.TrimSpace(string(out)))
	}
	// soffice reports some failures on stdout with a zero exit code.
	if strings.Contains(string(out), "Error:") {
		return "", fmt.Errorf("sandbox: soffice conversion failed: %s",
			strings.ReplaceAll(strings.TrimSpace(string(out)), "\n", " "))
	}

	converted := strings.TrimSuffix(staged, filepath.Ext(staged)) + targetExt
	return converted, nil
}
