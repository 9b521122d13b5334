package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// A one-pixel PNG; enough for magic-byte sniffing and base64 embedding.
var tinyPNG = []byte("\x89PNG\r\n\x1a\n" + "fakepixels")

func writeTree(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestReconstructLaTeXSingleRoot(t *testing.T) {
	dir := writeTree(t, map[string][]byte{
		"paper.tex": []byte("\\documentclass{article}\n\\begin{document}hi\\end{document}"),
	})
	src, ok, err := ReconstructLaTeX(dir, nil)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if src.RootName != "paper.tex" {
		t.Fatalf("root = %q", src.RootName)
	}
}

func TestReconstructLaTeXPrefersMain(t *testing.T) {
	dir := writeTree(t, map[string][]byte{
		"main.tex":     []byte("root"),
		"appendix.tex": []byte("appendix"),
	})
	src, ok, err := ReconstructLaTeX(dir, nil)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if src.RootName != "main.tex" {
		t.Fatalf("root = %q", src.RootName)
	}
}

func TestReconstructLaTeXNoRoot(t *testing.T) {
	dir := writeTree(t, map[string][]byte{
		"one.tex":    []byte("a"),
		"two.tex":    []byte("b"),
		"readme.txt": []byte("c"),
	})
	_, ok, err := ReconstructLaTeX(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("two .tex files without main should not reconstruct")
	}
}

func TestReconstructLaTeXInlinesInputs(t *testing.T) {
	dir := writeTree(t, map[string][]byte{
		"main.tex":            []byte("start \\input{sections/intro} end"),
		"sections/intro.tex":  []byte("intro \\input{detail}"),
		"sections/detail.tex": []byte("the detail"),
	})
	src, ok, err := ReconstructLaTeX(dir, nil)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	content, err := os.ReadFile(src.Path)
	if err != nil {
		t.Fatal(err)
	}
	// Nested \input directives resolve relative to their own directory.
	if !strings.Contains(string(content), "the detail") {
		t.Fatalf("nested input not inlined: %q", content)
	}
	if strings.Contains(string(content), "\\input{") {
		t.Fatalf("unresolved input remains: %q", content)
	}
}

func TestReconstructLaTeXPrunesUnreferencedFigures(t *testing.T) {
	dir := writeTree(t, map[string][]byte{
		"main.tex":           []byte("\\includegraphics{figures/used.png}"),
		"figures/used.png":   tinyPNG,
		"figures/unused.png": tinyPNG,
	})
	src, ok, err := ReconstructLaTeX(dir, nil)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if _, ok := src.Blobs["self://figures/used.png"]; !ok {
		t.Fatalf("referenced figure missing from blobs: %v", src.Blobs)
	}
	if _, ok := src.Blobs["self://figures/unused.png"]; ok {
		t.Fatal("unreferenced figure should be pruned")
	}
	content, _ := os.ReadFile(src.Path)
	if !strings.Contains(string(content), "self://figures/used.png") {
		t.Fatalf("figure reference not rewritten: %q", content)
	}
}
