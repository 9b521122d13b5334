package sandbox

import (
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"paper.tex", "latex"},
		{"notes.md", "markdown"},
		{"doc.docx", "docx"},
		{"book.epub", "epub"},
		{"refs.bib", "bibtex"},
		{"unknown.xyz", "markdown"},
		{"UPPER.TEX", "latex"},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSafeEnvironment(t *testing.T) {
	env := safeEnvironment()
	joined := strings.Join(env, "\n")
	for _, want := range []string{"PATH=/usr/local/bin:/usr/bin:/bin", "HOME=/tmp", "USER=nobody", "LANG=C.UTF-8"} {
		if !strings.Contains(joined, want) {
			t.Errorf("environment missing %q: %v", want, env)
		}
	}
	// Nothing from the host environment may leak through.
	if len(env) > 5 {
		t.Errorf("environment too permissive: %v", env)
	}
}

func TestStageReferenceDocPassthrough(t *testing.T) {
	// Args without a reference doc pass through untouched.
	args, err := stageReferenceDoc([]string{"--wrap=none", "--columns", "80"}, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 3 || args[0] != "--wrap=none" {
		t.Fatalf("args = %v", args)
	}
}

func TestStageReferenceDocMissingFile(t *testing.T) {
	if _, err := stageReferenceDoc([]string{"--reference-doc=/does/not/exist.docx"}, t.TempDir()); err == nil {
		t.Fatal("expected error for missing reference doc")
	}
}

func TestPandocRequiresInput(t *testing.T) {
	if _, err := Pandoc(t.Context(), Request{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
