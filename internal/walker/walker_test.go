package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/finsight-ai/finsight/internal/documents"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestWalkBasicTraversal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "acme_10-K_2025.txt", "ITEM 1. Business")
	writeFile(t, root, "q2/acme_10-Q.txt", "ITEM 2. Management's Discussion")
	writeFile(t, root, "notes.md", "# Notes")

	files, err := Walk(Config{RootDir: root})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files: %v", len(files), relPaths(files))
	}
	for _, f := range files {
		if f.ContentHash == "" {
			t.Errorf("%s: missing content hash", f.RelPath)
		}
		if f.Size == 0 {
			t.Errorf("%s: missing size", f.RelPath)
		}
	}
}

func TestWalkIncludeExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "filings/acme_10-K.txt", "body")
	writeFile(t, root, "filings/draft/acme_10-K.txt", "body")
	writeFile(t, root, "readme.md", "body")

	files, err := Walk(Config{
		RootDir: root,
		Include: []string{"**/*.txt"},
		Exclude: []string{"**/draft/**"},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "filings/acme_10-K.txt" {
		t.Fatalf("got %v", relPaths(files))
	}
}

func TestWalkSkipsBinaryAndOversized(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "filing.txt", "text content")
	writeFile(t, root, "filing.pdf", "%PDF\x00binary")
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'a'
	}
	if err := os.WriteFile(filepath.Join(root, "huge.txt"), big, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files, err := Walk(Config{RootDir: root, MaxFileSize: 50})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "filing.txt" {
		t.Fatalf("got %v", relPaths(files))
	}
}

func TestWalkSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "filing.txt", "body")
	writeFile(t, root, ".finsight/index/snapshot.txt", "body")
	writeFile(t, root, ".git/config.txt", "body")

	files, err := Walk(Config{RootDir: root})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "filing.txt" {
		t.Fatalf("got %v", relPaths(files))
	}
}

func TestDetectDocType(t *testing.T) {
	tests := []struct {
		filename string
		want     documents.DocType
	}{
		{"acme_10-K_2025.txt", documents.DocType10K},
		{"ACME_10K.TXT", documents.DocType10K},
		{"acme_10-Q_q2.txt", documents.DocType10Q},
		{"acme_earnings_call_q2.md", documents.DocTypeTranscript},
		{"q2-transcript.txt", documents.DocTypeTranscript},
		{"annual_letter.txt", documents.DocTypeGeneric},
	}
	for _, tt := range tests {
		if got := DetectDocType(tt.filename); got != tt.want {
			t.Errorf("DetectDocType(%q) = %s, want %s", tt.filename, got, tt.want)
		}
	}
}
