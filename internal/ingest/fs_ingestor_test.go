package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "confirmation a")
	writeFile(t, filepath.Join(root, "nested", "b.TXT"), "confirmation b")
	writeFile(t, filepath.Join(root, "nested", "copy.pdf"), "confirmation a")
	writeFile(t, filepath.Join(root, "notes.md"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), "hidden")
	writeFile(t, filepath.Join(root, ".d.pdf"), "hidden file")

	ing := NewFSIngestor(nil)
	results, stats, err := ing.ScanDirectory(context.Background(), root, true)
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}
	if stats.Matched != 3 || stats.Succeeded != 3 || stats.Deduplicated != 1 || stats.Failed != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	docs := Documents(results)
	if len(docs) != 2 {
		t.Fatalf("Expected 2 unique documents, got %d", len(docs))
	}

	want := sha256.Sum256([]byte("confirmation a"))
	if !bytes.Equal(docs[0].ContentHash, want[:]) {
		t.Errorf("Unexpected hash for %s", docs[0].SourcePath)
	}
	if docs[0].Filename != "a.pdf" || docs[0].FileExt != "pdf" || docs[0].FileSize != int64(len("confirmation a")) {
		t.Errorf("Unexpected document %+v", docs[0])
	}
	if docs[1].FileExt != "txt" {
		t.Errorf("Expected txt extension, got %q", docs[1].FileExt)
	}
}

func TestScanDirectoryIncludesHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), "hidden")

	_, stats, err := NewFSIngestor(nil).ScanDirectory(context.Background(), root, false)
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}
	if stats.Matched != 1 {
		t.Errorf("Expected hidden file to match, got %+v", stats)
	}
}

func TestScanDirectoryErrors(t *testing.T) {
	if _, _, err := NewFSIngestor(nil).ScanDirectory(context.Background(), "  ", true); err == nil {
		t.Error("Expected error for empty root")
	}

	results, stats, err := NewFSIngestor(nil).ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), true)
	if err != nil {
		t.Fatalf("Expected missing root to be recorded, got %v", err)
	}
	if stats.Failed != 1 || len(results) != 1 || results[0].Err == "" {
		t.Errorf("Expected one failed result, got %+v %+v", stats, results)
	}
}

func TestDescribePathRejectsExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	writeFile(t, path, "png")
	if _, err := NewFSIngestor(nil).DescribePath(context.Background(), path); err == nil {
		t.Error("Expected unsupported extension error")
	}
}

func TestStartWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("StartWatcher() error = %v", err)
	}

	expectPath := func(want string) {
		t.Helper()
		select {
		case got := <-events:
			if got != want {
				t.Errorf("Expected %s, got %s", want, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	expectPath(filepath.Join(root, "existing.pdf"))

	writeFile(t, filepath.Join(root, "ignored.md"), "x")
	newPath := filepath.Join(root, "new.txt")
	writeFile(t, newPath, "fresh")
	expectPath(newPath)

	cancel()
	for range events {
	}
}

func TestStartWatcherNoRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Error("Expected error without roots")
	}
}
