package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRelevant(t *testing.T) {
	ignoreFinal := func(p string) bool { return strings.HasPrefix(filepath.Base(p), "FVS_") }
	tests := []struct {
		path string
		want bool
	}{
		{"/in/ELE1/scan.pdf", true},
		{"/in/ELE1/SCAN.PDF", true},
		{"/in/ELE1/notes.txt", false},
		{"/in/ELE1/.hidden.pdf", false},
		{"/in/ELE1/original_scan.pdf", false},
		{"/in/ELE1/original_scan_page_2.pdf", false},
		{"/in/ELE1/combined_FVS.pdf", false},
		{"/in/ELE1/x_searchable.pdf", false},
		{"/in/ELE1/FVS_890702241_ELE1.pdf", false},
	}
	for _, tt := range tests {
		if got := relevant(tt.path, ignoreFinal); got != tt.want {
			t.Errorf("relevant(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRootOf(t *testing.T) {
	roots := []string{"/data/a", "/data/b"}
	if got := rootOf(roots, "/data/b/ELE1/x.pdf"); got != "/data/b" {
		t.Errorf("rootOf = %q", got)
	}
	if got := rootOf(roots, "/data/ab/x.pdf"); got != "" {
		t.Errorf("rootOf sibling = %q", got)
	}
}

func TestStartWatcherEmitsRoot(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}
	folder := filepath.Join(root, "ELE46339")
	if err := os.Mkdir(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to add the new directory.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(folder, "scan.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	abs, _ := filepath.Abs(root)
	select {
	case got := <-events:
		if got != abs {
			t.Errorf("event = %q, want %q", got, abs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
	}

	cancel()
	for range events {
	}
}

func TestStartWatcherInitialScan(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true}, nil)
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no initial event")
	}
	cancel()
	for range events {
	}
}

func TestStartWatcherNoRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}, nil); err == nil {
		t.Fatal("expected error")
	}
}
