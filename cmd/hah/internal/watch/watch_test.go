package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
)

func TestCoalesce(t *testing.T) {
	events := []fsnotify.Event{
		{Name: "a.hah", Op: fsnotify.Write},
		{Name: "b.hah", Op: fsnotify.Remove},
		{Name: "./a.hah", Op: fsnotify.Write},
		{Name: "c.hah", Op: fsnotify.Remove},
		{Name: "c.hah", Op: fsnotify.Create},
	}

	want := []Change{
		{Path: "a.hah", Op: fsnotify.Write},
		{Path: "b.hah", Op: fsnotify.Remove},
		{Path: "c.hah", Op: fsnotify.Create},
	}
	if diff := cmp.Diff(want, coalesce(events)); diff != "" {
		t.Errorf("coalesce() mismatch (-want +got):\n%s", diff)
	}

	if !want[1].Removed() || want[2].Removed() {
		t.Error("Removed() does not reflect the final state")
	}
}

func TestExtension(t *testing.T) {
	filter := Extension(".hah", ".php")
	for path, want := range map[string]bool{
		"views/a.hah": true,
		"A.HAH":       true,
		"x.php":       true,
		"style.css":   false,
		"hah":         false,
	} {
		if got := filter(path); got != want {
			t.Errorf("filter(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".hidden"), 0755); err != nil {
		t.Fatal(err)
	}

	w, err := New(dir, Options{Debounce: 20 * time.Millisecond, Filter: Extension(".hah")})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(c []Change) { batches <- c })
	}()

	path := filepath.Join(dir, "page.hah")
	os.WriteFile(path, []byte("p one\n"), 0644)
	os.WriteFile(path, []byte("p two\n"), 0644)
	os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644)

	select {
	case batch := <-batches:
		if len(batch) != 1 || batch[0].Path != path {
			t.Errorf("unexpected batch: %+v", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
