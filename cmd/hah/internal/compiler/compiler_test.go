package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/recera/hah/internal/cache"
	"github.com/recera/hah/pkg/hah"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestCompiler(t *testing.T, withCache bool) *Compiler {
	t.Helper()
	opts := Options{Config: hah.Config{Newline: "\n"}}
	if withCache {
		c, err := cache.New(cache.Config{Dir: t.TempDir()})
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}
		t.Cleanup(func() { c.Close() })
		opts.Cache = c
	}
	return New(opts)
}

func TestCompileFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"views/index.hah":  "h1= $title\n!header.hah\n!missing.hah\n!$dynamic\n",
		"views/header.hah": "p Header\n",
	})
	c := newTestCompiler(t, false)

	res, err := c.CompileFile(filepath.Join(dir, "views/index.hah"))
	if err != nil {
		t.Fatalf("CompileFile() failed: %v", err)
	}

	if !strings.HasPrefix(res.Output, "<h1><?php echo $title; ?></h1>") {
		t.Errorf("unexpected output: %q", res.Output)
	}
	want := []string{filepath.Join(dir, "views/header.hah"), "missing.hah"}
	if diff := cmp.Diff(want, res.Dependencies); diff != "" {
		t.Errorf("Dependencies mismatch (-want +got):\n%s", diff)
	}
	if res.Cached {
		t.Error("result without a cache reported as cached")
	}
}

func TestCompileFile_Missing(t *testing.T) {
	c := newTestCompiler(t, false)

	_, err := c.CompileFile(filepath.Join(t.TempDir(), "nope.hah"))
	if !errors.Is(err, hah.ErrSourceNotFound) {
		t.Errorf("CompileFile() error = %v, want ErrSourceNotFound", err)
	}
}

func TestCompileFile_Error(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.hah": ":\n  p orphan\n"})
	c := newTestCompiler(t, false)

	_, err := c.CompileFile(filepath.Join(dir, "bad.hah"))
	if !errors.Is(err, hah.ErrDanglingContinuation) {
		t.Fatalf("CompileFile() error = %v, want ErrDanglingContinuation", err)
	}
	var lineErr *hah.LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 1 {
		t.Errorf("expected a line error for line 1, got %v", err)
	}
}

func TestCompileFile_Cache(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"index.hah": "p Hi\n!part.hah\n",
		"part.hah":  "p Part\n",
	})
	c := newTestCompiler(t, true)
	path := filepath.Join(dir, "index.hah")

	first, err := c.CompileFile(path)
	if err != nil {
		t.Fatalf("CompileFile() failed: %v", err)
	}
	second, err := c.CompileFile(path)
	if err != nil {
		t.Fatalf("CompileFile() failed: %v", err)
	}

	if first.Cached || !second.Cached {
		t.Errorf("Cached = %v then %v, want false then true", first.Cached, second.Cached)
	}
	if first.Output != second.Output {
		t.Error("cached output differs from compiled output")
	}
	if diff := cmp.Diff(first.Dependencies, second.Dependencies); diff != "" {
		t.Errorf("cached dependencies differ (-first +second):\n%s", diff)
	}

	// editing the source changes the key
	if err := os.WriteFile(path, []byte("p Changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	third, err := c.CompileFile(path)
	if err != nil {
		t.Fatalf("CompileFile() failed: %v", err)
	}
	if third.Cached || third.Output != "<p>Changed</p>" {
		t.Errorf("edited source served stale output: %+v", third)
	}
}

func TestProcessDirectory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.hah":       "p A\n",
		"sub/b.hah":   "p B\n",
		"sub/bad.hah": ":\n",
		"notes.txt":   "not a source",
	})
	c := New(Options{Config: hah.Config{Newline: "\n"}, OutputExt: ".html"})

	results, err := c.ProcessDirectory(dir)
	if err == nil || !strings.Contains(err.Error(), "bad.hah") {
		t.Errorf("ProcessDirectory() error = %v, want failure for bad.hah", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	for name, want := range map[string]string{"a.html": "<p>A</p>", "sub/b.html": "<p>B</p>"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("missing output %s: %v", name, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "sub/bad.html")); !os.IsNotExist(err) {
		t.Error("failed source produced output")
	}
}

func TestInvalidate(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"index.hah":  "!header.hah\n",
		"about.hah":  "!header.hah\n",
		"header.hah": "p Header\n",
	})
	c := newTestCompiler(t, true)

	for _, name := range []string{"index.hah", "about.hah", "header.hah"} {
		if _, err := c.ProcessFile(filepath.Join(dir, name)); err != nil {
			t.Fatalf("ProcessFile(%s) failed: %v", name, err)
		}
	}

	header := filepath.Join(dir, "header.hah")
	want := []string{filepath.Join(dir, "about.hah"), filepath.Join(dir, "index.hah")}
	if diff := cmp.Diff(want, c.Dependents(header)); diff != "" {
		t.Errorf("Dependents() mismatch (-want +got):\n%s", diff)
	}

	affected := c.Invalidate(header)
	if diff := cmp.Diff(append([]string{header}, want...), affected); diff != "" {
		t.Errorf("Invalidate() mismatch (-want +got):\n%s", diff)
	}

	res, err := c.CompileFile(filepath.Join(dir, "index.hah"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached {
		t.Error("dependent output survived invalidation")
	}

	c.Forget(filepath.Join(dir, "about.hah"))
	if got := c.Dependents(header); len(got) != 1 {
		t.Errorf("Dependents() after Forget = %v", got)
	}
}

func TestOutputPath(t *testing.T) {
	c := New(Options{})
	if got := c.OutputPath("views/index.hah"); got != "views/index.php" {
		t.Errorf("OutputPath() = %q", got)
	}
}
