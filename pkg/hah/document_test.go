package hah

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOpen_Missing(t *testing.T) {
	cfg := testConfig()

	doc, err := Open("nope.hah", cfg)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Open() error = %v, want ErrSourceNotFound", err)
	}
	if doc != nil {
		t.Errorf("Open() returned a document for a missing source")
	}
}

func TestOpen_DirLoader(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "index.hah")
	if err := os.WriteFile(path, []byte("p Hello\n"), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	doc, err := Open(path, Config{Newline: "\n"})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if doc.Name() != path {
		t.Errorf("Name() = %q, want %q", doc.Name(), path)
	}

	out, err := doc.Render()
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if out != "<p>Hello</p>" {
		t.Errorf("Render() = %q", out)
	}

	if _, err := Open(filepath.Join(tmpDir, "missing.hah"), Config{}); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("Open() error = %v, want ErrSourceNotFound", err)
	}
}

func TestDocument_RenderCompiles(t *testing.T) {
	doc := NewDocument("page.hah", SplitLines("p Hi\n"), testConfig())
	if doc.Root().HasChildren() {
		t.Fatal("root has children before compiling")
	}

	if _, err := doc.Render(); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if len(doc.Root().Children) != 1 {
		t.Errorf("root has %d children after Render, want 1", len(doc.Root().Children))
	}
}

func TestDocument_CompileOnce(t *testing.T) {
	doc := compileSource(t, "ul\n  li a\n  li b\n")
	before := doc.Root().Dump()

	if err := doc.Compile(); err != nil {
		t.Fatalf("second Compile() failed: %v", err)
	}
	if diff := cmp.Diff(before, doc.Root().Dump()); diff != "" {
		t.Errorf("tree changed on second Compile (-before +after):\n%s", diff)
	}
}

func TestDocument_CompileErrorSticks(t *testing.T) {
	doc := NewDocument("page.hah", SplitLines(":\n  p orphan\n"), testConfig())

	first := doc.Compile()
	if !errors.Is(first, ErrDanglingContinuation) {
		t.Fatalf("Compile() error = %v, want ErrDanglingContinuation", first)
	}
	if second := doc.Compile(); second != first {
		t.Errorf("second Compile() = %v, want the first error", second)
	}
	if _, err := doc.Render(); err != first {
		t.Errorf("Render() error = %v, want the compile error", err)
	}
}

func TestDocument_Params(t *testing.T) {
	doc := NewDocument("page.hah", nil, testConfig())
	doc.Set("title", "Home")
	doc.Set("count", 3)
	doc.SetPositional(true)
	doc.Set("title", "About")

	want := []Attribute{
		{Key: "title", Value: "About"},
		{Key: "count", Value: "3"},
		{Value: "true"},
	}
	if diff := cmp.Diff(want, doc.Params()); diff != "" {
		t.Errorf("Params() mismatch (-want +got):\n%s", diff)
	}

	// the returned slice is a copy
	doc.Params()[0].Value = "changed"
	if a, _ := doc.Root().Get("title"); a.Value != "About" {
		t.Errorf("Params() exposed the underlying slice")
	}
}

func TestDocument_PositionalParamsNotForwarded(t *testing.T) {
	doc := NewDocument("page.hah", SplitLines("!$inner\n"), testConfig())
	doc.SetPositional("x")

	out, err := doc.Render()
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if strings.Contains(out, "->set(") {
		t.Errorf("positional parameter was forwarded: %q", out)
	}
}

func TestDocument_ImportsEmpty(t *testing.T) {
	doc := compileSource(t, "p No imports\n!$dynamic\n!app.js\n")

	imports, err := doc.Imports()
	if err != nil {
		t.Fatalf("Imports() failed: %v", err)
	}
	if len(imports) != 0 {
		t.Errorf("Imports() = %v, want none", imports)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: nil},
		{name: "no terminator", text: "p", want: []string{"p"}},
		{name: "terminated", text: "a\nb\n", want: []string{"a\n", "b\n"}},
		{name: "crlf", text: "a\r\nb", want: []string{"a\r\n", "b"}},
		{name: "blank lines kept", text: "a\n\nb\n", want: []string{"a\n", "\n", "b\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitLines(tt.text)); diff != "" {
				t.Errorf("SplitLines() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfig_Fingerprint(t *testing.T) {
	base := DefaultConfig()

	if base.Fingerprint() != (Config{}).Fingerprint() {
		t.Error("zero config should fingerprint like the defaults")
	}

	changed := base
	changed.Newline = "\n"
	if base.Fingerprint() == changed.Fingerprint() {
		t.Error("newline change did not change the fingerprint")
	}

	logged := base
	logged.Logger = nil
	logged.Loader = MapLoader{}
	if base.Fingerprint() != logged.Fingerprint() {
		t.Error("logger and loader should not affect the fingerprint")
	}
}

func TestLineError(t *testing.T) {
	err := &LineError{File: "a.hah", Line: 7, Text: "?", Err: ErrUnrecognizedLine}

	if got := err.Error(); got != "a.hah:7: unrecognized line" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrUnrecognizedLine) {
		t.Error("LineError does not unwrap to its cause")
	}
}
