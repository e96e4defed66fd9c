// Package compiler turns .hah files on disk into generated source, reusing
// cached output for sources that have not changed.
package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/recera/hah/internal/cache"
	"github.com/recera/hah/pkg/hah"
)

// SourceExt is the extension of compiler input files.
const SourceExt = ".hah"

// Options configures a Compiler.
type Options struct {
	Config hah.Config

	// OutputExt replaces SourceExt in generated file names
	OutputExt string

	// Cache may be nil to always compile
	Cache *cache.Cache

	Logger *slog.Logger
}

// Compiler compiles files and remembers which sub-documents each one
// imports so that a change can be traced to the files it affects.
type Compiler struct {
	cfg       hah.Config
	outputExt string
	cache     *cache.Cache
	logger    *slog.Logger

	mu   sync.Mutex
	deps map[string][]string
}

// Result describes one compiled file.
type Result struct {
	Source string
	Output string

	// Cached is set when Output came from the cache
	Cached bool

	// Dependencies are the static sub-documents the file imports
	Dependencies []string

	// Diagnostics are empty for cached results
	Diagnostics []hah.Diagnostic
}

// New creates a compiler.
func New(opts Options) *Compiler {
	if opts.OutputExt == "" {
		opts.OutputExt = ".php"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Config.Logger == nil {
		opts.Config.Logger = opts.Logger
	}

	return &Compiler{
		cfg:       opts.Config,
		outputExt: opts.OutputExt,
		cache:     opts.Cache,
		logger:    opts.Logger,
		deps:      make(map[string][]string),
	}
}

// CompileFile compiles path and returns its generated source.
func (c *Compiler) CompileFile(path string) (*Result, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", hah.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	source := string(data)

	var key string
	if c.cache != nil {
		key = cache.Key(path, source, c.cfg.Fingerprint())
		if out, ok := c.cache.Get(key); ok {
			deps := c.cache.Dependencies(key)
			c.record(path, deps)
			c.logger.Debug("cache hit", "file", path)
			return &Result{Source: path, Output: string(out), Cached: true, Dependencies: deps}, nil
		}
	}

	doc := hah.NewDocument(path, hah.SplitLines(source), c.cfg)
	out, err := doc.Render()
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, err)
	}
	deps, err := doc.Imports()
	if err != nil {
		return nil, err
	}
	c.record(path, deps)

	if c.cache != nil {
		if err := c.cache.PutWithDeps(key, path, []byte(out), deps); err != nil {
			c.logger.Warn("failed to cache output", "file", path, "error", err)
		}
	}

	return &Result{
		Source:       path,
		Output:       out,
		Dependencies: deps,
		Diagnostics:  doc.Diagnostics(),
	}, nil
}

// OutputPath returns where ProcessFile writes the output of path.
func (c *Compiler) OutputPath(path string) string {
	return strings.TrimSuffix(path, SourceExt) + c.outputExt
}

// ProcessFile compiles path and writes the output next to it.
func (c *Compiler) ProcessFile(path string) (*Result, error) {
	res, err := c.CompileFile(path)
	if err != nil {
		return nil, err
	}

	out := c.OutputPath(res.Source)
	if err := atomic.WriteFile(out, bytes.NewReader([]byte(res.Output))); err != nil {
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	c.logger.Debug("wrote output", "source", res.Source, "output", out, "cached", res.Cached)

	return res, nil
}

// FindSources returns every .hah file below dir, sorted.
func FindSources(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, SourceExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find source files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// ProcessDirectory processes every .hah file below dir. A failing file
// does not stop the others; all failures are returned together.
func (c *Compiler) ProcessDirectory(dir string) ([]*Result, error) {
	files, err := FindSources(dir)
	if err != nil {
		return nil, err
	}

	var results []*Result
	var errs []error
	for _, file := range files {
		res, err := c.ProcessFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

func (c *Compiler) record(path string, deps []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[path] = deps
}

// Dependents returns the compiled files that import path.
func (c *Compiler) Dependents(path string) []string {
	path = filepath.Clean(path)

	seen := make(map[string]bool)
	if c.cache != nil {
		for _, src := range c.cache.Dependents(path) {
			seen[src] = true
		}
	}

	c.mu.Lock()
	for src, deps := range c.deps {
		for _, dep := range deps {
			if dep == path {
				seen[src] = true
				break
			}
		}
	}
	c.mu.Unlock()

	out := make([]string, 0, len(seen))
	for src := range seen {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// Invalidate forgets cached output affected by a change to path and
// returns the source files that need recompiling: path itself when it is
// a source, followed by the files that import it.
func (c *Compiler) Invalidate(path string) []string {
	path = filepath.Clean(path)
	dependents := c.Dependents(path)

	if c.cache != nil {
		n := c.cache.InvalidateByDependency(path)
		c.logger.Debug("invalidated cached output", "path", path, "entries", n)
	}

	var affected []string
	if strings.HasSuffix(path, SourceExt) {
		affected = append(affected, path)
	}
	for _, dep := range dependents {
		if dep != path {
			affected = append(affected, dep)
		}
	}
	return affected
}

// Forget drops what the compiler knows about a removed source.
func (c *Compiler) Forget(path string) {
	path = filepath.Clean(path)

	c.mu.Lock()
	delete(c.deps, path)
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.InvalidateByDependency(path)
	}
}
