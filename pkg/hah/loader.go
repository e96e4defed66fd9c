package hah

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Loader reads document sources by name.
type Loader interface {
	// Load returns the source split into lines, each keeping its terminator.
	// A missing source yields an error wrapping ErrSourceNotFound.
	Load(name string) ([]string, error)

	// Exists reports whether a source with this name can be loaded.
	Exists(name string) bool
}

// DirLoader loads sources from the operating system's filesystem.
type DirLoader struct{}

func (DirLoader) Load(name string) ([]string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return SplitLines(string(data)), nil
}

func (DirLoader) Exists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}

// MapLoader serves sources from memory, keyed by name.
type MapLoader map[string]string

func (m MapLoader) Load(name string) ([]string, error) {
	text, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return SplitLines(text), nil
}

func (m MapLoader) Exists(name string) bool {
	_, ok := m[name]
	return ok
}

// SplitLines splits text after every newline. Terminators stay attached to
// their line so raw passthrough can reproduce the source byte for byte.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitEOL separates a line from its terminator.
func splitEOL(line string) (string, string) {
	body := strings.TrimRight(line, "\r\n")
	return body, line[len(body):]
}
