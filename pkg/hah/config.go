package hah

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultNonSelfClosing matches the tag names that always render an explicit
// closing tag, even when they have no content.
const DefaultNonSelfClosing = `(?i)script|iframe|textarea|div`

// Config controls how a Document resolves imports and formats generated
// source. A Config is passed by value and never modified after a Document
// has been created with it, so documents with different settings can coexist.
type Config struct {
	// Indent is repeated once per nesting level in generated markup
	Indent string

	// Newline separates rendered children
	Newline string

	// NonSelfClosing matches tag names exempt from the self-closing form.
	// The match is unanchored: any name containing a listed word is exempt.
	NonSelfClosing *regexp.Regexp

	// AssetsDir is the fallback directory for imports that are not found
	// next to the importing document
	AssetsDir string

	// HelperPrefix qualifies the helper calls (pick, date, money, htmllist,
	// table) that generated code makes at execution time
	HelperPrefix string

	// DocumentClass is the host class instantiated for sub-documents
	DocumentClass string

	// Strict makes unrecognized lines a compile error instead of a diagnostic
	Strict bool

	// Logger receives debug output about parsing. Defaults to a discarding logger.
	Logger *slog.Logger

	// Loader reads document sources. Defaults to DirLoader.
	Loader Loader
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Indent:         "  ",
		Newline:        "\r\n",
		NonSelfClosing: regexp.MustCompile(DefaultNonSelfClosing),
		HelperPrefix:   "HahNode::",
		DocumentClass:  "HahDocument",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Loader:         DirLoader{},
	}
}

// withDefaults fills every unset field from DefaultConfig.
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.Indent == "" {
		c.Indent = defaults.Indent
	}
	if c.Newline == "" {
		c.Newline = defaults.Newline
	}
	if c.NonSelfClosing == nil {
		c.NonSelfClosing = defaults.NonSelfClosing
	}
	if c.HelperPrefix == "" {
		c.HelperPrefix = defaults.HelperPrefix
	}
	if c.DocumentClass == "" {
		c.DocumentClass = defaults.DocumentClass
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
	if c.Loader == nil {
		c.Loader = defaults.Loader
	}

	return c
}

// Fingerprint identifies every setting that changes generated output.
// Two configs with the same fingerprint render any source identically.
func (c Config) Fingerprint() string {
	c = c.withDefaults()

	h := sha256.New()
	for _, part := range []string{
		c.Indent,
		c.Newline,
		c.NonSelfClosing.String(),
		c.AssetsDir,
		c.HelperPrefix,
		c.DocumentClass,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	if c.Strict {
		h.Write([]byte("strict"))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// helper returns the qualified name of a runtime helper function.
func (c Config) helper(name string) string {
	return c.HelperPrefix + name
}

// indent returns the indentation for a nesting level.
func (c Config) indent(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(c.Indent, level)
}
