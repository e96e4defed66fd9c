package hah

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Document is one compiled source. The tree is built once, on the first
// call to Compile or Render.
type Document struct {
	name  string
	lines []string
	cfg   Config
	root  *Node

	compiled    bool
	err         error
	diagnostics []Diagnostic
}

// Open loads the named source through cfg.Loader. A missing source is an
// error wrapping ErrSourceNotFound and no Document is returned.
func Open(name string, cfg Config) (*Document, error) {
	cfg = cfg.withDefaults()

	lines, err := cfg.Loader.Load(name)
	if err != nil {
		return nil, err
	}

	return NewDocument(name, lines, cfg), nil
}

// NewDocument creates a document from lines that keep their terminators.
// name is used for error messages and to resolve relative imports.
func NewDocument(name string, lines []string, cfg Config) *Document {
	return &Document{
		name:  name,
		lines: lines,
		cfg:   cfg.withDefaults(),
		root:  &Node{Kind: KindDocument, Name: name},
	}
}

// Name returns the source identifier.
func (d *Document) Name() string {
	return d.name
}

// Lines returns the source lines.
func (d *Document) Lines() []string {
	return d.lines
}

// Root returns the root node. It has no children until compiled.
func (d *Document) Root() *Node {
	return d.root
}

// Set adds or replaces a named template parameter. Parameters of the
// top-most document are forwarded to every sub-document it imports.
func (d *Document) Set(name string, value any) {
	d.root.Set(name, fmt.Sprint(value))
}

// SetPositional adds an unnamed template parameter. Unnamed parameters are
// never forwarded.
func (d *Document) SetPositional(value any) {
	d.root.Attributes = append(d.root.Attributes, Attribute{Value: fmt.Sprint(value)})
}

// Params returns the template parameters in the order they were set.
func (d *Document) Params() []Attribute {
	return append([]Attribute(nil), d.root.Attributes...)
}

// Diagnostics returns the lines the parser skipped or could not fully use.
func (d *Document) Diagnostics() []Diagnostic {
	return d.diagnostics
}

// Compile builds the node tree. Only the first call does any work; later
// calls return the first call's result.
func (d *Document) Compile() error {
	if d.compiled {
		return d.err
	}
	d.compiled = true

	p := newParser(d)
	for i, line := range d.lines {
		p.lineNo = i + 1
		if err := p.parseLine(line); err != nil {
			d.err = err
			return err
		}
	}

	if p.pt.active() {
		d.cfg.Logger.Debug("passthrough never closed", "file", d.name, "trigger", p.pt.trigger)
	}

	return nil
}

// Render compiles the document if needed and returns the generated source.
func (d *Document) Render() (string, error) {
	if err := d.Compile(); err != nil {
		return "", err
	}

	r := &renderer{cfg: d.cfg}
	return r.render(d.root), nil
}

// Imports returns the resolved paths of the static sub-documents the
// document imports, in source order and without duplicates. Dynamic
// imports whose path is a host variable are left out.
func (d *Document) Imports() ([]string, error) {
	if err := d.Compile(); err != nil {
		return nil, err
	}

	var imports []string
	seen := make(map[string]bool)
	d.root.Walk(func(n *Node) {
		if n.Kind != KindSubDocument || strings.HasPrefix(n.Name, "$") || seen[n.Name] {
			return
		}
		seen[n.Name] = true
		imports = append(imports, filepath.Clean(n.Name))
	})

	return imports, nil
}
