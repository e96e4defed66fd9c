package hah

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// lineToken captures leading whitespace and the construct token.
	// Identifiers are lower case only; other lines are not DSL.
	lineToken = regexp.MustCompile(`^([\s\t]*)(:|\?|!|//|-|@|\.|#|\$|<|[a-z0-9_][a-z0-9_\-]*)`)

	elseStatement = regexp.MustCompile(`(?i)^\s*else`)
	rawName       = regexp.MustCompile(`(?i)^[a-z0-9_\-?!]+`)

	jsImport    = regexp.MustCompile(`(?i)\.js$`)
	cssImport   = regexp.MustCompile(`(?i)\.css$`)
	imageImport = regexp.MustCompile(`(?i)\.(jpg|png|jpeg|gif)$`)
	hostImport  = regexp.MustCompile(`(?i)\.(php|html)$`)
)

const commentToken = "//"

// declarations are raw shortcuts that expand to fixed text instead of
// opening a passthrough region.
var declarations = map[string]string{
	"?xml":               "?php echo '<?xml version=\"1.0\" encoding=\"UTF-8\" ?>'; ?>\n",
	"!html":              "!DOCTYPE HTML>\n",
	"!html5":             "!DOCTYPE HTML>\n",
	"!html4strict":       "!DOCTYPE HTML PUBLIC \"-//W3C//DTD HTML 4.01//EN\" \"http://www.w3.org/TR/html4/strict.dtd\">\n",
	"!html4":             "!DOCTYPE HTML PUBLIC \"-//W3C//DTD HTML 4.01 Transitional//EN\" \"http://www.w3.org/TR/html4/loose.dtd\">\n",
	"!html4transitional": "!DOCTYPE HTML PUBLIC \"-//W3C//DTD HTML 4.01 Transitional//EN\" \"http://www.w3.org/TR/html4/loose.dtd\">\n",
	"!xhtmlstrict":       "!DOCTYPE html PUBLIC \"-//W3C//DTD XHTML 1.0 Strict//EN\" \"http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd\">\n",
	"!xhtml":             "!DOCTYPE html PUBLIC \"-//W3C//DTD XHTML 1.0 Strict//EN\" \"http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd\">\n",
	"!xhtmltransitional": "!DOCTYPE html PUBLIC \"-//W3C//DTD XHTML 1.0 Strict//EN\" \"http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd\">\n",
}

// hostCodeTrigger closes a raw host code region.
const hostCodeTrigger = "?>"

// parser turns the lines of one document into its node tree.
type parser struct {
	doc    *Document
	cfg    Config
	cursor *Node
	pt     passthrough

	// level is the target level of the line being built
	level  int
	lineNo int
	text   string
}

func newParser(doc *Document) *parser {
	return &parser{
		doc:    doc,
		cfg:    doc.cfg,
		cursor: doc.root,
	}
}

// parseLine consumes one source line.
func (p *parser) parseLine(raw string) error {
	if p.pt.consume(raw, p.cursor) {
		if !p.pt.active() {
			p.cfg.Logger.Debug("passthrough closed", "file", p.doc.name, "line", p.lineNo)
		}
		return nil
	}

	line, eol := splitEOL(raw)
	p.text = line

	m := lineToken.FindStringSubmatch(line)
	if m == nil {
		return p.skip(line)
	}

	token, rest := m[2], line[len(m[0]):]
	if token == commentToken {
		return nil
	}

	p.level = p.doc.root.Level + len(m[1])

	switch token {
	case "!":
		p.addImport(rest)
	case "-":
		return p.addCodeBlock(rest)
	case "?":
		return p.addCodeBlock("if (" + strings.TrimSpace(rest) + ")")
	case ":":
		if strings.TrimSpace(rest) == "" {
			return p.addCodeBlock("else")
		}
		return p.addCodeBlock("elseif (" + strings.TrimSpace(rest) + ")")
	case "<":
		p.addRaw(rest, eol)
	case "@":
		p.addAttribute(rest)
	case "$":
		p.addVar(rest)
	case ".", "#":
		p.addTag("div", token+rest)
	default:
		p.addTag(token, rest)
	}

	return nil
}

// skip handles a line with no recognized token.
func (p *parser) skip(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if p.cfg.Strict {
		return p.errorf(ErrUnrecognizedLine)
	}
	p.diagnose(reasonUnrecognized)
	return nil
}

func (p *parser) diagnose(reason string) {
	p.doc.diagnostics = append(p.doc.diagnostics, Diagnostic{
		Line:   p.lineNo,
		Text:   p.text,
		Reason: reason,
	})
	p.cfg.Logger.Debug(reason, "file", p.doc.name, "line", p.lineNo)
}

func (p *parser) errorf(err error) error {
	return &LineError{File: p.doc.name, Line: p.lineNo, Text: p.text, Err: err}
}

// add attaches n at the current level and makes it the cursor.
func (p *parser) add(n *Node) {
	p.cursor = attach(p.cursor, n, p.level)
}

// addCodeBlock attaches a host statement. A statement starting with else
// continues the previous sibling block: that block is left open and this
// one opens by closing it.
func (p *parser) addCodeBlock(stmt string) error {
	n := &Node{Kind: KindCode, Value: strings.TrimSpace(stmt)}
	p.add(n)

	if !elseStatement.MatchString(stmt) {
		return nil
	}

	prev := n.SiblingAt(-1)
	if prev == nil || prev.Kind != KindCode {
		return p.errorf(ErrDanglingContinuation)
	}
	prev.LeaveOpen = true
	n.Value = "} " + n.Value

	return nil
}

// addRaw attaches a raw node. Declarations expand in place; host code and
// unknown tags open a passthrough region closed by their closing form at
// the same indentation.
func (p *parser) addRaw(rest, eol string) {
	name := rawName.FindString(rest)
	text := rest + eol

	if decl, ok := declarations[name]; ok {
		text = decl
	} else {
		trigger := "</" + name + ">"
		if name == "?php" {
			trigger = hostCodeTrigger
		}
		p.pt.open(trigger, p.level-p.doc.root.Level)
		p.cfg.Logger.Debug("passthrough opened", "file", p.doc.name, "line", p.lineNo, "trigger", trigger)
	}

	p.add(&Node{Kind: KindRaw, Value: strings.Repeat(" ", p.level) + "<" + text})
}

// addVar attaches an expression echo. A parenthesized list after the
// expression supplies its filters.
func (p *parser) addVar(rest string) {
	expr, attrs := splitParen(rest)
	n := &Node{Kind: KindVar, Name: strings.TrimSpace("$" + expr)}
	p.parseAttributes(attrs, n)
	p.add(n)
}

// addImport attaches the node an import line produces, chosen by the
// extension of the imported path.
func (p *parser) addImport(rest string) {
	target, attrs := splitParen(rest)
	target = strings.TrimSpace(target)

	var n *Node
	switch {
	case jsImport.MatchString(target):
		n = &Node{Kind: KindTag, Name: "script"}
		n.Set("src", target)
		n.Set("type", "text/javascript")
	case cssImport.MatchString(target):
		n = &Node{Kind: KindTag, Name: "link"}
		n.Set("href", target)
		n.Set("type", "text/css")
		n.Set("rel", "stylesheet")
	case imageImport.MatchString(target):
		n = &Node{Kind: KindTag, Name: "img"}
		n.Set("src", target)
	case hostImport.MatchString(target):
		n = &Node{Kind: KindCode, Value: "include('" + target + "')"}
	case strings.HasPrefix(target, "$"):
		n = &Node{Kind: KindSubDocument, Name: target}
	default:
		n = &Node{Kind: KindSubDocument, Name: p.resolve(target)}
	}

	p.parseAttributes(attrs, n)
	p.add(n)
}

// resolve locates a sub-document next to the importing document, falling
// back to the assets directory.
func (p *parser) resolve(target string) string {
	local := filepath.Join(filepath.Dir(p.doc.name), target)
	if p.cfg.Loader.Exists(local) {
		return local
	}

	resolved := filepath.Join(p.cfg.AssetsDir, target)
	p.cfg.Logger.Debug("import resolved from assets", "file", p.doc.name, "line", p.lineNo, "path", resolved)
	return resolved
}

// addTag builds a tag from its shorthand, attribute list and remainder.
func (p *parser) addTag(name, data string) {
	n := &Node{Kind: KindTag, Name: name}

	var classes []string
	for {
		m := shorthand.FindStringSubmatch(data)
		if m == nil {
			break
		}
		data = data[len(m[0]):]

		if m[1] == "#" {
			n.Set("id", m[2])
		} else {
			classes = append(classes, m[2])
			n.Set("class", strings.Join(classes, " "))
		}
	}

	if strings.HasPrefix(data, "(") {
		data = p.parseAttributes(data, n)
	}

	// a comma nests the next tag one level deeper on the same line
	if m := inlineNest.FindStringSubmatch(data); m != nil {
		p.add(n)
		p.level++
		p.addTag(m[1], data[len(m[0]):])
		return
	}

	m := tagRemainder.FindStringSubmatch(data)
	if m == nil {
		p.add(n)
		return
	}

	if m[1] != "=" {
		n.Value = strings.TrimSpace(m[3])
		p.add(n)
		return
	}

	v := &Node{Kind: KindVar, Name: strings.TrimSpace(m[3])}
	if m[2] != "" {
		p.applyFilters(v, m[2])
	}
	p.add(n)
	n.AddChild(v)
	v.Level = n.Level + 1
}

// addAttribute sets an attribute on the cursor: "@name value" stores a
// literal, "@name=[filters] expr" stores an expression. The ? filter turns
// the expression into a positional fragment rendered only when non-empty.
func (p *parser) addAttribute(rest string) {
	m := attributeLine.FindStringSubmatch(rest)
	if m == nil {
		return
	}
	name, assign, filters, value := m[1], m[2], m[3], m[4]

	if assign != "=" {
		p.cursor.Set(name, strings.TrimSpace(value))
		return
	}

	prop := &Node{Kind: KindVar, Name: strings.TrimSpace(value)}
	if filters != "" {
		if strings.Contains(filters, suppressMark) {
			prop.SuppressAs = name
			filters = strings.ReplaceAll(filters, suppressMark, "")
		}
		p.applyFilters(prop, filters)
	}

	if prop.SuppressAs != "" {
		p.cursor.Append(prop)
	} else {
		p.cursor.SetExpr(name, prop)
	}
}
