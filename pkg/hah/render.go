package hah

import "strings"

// renderer produces generated source from a tree. It only reads the tree,
// so rendering the same tree twice gives the same text.
type renderer struct {
	cfg Config
}

func (r *renderer) render(n *Node) string {
	switch n.Kind {
	case KindTag:
		return r.tag(n)
	case KindVar:
		return r.variable(n)
	case KindCode:
		return r.code(n)
	case KindRaw:
		return n.Value
	case KindSubDocument:
		return r.subDocument(n)
	case KindDocument:
		return r.children(n, "")
	default:
		return ""
	}
}

func (r *renderer) children(n *Node, sep string) string {
	parts := make([]string, len(n.Children))
	for i, child := range n.Children {
		parts[i] = r.render(child)
	}
	return strings.Join(parts, sep)
}

// block renders a tag's children: inline when the tag is singular,
// otherwise one per line with the closing tag on its own indented line.
func (r *renderer) block(n *Node, indent string) string {
	if n.IsSingular() {
		return r.children(n, "")
	}
	nl := r.cfg.Newline
	return nl + r.children(n, nl) + nl + indent
}

func (r *renderer) tag(n *Node) string {
	var b strings.Builder
	indent := r.cfg.indent(n.Level)

	if n.parent == nil || !n.parent.IsSingular() {
		b.WriteString(indent)
	}
	b.WriteString("<" + n.Name)

	for _, a := range n.Attributes {
		if a.Positional() {
			if a.Expr != nil {
				b.WriteString(r.render(a.Expr))
			} else {
				b.WriteString(a.Value)
			}
			continue
		}

		b.WriteString(" " + a.Key + `="`)
		if a.Expr != nil {
			b.WriteString(r.render(a.Expr))
		} else {
			b.WriteString(escapeAttribute(a.Value))
		}
		b.WriteString(`"`)
	}

	selfClosing := !n.HasChildren() && n.Value == "" && !r.cfg.NonSelfClosing.MatchString(n.Name)
	if selfClosing {
		b.WriteString(" />")
		return b.String()
	}

	b.WriteString(">" + n.Value)
	if n.HasChildren() {
		b.WriteString(r.block(n, indent))
	}
	b.WriteString("</" + n.Name + ">")

	return b.String()
}

// variable folds the filter chain around the expression, first filter
// innermost, and echoes the result.
func (r *renderer) variable(n *Node) string {
	code := n.Name

	for _, a := range n.Attributes {
		if a.Positional() {
			continue
		}
		arg := a.Value
		if a.Expr != nil {
			arg = a.Expr.Name
		}

		switch a.Key {
		case filterDate:
			code = r.cfg.helper("date") + `("` + arg + `",` + code + ")"
		case filterMoney:
			code = r.cfg.helper("money") + "(" + code + ")"
		case filterList:
			code = r.cfg.helper("htmllist") + "(" + code + `,"` + arg + `")`
		case filterTable:
			code = r.cfg.helper("table") + "(" + code + `,"` + arg + `")`
		default:
			code = a.Key + "(" + code + ")"
		}
	}

	if n.SuppressAs != "" {
		code = r.cfg.helper("pick") + "(" + code + ")"
		code = hostAttributeFragment(n.SuppressAs, code)
	}

	return hostEcho(code)
}

func (r *renderer) code(n *Node) string {
	indent := r.cfg.indent(n.Level)

	if !n.HasChildren() {
		return indent + hostStatement(n.Value)
	}

	out := indent + hostBlockOpen(n.Value)
	if n.IsSingular() {
		out += r.children(n, "")
	} else {
		nl := r.cfg.Newline
		out += nl + r.children(n, nl) + nl
	}

	if !n.LeaveOpen {
		if !n.IsSingular() {
			out += indent
		}
		out += hostBlockClose
	}

	return out
}

// subDocument instantiates the imported document, passes it this node's
// own attributes, then every named parameter of the top-most document not
// overridden here as a live reference to the variable of the same name.
func (r *renderer) subDocument(n *Node) string {
	var b strings.Builder
	b.WriteString(`<?php $__subhahdoc = new ` + r.cfg.DocumentClass + `("` + n.Name + `"); `)

	for _, a := range n.Attributes {
		if a.Positional() {
			continue
		}
		value := `"` + a.Value + `"`
		if a.Expr != nil {
			value = a.Expr.Name
		}
		b.WriteString(subDocumentSet(a.Key, value))
	}

	if top := n.Top(); top != n {
		for _, a := range top.Attributes {
			if a.Positional() {
				continue
			}
			if _, local := n.Get(a.Key); local {
				continue
			}
			b.WriteString(subDocumentSet(a.Key, "$"+a.Key))
		}
	}

	b.WriteString("echo $__subhahdoc; ")
	b.WriteString("unset($__subhahdoc); ")
	b.WriteString(" ?>")

	return b.String()
}

func subDocumentSet(key, value string) string {
	return `$__subhahdoc->set('` + key + `',` + value + `); `
}
