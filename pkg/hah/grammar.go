package hah

import (
	"regexp"
	"strings"
)

var (
	shorthand    = regexp.MustCompile(`(?i)^([#.])([a-z0-9_\-]+)`)
	inlineNest   = regexp.MustCompile(`(?i)^,([a-z0-9_\-]+)`)
	tagRemainder = regexp.MustCompile(`^(=)?(\S*)\s+(.*)$`)

	// attributeLine is "name[=][filters] value"
	attributeLine = regexp.MustCompile(`^([^\s=]+)(=)?(\S*)\s+(.+)`)

	// attributePair matches the next name="value" or name='value' pair; an
	// @ before the name makes the value an expression
	attributePair = regexp.MustCompile(`(?i)^.*?\s*(@)?([a-z0-9_\-]+)=("([^"]*)"|'([^']*)')`)

	parenSplit  = regexp.MustCompile(`^([^(]*)(.*)$`)
	datePattern = regexp.MustCompile(`"([^"]+)"`)
)

// Filter marks.
const (
	suppressMark = "?"
	moneyMark    = "$"
	numberMark   = "#"
)

// Filter names understood by the renderer. Any other name wraps the
// expression in a call to a host function of that name.
const (
	filterDate   = "date"
	filterMoney  = "money"
	filterNumber = "number_format"
	filterList   = "list"
	filterTable  = "table"
)

// splitParen splits trimmed s at its first opening parenthesis.
func splitParen(s string) (string, string) {
	m := parenSplit.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s, ""
	}
	return m[1], m[2]
}

// parseAttributes reads the first parenthesized group of data into n and
// returns data with the group removed. The group's length plus the two
// delimiters is chomped even when nothing balanced was found, so an
// unbalanced list loses its opening characters; this is recorded as a
// diagnostic.
func (p *parser) parseAttributes(data string, n *Node) string {
	groups := onion(data)

	chomp := 2
	if len(groups) > 0 {
		props := groups[0]
		chomp += len(props)

		for {
			m := attributePair.FindStringSubmatch(props)
			if m == nil {
				break
			}
			props = props[len(m[0]):]

			value := m[4]
			if strings.HasPrefix(m[3], "'") {
				value = m[5]
			}
			if m[1] == "@" {
				n.SetExpr(m[2], &Node{Kind: KindVar, Name: `"` + value + `"`})
			} else {
				n.Set(m[2], value)
			}
		}
	} else if strings.HasPrefix(data, "(") {
		p.diagnose(reasonUnbalanced)
	}

	if chomp >= len(data) {
		return ""
	}
	return data[chomp:]
}

// applyFilters records a filter token string on expression node n.
//
// A ? wraps the construct being built in a conditional that only renders
// when the expression is non-empty. Then, first match wins: a quoted
// pattern selects date formatting (underscores stand for spaces), $ selects
// money, # selects number grouping, otherwise the token is a comma
// separated list of function names applied innermost first.
func (p *parser) applyFilters(n *Node, filters string) {
	if strings.Contains(filters, suppressMark) {
		n.Name = p.cfg.helper("pick") + "(" + n.Name + ")"
		// an if statement never continues a previous block
		_ = p.addCodeBlock("if (" + n.Name + " != '')")
		p.level++
		filters = strings.ReplaceAll(filters, suppressMark, "")
	}

	if m := datePattern.FindStringSubmatch(filters); m != nil {
		n.Set(filterDate, strings.ReplaceAll(m[1], "_", " "))
		return
	}

	switch {
	case strings.Contains(filters, moneyMark):
		n.Set(filterMoney, "")
	case strings.Contains(filters, numberMark):
		n.Set(filterNumber, "")
	default:
		for _, name := range strings.Split(filters, ",") {
			if name != "" {
				n.Set(name, "")
			}
		}
	}
}
