package ui

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recera/hah/pkg/hah"
)

// Style definitions
var (
	primaryColor = lipgloss.Color("#3b82f6")
	codeColor    = lipgloss.Color("#a855f7")
	markupColor  = lipgloss.Color("#e2e8f0")
	successColor = lipgloss.Color("#10b981")
	warningColor = lipgloss.Color("#f59e0b")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")
)

// hostCode matches one embedded host code span of generated output.
var hostCode = regexp.MustCompile(`<\?php.*?\?>`)

// Printer renders terminal output for one writer. Styles degrade to plain
// text when the writer is not a color terminal.
type Printer struct {
	title   lipgloss.Style
	number  lipgloss.Style
	code    lipgloss.Style
	markup  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

// NewPrinter creates a printer whose color support matches w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		title:   r.NewStyle().Bold(true).Foreground(primaryColor),
		number:  r.NewStyle().Foreground(mutedColor),
		code:    r.NewStyle().Foreground(codeColor),
		markup:  r.NewStyle().Foreground(markupColor),
		success: r.NewStyle().Foreground(successColor).Bold(true),
		warning: r.NewStyle().Foreground(warningColor),
		failure: r.NewStyle().Foreground(errorColor).Bold(true),
		muted:   r.NewStyle().Foreground(mutedColor),
	}
}

// Listing numbers every line of generated output from zero, padded to
// five digits, with host code spans highlighted.
func (p *Printer) Listing(output string) string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	var b strings.Builder
	for i, line := range lines {
		b.WriteString(p.number.Render(fmt.Sprintf("%05d", i)))
		b.WriteString(" ")
		b.WriteString(p.highlight(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (p *Printer) highlight(line string) string {
	var b strings.Builder
	last := 0
	for _, loc := range hostCode.FindAllStringIndex(line, -1) {
		if loc[0] > last {
			b.WriteString(p.markup.Render(line[last:loc[0]]))
		}
		b.WriteString(p.code.Render(line[loc[0]:loc[1]]))
		last = loc[1]
	}
	if last < len(line) {
		b.WriteString(p.markup.Render(line[last:]))
	}
	return b.String()
}

// Source numbers source lines from one, the way diagnostics refer to them.
func (p *Printer) Source(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		b.WriteString(p.number.Render(fmt.Sprintf("%5d", i+1)))
		b.WriteString(" ")
		b.WriteString(strings.TrimRight(line, "\r\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// Diagnostics lists skipped lines as file:line: reason.
func (p *Printer) Diagnostics(file string, diags []hah.Diagnostic) string {
	if len(diags) == 0 {
		return p.muted.Render("no diagnostics") + "\n"
	}

	var b strings.Builder
	for _, d := range diags {
		b.WriteString(p.warning.Render(fmt.Sprintf("%s:%d: %s", file, d.Line, d.Reason)))
		b.WriteString(p.muted.Render("  " + strings.TrimSpace(d.Text)))
		b.WriteString("\n")
	}
	return b.String()
}

// Title renders a heading.
func (p *Printer) Title(s string) string {
	return p.title.Render(s)
}

// Success renders a completion message.
func (p *Printer) Success(s string) string {
	return p.success.Render("✅ " + s)
}

// Failure renders an error message.
func (p *Printer) Failure(s string) string {
	return p.failure.Render("❌ " + s)
}
