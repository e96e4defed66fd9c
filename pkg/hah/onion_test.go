package hah

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOnion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		left, right byte
		want        []string
	}{
		{
			name:  "nested pair stays inside capture",
			input: `(a="1", b="(nested)")`,
			left:  '(', right: ')',
			want: []string{`a="1", b="(nested)"`},
		},
		{
			name:  "sequential groups",
			input: "(a)(b)",
			left:  '(', right: ')',
			want: []string{"a", "b"},
		},
		{
			name:  "text around the group",
			input: "x(a)y",
			left:  '(', right: ')',
			want: []string{"a"},
		},
		{
			name:  "unclosed",
			input: "(a",
			left:  '(', right: ')',
			want: nil,
		},
		{
			name:  "stray closing delimiters are ignored",
			input: ")(a))",
			left:  '(', right: ')',
			want: []string{"a"},
		},
		{
			name:  "escaped opening",
			input: `\(a)`,
			left:  '(', right: ')',
			want: nil,
		},
		{
			name:  "escaped closing",
			input: `(a\)b)`,
			left:  '(', right: ')',
			want: []string{`a\)b`},
		},
		{
			name:  "custom delimiters",
			input: "[a[b]]",
			left:  '[', right: ']',
			want: []string{"a[b]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Onion(tt.input, tt.left, tt.right)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Onion(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestOnion_ChompLength(t *testing.T) {
	input := `(a="1", b="(nested)")`
	groups := onion(input)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if got := len(groups[0]) + 2; got != len(input) {
		t.Errorf("capture plus delimiters = %d, want %d", got, len(input))
	}

	p := newParser(NewDocument("t.hah", nil, testConfig()))
	n := &Node{Kind: KindTag, Name: "p"}
	rest := p.parseAttributes(input+" tail", n)
	if rest != " tail" {
		t.Errorf("parseAttributes left %q, want %q", rest, " tail")
	}

	want := []Attribute{{Key: "a", Value: "1"}, {Key: "b", Value: "(nested)"}}
	if diff := cmp.Diff(want, n.Attributes); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}
