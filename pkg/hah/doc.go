// Package hah compiles HAH documents, an indentation-sensitive markup
// language, into host source that mixes literal markup with embedded
// statements and expressions.
//
// Each line starts with a token that selects a construct:
//
//	tag#id.class(attr="v") text   element with shorthand, attributes and text
//	tag= $expr                    element whose content is an expression
//	tag,child,grandchild text     nested elements on one line
//	.class / #id                  div shorthand
//	$expr(filter="arg")           expression echo
//	@name value / @name=[f] expr  attribute on the previous node
//	- statement                   host statement or block
//	?condition / : / :condition   if / else / elseif
//	<raw ...                      raw markup or host code, copied verbatim
//	!path                         import (script, stylesheet, image, include or sub-document)
//	// comment                    dropped
//
// Leading whitespace decides nesting: a line becomes a child of the closest
// previous line that is indented less.
package hah
