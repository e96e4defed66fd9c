package hah

import "strings"

// Host syntax of generated source. Literal markup passes through; host
// code is delimited by processing-instruction tags.

func hostStatement(stmt string) string {
	return "<?php " + stmt + "; ?>"
}

func hostBlockOpen(stmt string) string {
	return "<?php " + stmt + " { ?>"
}

const hostBlockClose = "<?php } ?>"

func hostEcho(expr string) string {
	return "<?php echo " + expr + "; ?>"
}

// hostAttributeFragment renders ` key="value"` when value is non-empty and
// nothing otherwise. value is evaluated twice and escaped at execution time.
func hostAttributeFragment(key, value string) string {
	return "((" + value + " == '')?'':' " + key + "=\"'.htmlentities(" + value + ", ENT_QUOTES).'\"')"
}

var attributeEscaper = strings.NewReplacer(
	"&", "&amp;",
	"\"", "&quot;",
	"'", "&#039;",
	"<", "&lt;",
	">", "&gt;",
)

// escapeAttribute escapes a literal attribute value.
func escapeAttribute(s string) string {
	return attributeEscaper.Replace(s)
}
