package hah

// escapeChar disables the delimiter that immediately follows it.
const escapeChar = '\\'

// Onion peels the outer layer off s: it returns the text enclosed by every
// top-level balanced left/right pair, in order. Nested pairs stay inside
// their enclosing capture. A delimiter preceded by a backslash is not
// counted. An opening delimiter that is never closed yields no capture,
// which callers treat as "no attributes" rather than an error.
func Onion(s string, left, right byte) []string {
	var found []string
	start, tally := 0, -1

	for i := 0; i < len(s); i++ {
		escaped := i > 0 && s[i-1] == escapeChar

		if s[i] == left && !escaped {
			if tally == -1 {
				start = i + 1
				tally = 1
			} else {
				tally++
			}
		}

		if tally != -1 && s[i] == right && !escaped {
			tally--
		}

		if tally == 0 {
			found = append(found, s[start:i])
			tally = -1
		}
	}

	return found
}

// onion extracts parenthesized groups.
func onion(s string) []string {
	return Onion(s, '(', ')')
}
