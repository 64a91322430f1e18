package spell

import (
	"strings"
	"unicode"
)

// Tokenize splits a raw command string into tokens. Whitespace separates
// tokens except inside single- or double-quoted substrings; the quote
// characters themselves are consumed. An unterminated quote runs to the end
// of the string. There is no escaping beyond quote-boundary recognition.
func Tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return tokens
}
