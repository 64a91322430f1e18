package spell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \t\n ", nil},
		{"simple", "-k 1 relay.damus.io", []string{"-k", "1", "relay.damus.io"}},
		{"collapses runs of whitespace", "-k   1\t\t-l  5", []string{"-k", "1", "-l", "5"}},
		{"double quotes group", `--search "hello world"`, []string{"--search", "hello world"}},
		{"single quotes group", `--search 'hello world'`, []string{"--search", "hello world"}},
		{"quote characters are consumed", `-t "nostr"`, []string{"-t", "nostr"}},
		{"double quotes preserve single", `--search "it's fine"`, []string{"--search", "it's fine"}},
		{"single quotes preserve double", `--search 'say "hi"'`, []string{"--search", `say "hi"`}},
		{"unterminated quote runs to end", `--search "never closed`, []string{"--search", "never closed"}},
		{"adjacent quoted segments join", `a"b c"d`, []string{"ab cd"}},
		{"empty quotes produce nothing", `"" -k 1`, []string{"-k", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}
