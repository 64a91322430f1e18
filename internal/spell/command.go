package spell

import (
	"strconv"
	"strings"
)

// BuildCommand reconstructs a command string that compiles back to an
// equivalent CompiledQuery. Multi-valued fields are emitted one flag
// occurrence per value so values containing commas survive the round trip.
// The exact surface form is not guaranteed to match the user's original
// input, only to compile to the same filter, relays, and buckets.
func BuildCommand(q CompiledQuery) string {
	var parts []string

	add := func(flag, value string) {
		parts = append(parts, flag, quoteToken(value))
	}

	for _, k := range q.Filter.Kinds {
		add("-k", strconv.Itoa(k))
	}

	for _, a := range q.Filter.Authors {
		add("-a", a)
	}
	for _, id := range q.NIP05Authors {
		add("-a", nip05Token(id))
	}
	for _, d := range q.DomainAuthors {
		add("-a", "@"+d)
	}

	for _, v := range q.Filter.TagValues('p') {
		add("-p", v)
	}
	for _, id := range q.NIP05PTags {
		add("-p", nip05Token(id))
	}
	for _, d := range q.DomainPTags {
		add("-p", "@"+d)
	}

	for _, v := range q.Filter.TagValues('P') {
		add("-P", v)
	}
	for _, id := range q.NIP05PTagsUppercase {
		add("-P", nip05Token(id))
	}
	for _, d := range q.DomainPTagsUppercase {
		add("-P", "@"+d)
	}

	for _, id := range q.Filter.IDs {
		add("-i", id)
	}
	for _, id := range q.Filter.TagValues('e') {
		add("-e", id)
	}
	for _, coord := range q.Filter.TagValues('a') {
		add("-e", coord)
	}

	for _, v := range q.Filter.TagValues('t') {
		add("-t", verbatimToken(v))
	}
	for _, v := range q.Filter.TagValues('d') {
		add("-d", verbatimToken(v))
	}

	for letter, values := range q.Filter.Tags {
		switch letter {
		case 'e', 'p', 'P', 'a', 't', 'd':
			continue // covered by dedicated flags above
		}
		for _, v := range values {
			parts = append(parts, "-T", string(letter), quoteToken(verbatimToken(v)))
		}
	}

	if q.Filter.Limit != nil {
		add("-l", strconv.Itoa(*q.Filter.Limit))
	}
	if q.Filter.Since != nil {
		add("--since", strconv.FormatInt(*q.Filter.Since, 10))
	}
	if q.Filter.Until != nil {
		add("--until", strconv.FormatInt(*q.Filter.Until, 10))
	}
	if q.Filter.Search != "" {
		add("--search", q.Filter.Search)
	}

	if q.CloseOnEose {
		parts = append(parts, "--close-on-eose")
	}
	if q.Follow {
		parts = append(parts, "--follow")
	}

	parts = append(parts, q.Relays...)

	return strings.Join(parts, " ")
}

// nip05Token makes a bare-domain identifier safe for re-parsing. Without the
// explicit "_" root name a bare domain would be claimed as a relay token, so
// the canonical user@domain form is emitted instead.
func nip05Token(id string) string {
	if !strings.Contains(id, "@") {
		return "_@" + id
	}
	return id
}

// verbatimToken keeps a relay-shaped tag value in value position on
// re-parse. A leading comma defeats relay claiming (the token is no longer
// a bare URL or domain) and splitValues drops the empty first element, so
// the flag receives the value unchanged.
func verbatimToken(v string) string {
	lower := strings.ToLower(v)
	if strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://") || IsRelayDomain(lower) {
		return "," + v
	}
	return v
}

// quoteToken wraps a value in quotes when the tokenizer would otherwise
// split or reinterpret it.
func quoteToken(v string) string {
	if v == "" {
		return `""`
	}
	if !strings.ContainsAny(v, " \t\n'\"") {
		return v
	}
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	return "'" + v + "'"
}
