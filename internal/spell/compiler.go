package spell

import (
	"strconv"
	"strings"
	"time"

	"github.com/purrgrammer/grimoire-sub000/internal/nostr"
)

// CompiledQuery is the result of compiling a tokenized command: a NIP-01
// filter, the relay list (normalized, first-seen order), execution flags,
// and the buckets of identifiers that still need asynchronous resolution.
// It is produced once per command; the async resolver merges bucket results
// into a fresh Filter rather than mutating this one in place.
type CompiledQuery struct {
	Filter      nostr.Filter
	Relays      []string
	CloseOnEose bool
	Follow      bool

	// NeedsAccount is true while any $me/$contacts literal remains in
	// authors/#p/#P. The resolver clears it once aliases are concrete.
	NeedsAccount bool

	// Pending-resolution buckets, disjoint from values already in Filter.
	NIP05Authors         []string
	NIP05PTags           []string
	NIP05PTagsUppercase  []string
	DomainAuthors        []string
	DomainPTags          []string
	DomainPTagsUppercase []string
}

// HasPendingResolution reports whether any resolution bucket is non-empty.
func (q *CompiledQuery) HasPendingResolution() bool {
	return len(q.NIP05Authors) > 0 || len(q.NIP05PTags) > 0 || len(q.NIP05PTagsUppercase) > 0 ||
		len(q.DomainAuthors) > 0 || len(q.DomainPTags) > 0 || len(q.DomainPTagsUppercase) > 0
}

// pubkeyTarget selects which filter array and buckets a pubkey flag feeds.
type pubkeyTarget int

const (
	targetAuthors pubkeyTarget = iota
	targetPTags
	targetPTagsUppercase
)

// Compile turns a token list (any req/count prefix word already stripped by
// the caller) into a CompiledQuery. Compilation never fails: malformed
// values, unknown flags, and incomplete flag arguments are dropped
// value-by-value so one typo never aborts the rest of the command. Callers
// that execute or persist the result enforce "at least one constraint".
func Compile(tokens []string) CompiledQuery {
	return CompileAt(tokens, time.Now())
}

// CompileAt is Compile with an explicit reference time for --since/--until.
func CompileAt(tokens []string, now time.Time) CompiledQuery {
	c := &compiler{now: now, relaySeen: make(map[string]bool)}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		// Relay references win over everything, wherever they appear.
		if c.tryRelayToken(tok) {
			continue
		}

		if !strings.HasPrefix(tok, "-") {
			// Unknown positional tokens are silently dropped.
			continue
		}

		switch tok {
		case "--close-on-eose":
			c.q.CloseOnEose = true
		case "-f", "--follow":
			c.q.Follow = true
		case "-k", "--kind":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addKinds(v)
			}
		case "-a", "--author":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addPubkeys(v, targetAuthors)
			}
		case "-p":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addPubkeys(v, targetPTags)
			}
		case "-P":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addPubkeys(v, targetPTagsUppercase)
			}
		case "-e":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addEventRefs(v, false)
			}
		case "-i", "--id":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addEventRefs(v, true)
			}
		case "-t":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addTagValues('t', v)
			}
		case "-d":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.addTagValues('d', v)
			}
		case "-T", "--tag":
			letter, okLetter := c.takeValue(tokens, &i)
			values, okValues := c.takeValue(tokens, &i)
			// Multi-character "letters" invalidate the whole flag.
			if okLetter && okValues && len(letter) == 1 && nostr.IsTagLetter(letter[0]) {
				c.addTagValues(letter[0], values)
			}
		case "-l", "--limit":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.setLimit(v)
			}
		case "--since":
			if v, ok := c.takeValue(tokens, &i); ok {
				if ts, parsed := ParseTimeValue(v, c.now); parsed {
					c.q.Filter.Since = &ts
				}
			}
		case "--until":
			if v, ok := c.takeValue(tokens, &i); ok {
				if ts, parsed := ParseTimeValue(v, c.now); parsed {
					c.q.Filter.Until = &ts
				}
			}
		case "--search":
			if v, ok := c.takeValue(tokens, &i); ok {
				c.q.Filter.Search = v
			}
		default:
			// Unknown flags are silently dropped. A value following an
			// unknown flag is classified as an ordinary token on the
			// next iteration.
		}
	}

	return c.q
}

type compiler struct {
	q         CompiledQuery
	now       time.Time
	relaySeen map[string]bool
}

// tryRelayToken recognizes relay references: explicit ws://wss:// URLs and
// bare domain-like tokens (optional port/path). Such tokens are consumed as
// relays even in flag-value position.
func (c *compiler) tryRelayToken(tok string) bool {
	lower := strings.ToLower(tok)
	if strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://") {
		c.addRelay(nostr.NormalizeRelayURL(tok))
		return true
	}
	if IsRelayDomain(lower) {
		c.addRelay(nostr.NormalizeRelayURL("wss://" + lower))
		return true
	}
	return false
}

// takeValue consumes the flag's following value argument. If the next token
// is a relay reference it is claimed by the relay list instead and the flag
// is dropped; a missing argument likewise drops the flag.
func (c *compiler) takeValue(tokens []string, i *int) (string, bool) {
	if *i+1 >= len(tokens) {
		return "", false
	}
	next := tokens[*i+1]
	*i++
	if c.tryRelayToken(next) {
		return "", false
	}
	return next, true
}

func (c *compiler) addRelay(normalized string) {
	if normalized == "" || c.relaySeen[normalized] {
		return
	}
	c.relaySeen[normalized] = true
	c.q.Relays = append(c.q.Relays, normalized)
}

func (c *compiler) addRelayHints(hints []string) {
	for _, hint := range hints {
		c.addRelay(nostr.NormalizeRelayURL(hint))
	}
}

// splitValues splits a comma-separated value list, trimming whitespace and
// skipping empty entries (from ",,").
func splitValues(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *compiler) addKinds(v string) {
	for _, part := range splitValues(v) {
		kind, err := strconv.Atoi(part)
		if err != nil || kind < 0 {
			continue
		}
		c.q.Filter.AddKind(kind)
	}
}

func (c *compiler) setLimit(v string) {
	limit, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || limit < 0 {
		return
	}
	c.q.Filter.Limit = &limit
}

func (c *compiler) addTagValues(letter byte, v string) {
	for _, part := range splitValues(v) {
		c.q.Filter.AddTag(letter, part)
	}
}

func (c *compiler) addPubkeys(v string, target pubkeyTarget) {
	for _, part := range splitValues(v) {
		pv := ClassifyPubkeyValue(part)
		switch pv.Kind {
		case PubkeyAlias:
			c.insertPubkey(pv.Value, target)
			c.q.NeedsAccount = true
		case PubkeyDomain:
			switch target {
			case targetAuthors:
				c.q.DomainAuthors = appendUnique(c.q.DomainAuthors, pv.Value)
			case targetPTags:
				c.q.DomainPTags = appendUnique(c.q.DomainPTags, pv.Value)
			case targetPTagsUppercase:
				c.q.DomainPTagsUppercase = appendUnique(c.q.DomainPTagsUppercase, pv.Value)
			}
		case PubkeyNIP05:
			switch target {
			case targetAuthors:
				c.q.NIP05Authors = appendUnique(c.q.NIP05Authors, pv.Value)
			case targetPTags:
				c.q.NIP05PTags = appendUnique(c.q.NIP05PTags, pv.Value)
			case targetPTagsUppercase:
				c.q.NIP05PTagsUppercase = appendUnique(c.q.NIP05PTagsUppercase, pv.Value)
			}
		case PubkeyHex:
			c.insertPubkey(pv.Value, target)
			c.addRelayHints(pv.RelayHints)
		}
		// PubkeyInvalid: dropped, continue with remaining values.
	}
}

func (c *compiler) insertPubkey(value string, target pubkeyTarget) {
	switch target {
	case targetAuthors:
		c.q.Filter.AddAuthor(value)
	case targetPTags:
		c.q.Filter.AddTag('p', value)
	case targetPTagsUppercase:
		c.q.Filter.AddTag('P', value)
	}
}

// addEventRefs routes event identifiers. -e sends IDs to the #e tag bucket
// and coordinates to #a; -i sends IDs to the ids field and rejects
// coordinates (address lookups are invalid for direct-id queries).
func (c *compiler) addEventRefs(v string, direct bool) {
	for _, part := range splitValues(v) {
		ev := ClassifyEventValue(part)
		switch ev.Kind {
		case EventID:
			if direct {
				c.q.Filter.AddID(ev.ID)
			} else {
				c.q.Filter.AddTag('e', ev.ID)
			}
			c.addRelayHints(ev.RelayHints)
		case EventAddress:
			if direct {
				continue
			}
			c.q.Filter.AddTag('a', ev.Coordinate)
			c.addRelayHints(ev.RelayHints)
		}
		// EventInvalid: dropped, continue with remaining values.
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
