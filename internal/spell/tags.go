package spell

import (
	"encoding/json"
	"fmt"

	"github.com/purrgrammer/grimoire-sub000/internal/nostr"
)

// QueryType marks whether a spell issues a REQ subscription or a NIP-45
// COUNT. A persisted spell with any other marker is structurally broken.
type QueryType string

const (
	QueryReq   QueryType = "req"
	QueryCount QueryType = "count"
)

// SpellEventKind is the parameterized-replaceable kind used when a spell is
// persisted as a Nostr event ("d" tag carries the spell name).
const SpellEventKind = 31777

// bucketTargets maps the resolution-bucket marker used in "nip05"/"domain"
// tags to the filter position the resolved pubkeys land in. The zero byte
// stands for the authors list.
var bucketTargets = map[string]byte{
	"author": 0,
	"p":      'p',
	"P":      'P',
}

// EncodeTags serializes a compiled query to Nostr event tags:
//
//	["type", "req"|"count"]
//	["filter", <NIP-01 filter JSON>]
//	["relay", <url>]            one per relay
//	["nip05", <id>, <target>]   pending NIP-05 lookups
//	["domain", <d>, <target>]   pending directory lookups
//	["close-on-eose"]           when set
//	["follow"]                  when set
//
// The filter JSON carries alias literals ($me/$contacts) as-is; pending
// buckets get their own tags since they are not part of the filter.
func EncodeTags(qt QueryType, q CompiledQuery) [][]string {
	filterJSON, err := json.Marshal(q.Filter)
	if err != nil {
		filterJSON = []byte("{}")
	}

	tags := [][]string{
		{"type", string(qt)},
		{"filter", string(filterJSON)},
	}
	for _, relay := range q.Relays {
		tags = append(tags, []string{"relay", relay})
	}
	for _, id := range q.NIP05Authors {
		tags = append(tags, []string{"nip05", id, "author"})
	}
	for _, id := range q.NIP05PTags {
		tags = append(tags, []string{"nip05", id, "p"})
	}
	for _, id := range q.NIP05PTagsUppercase {
		tags = append(tags, []string{"nip05", id, "P"})
	}
	for _, d := range q.DomainAuthors {
		tags = append(tags, []string{"domain", d, "author"})
	}
	for _, d := range q.DomainPTags {
		tags = append(tags, []string{"domain", d, "p"})
	}
	for _, d := range q.DomainPTagsUppercase {
		tags = append(tags, []string{"domain", d, "P"})
	}
	if q.CloseOnEose {
		tags = append(tags, []string{"close-on-eose"})
	}
	if q.Follow {
		tags = append(tags, []string{"follow"})
	}
	return tags
}

// DecodeTags reverses EncodeTags. A missing or unrecognized type marker and
// a missing or unparseable filter tag are hard structural errors: the record
// itself is broken, not the user's input. Value-level junk stays lenient the
// way the compiler is lenient: malformed relay and bucket tags are dropped.
func DecodeTags(tags [][]string) (QueryType, CompiledQuery, error) {
	typeVal := nostr.GetTagValue(tags, "type")
	switch QueryType(typeVal) {
	case QueryReq, QueryCount:
	default:
		return "", CompiledQuery{}, fmt.Errorf("unrecognized spell type marker %q", typeVal)
	}

	filterJSON := nostr.GetTagValue(tags, "filter")
	if filterJSON == "" {
		return "", CompiledQuery{}, fmt.Errorf("spell record has no filter tag")
	}

	var q CompiledQuery
	if err := json.Unmarshal([]byte(filterJSON), &q.Filter); err != nil {
		return "", CompiledQuery{}, fmt.Errorf("broken filter tag: %w", err)
	}

	for _, url := range nostr.GetTagValues(tags, "relay") {
		if normalized := nostr.NormalizeRelayURL(url); normalized != "" {
			q.Relays = appendUnique(q.Relays, normalized)
		}
	}

	for _, tag := range tags {
		if len(tag) < 3 {
			continue
		}
		target, ok := bucketTargets[tag[2]]
		if !ok || tag[1] == "" {
			continue
		}
		switch tag[0] {
		case "nip05":
			switch target {
			case 0:
				q.NIP05Authors = appendUnique(q.NIP05Authors, tag[1])
			case 'p':
				q.NIP05PTags = appendUnique(q.NIP05PTags, tag[1])
			case 'P':
				q.NIP05PTagsUppercase = appendUnique(q.NIP05PTagsUppercase, tag[1])
			}
		case "domain":
			switch target {
			case 0:
				q.DomainAuthors = appendUnique(q.DomainAuthors, tag[1])
			case 'p':
				q.DomainPTags = appendUnique(q.DomainPTags, tag[1])
			case 'P':
				q.DomainPTagsUppercase = appendUnique(q.DomainPTagsUppercase, tag[1])
			}
		}
	}

	q.CloseOnEose = nostr.HasTag(tags, "close-on-eose")
	q.Follow = nostr.HasTag(tags, "follow")
	q.NeedsAccount = hasAliasLiterals(q.Filter)

	return QueryType(typeVal), q, nil
}

// hasAliasLiterals reports whether the filter still carries $me/$contacts
// placeholders in any pubkey position.
func hasAliasLiterals(f nostr.Filter) bool {
	for _, list := range [][]string{f.Authors, f.TagValues('p'), f.TagValues('P')} {
		for _, v := range list {
			if v == "$me" || v == "$contacts" {
				return true
			}
		}
	}
	return false
}
