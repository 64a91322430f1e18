package spell

import (
	"regexp"
	"strings"

	"github.com/purrgrammer/grimoire-sub000/internal/nips"
)

// Identifier shapes accepted on pubkey- and event-bearing flags. Patterns
// are matched against lowercased input.
var (
	hexRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

	// domainNameRe matches a bare domain (label(.label)+ with a >=2 letter
	// TLD), no port or path. Used for identity classification (@domain,
	// NIP-05 bare domain).
	domainNameRe = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)

	// relayDomainRe additionally allows an optional port and path, for
	// bare relay references among the command tokens.
	relayDomainRe = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}(?::\d{1,5})?(?:/[^\s]*)?$`)

	// nip05Re matches the local part of a user@domain identifier.
	nip05LocalRe = regexp.MustCompile(`^[a-z0-9._+-]+$`)

	coordKindRe = regexp.MustCompile(`^\d+$`)
)

// IsHexKey reports whether s is a 64-character hex string (lowercased first).
func IsHexKey(s string) bool {
	return hexRe.MatchString(strings.ToLower(s))
}

// IsDomainName reports whether s looks like a bare domain (no port/path).
func IsDomainName(s string) bool {
	return domainNameRe.MatchString(strings.ToLower(s))
}

// IsRelayDomain reports whether s looks like a bare relay host, optionally
// with port and path.
func IsRelayDomain(s string) bool {
	return relayDomainRe.MatchString(strings.ToLower(s))
}

// IsNIP05 reports whether s is a NIP-05 identifier: user@domain or a bare
// domain (implying the "_" root name).
func IsNIP05(s string) bool {
	s = strings.ToLower(s)
	if at := strings.Index(s, "@"); at >= 0 {
		local, domain := s[:at], s[at+1:]
		return nip05LocalRe.MatchString(local) && domainNameRe.MatchString(domain)
	}
	return domainNameRe.MatchString(s)
}

// PubkeyKind classifies one candidate value on a pubkey-bearing flag.
type PubkeyKind int

const (
	PubkeyInvalid PubkeyKind = iota
	PubkeyAlias               // $me / $contacts, resolved at execution time
	PubkeyDomain              // @domain directory reference
	PubkeyNIP05               // user@domain or bare domain
	PubkeyHex                 // concrete 32-byte pubkey, hex encoded
)

// PubkeyValue is the classification result for one pubkey-flag value.
type PubkeyValue struct {
	Kind       PubkeyKind
	Value      string   // alias literal, domain, NIP-05 identifier, or hex pubkey
	RelayHints []string // from nprofile, raw (not yet normalized)
}

// ClassifyPubkeyValue classifies a single value passed to -a/-p/-P,
// case-insensitively. Bech32 npub/nprofile values decode to hex; nprofile
// relay hints are carried along. Unclassifiable values are PubkeyInvalid.
func ClassifyPubkeyValue(raw string) PubkeyValue {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return PubkeyValue{Kind: PubkeyInvalid}
	}

	if lower == "$me" || lower == "$contacts" {
		return PubkeyValue{Kind: PubkeyAlias, Value: lower}
	}

	if rest, ok := strings.CutPrefix(lower, "@"); ok {
		if domainNameRe.MatchString(rest) {
			return PubkeyValue{Kind: PubkeyDomain, Value: rest}
		}
		return PubkeyValue{Kind: PubkeyInvalid}
	}

	if IsNIP05(lower) {
		return PubkeyValue{Kind: PubkeyNIP05, Value: lower}
	}

	if strings.HasPrefix(lower, "npub1") {
		if pubkey, err := nips.DecodePubkey(lower); err == nil {
			return PubkeyValue{Kind: PubkeyHex, Value: pubkey}
		}
		return PubkeyValue{Kind: PubkeyInvalid}
	}

	if strings.HasPrefix(lower, "nprofile1") {
		if profile, err := nips.DecodeNProfile(lower); err == nil {
			return PubkeyValue{Kind: PubkeyHex, Value: profile.Pubkey, RelayHints: profile.RelayHints}
		}
		return PubkeyValue{Kind: PubkeyInvalid}
	}

	if hexRe.MatchString(lower) {
		return PubkeyValue{Kind: PubkeyHex, Value: lower}
	}

	return PubkeyValue{Kind: PubkeyInvalid}
}

// EventKind classifies one candidate value on an event-bearing flag.
type EventKind int

const (
	EventInvalid EventKind = iota
	EventID                // nevent, note, or raw 64-hex
	EventAddress           // naddr or raw kind:pubkey:identifier coordinate
)

// EventValue is the classification result for one event-flag value.
type EventValue struct {
	Kind       EventKind
	ID         string   // hex event ID (EventID)
	Coordinate string   // kind:pubkey:identifier (EventAddress)
	RelayHints []string // from nevent/naddr, raw (not yet normalized)
}

// ClassifyEventValue classifies a single value passed to -e/-i. Malformed
// bech32 and unparseable coordinates are EventInvalid.
func ClassifyEventValue(raw string) EventValue {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	if lower == "" {
		return EventValue{Kind: EventInvalid}
	}

	if strings.HasPrefix(lower, "nevent1") {
		if nevent, err := nips.DecodeNEvent(lower); err == nil {
			return EventValue{Kind: EventID, ID: nevent.EventID, RelayHints: nevent.RelayHints}
		}
		return EventValue{Kind: EventInvalid}
	}

	if strings.HasPrefix(lower, "naddr1") {
		if naddr, err := nips.DecodeNAddr(lower); err == nil {
			return EventValue{Kind: EventAddress, Coordinate: naddr.Coordinate(), RelayHints: naddr.RelayHints}
		}
		return EventValue{Kind: EventInvalid}
	}

	if strings.HasPrefix(lower, "note1") {
		if id, err := nips.DecodeNote(lower); err == nil {
			return EventValue{Kind: EventID, ID: id}
		}
		return EventValue{Kind: EventInvalid}
	}

	// Raw kind:pubkey:identifier coordinate. The identifier may be any
	// string, including empty or containing further colons.
	if parts := strings.SplitN(trimmed, ":", 3); len(parts) == 3 {
		if coordKindRe.MatchString(parts[0]) && hexRe.MatchString(strings.ToLower(parts[1])) {
			coord := parts[0] + ":" + strings.ToLower(parts[1]) + ":" + parts[2]
			return EventValue{Kind: EventAddress, Coordinate: coord}
		}
		return EventValue{Kind: EventInvalid}
	}

	if hexRe.MatchString(lower) {
		return EventValue{Kind: EventID, ID: lower}
	}

	return EventValue{Kind: EventInvalid}
}
