package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/purrgrammer/grimoire-sub000/internal/cache"
	"github.com/purrgrammer/grimoire-sub000/internal/nostr"
	"github.com/purrgrammer/grimoire-sub000/internal/spell"
	"github.com/purrgrammer/grimoire-sub000/internal/util"
)

// Account is the active-account snapshot used to resolve $me/$contacts.
type Account struct {
	Pubkey   string
	Contacts []string
}

// Resolver resolves a compiled query's pending identifier buckets (NIP-05,
// @domain directories, $me/$contacts aliases) into concrete hex pubkeys.
// Lookups go over HTTPS to /.well-known/nostr.json and are cached.
type Resolver struct {
	httpClient *http.Client
	store      cache.Backend
	ttls       cache.Config
}

// New creates a resolver backed by the given cache.
func New(store cache.Backend, ttls cache.Config) *Resolver {
	return &Resolver{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		store: store,
		ttls:  ttls,
	}
}

// nip05Document is the .well-known/nostr.json shape.
type nip05Document struct {
	Names  map[string]string   `json:"names"`
	Relays map[string][]string `json:"relays"`
}

// cachedNIP05 wraps a single-identifier lookup result for the cache.
type cachedNIP05 struct {
	Pubkey   string   `json:"pubkey,omitempty"`
	Relays   []string `json:"relays,omitempty"`
	NotFound bool     `json:"not_found,omitempty"`
}

// cachedDomain wraps a directory listing for the cache.
type cachedDomain struct {
	Pubkeys  []string `json:"pubkeys,omitempty"`
	NotFound bool     `json:"not_found,omitempty"`
}

// Merge resolves all pending buckets of q and returns a new CompiledQuery
// whose Filter holds the resolved pubkeys (appended, deduplicated) and whose
// buckets are empty. Alias literals are replaced from acct when provided;
// NeedsAccount stays set while any alias remains. Unresolvable identifiers
// are skipped, never fatal: the query still runs on what resolved.
func (r *Resolver) Merge(ctx context.Context, q spell.CompiledQuery, acct *Account) spell.CompiledQuery {
	out := q
	out.Filter = q.Filter.Clone()
	out.Relays = append([]string(nil), q.Relays...)

	out.Filter.Authors, out.NeedsAccount = expandAliases(out.Filter.Authors, acct)
	pTags, pendingP := expandAliases(out.Filter.TagValues('p'), acct)
	upperPTags, pendingUpperP := expandAliases(out.Filter.TagValues('P'), acct)
	out.NeedsAccount = out.NeedsAccount || pendingP || pendingUpperP
	setTagValues(&out.Filter, 'p', pTags)
	setTagValues(&out.Filter, 'P', upperPTags)

	warm := r.prefetch(ctx, q)

	insert := func(target byte, pubkeys []string, relays []string) {
		for _, pk := range pubkeys {
			switch target {
			case 0:
				out.Filter.AddAuthor(pk)
			default:
				out.Filter.AddTag(target, pk)
			}
		}
		for _, relay := range relays {
			if normalized := nostr.NormalizeRelayURL(relay); normalized != "" {
				out.Relays = appendUnique(out.Relays, normalized)
			}
		}
	}

	for _, id := range q.NIP05Authors {
		pk, relays := r.resolveNIP05(ctx, warm, id)
		insert(0, pk, relays)
	}
	for _, id := range q.NIP05PTags {
		pk, relays := r.resolveNIP05(ctx, warm, id)
		insert('p', pk, relays)
	}
	for _, id := range q.NIP05PTagsUppercase {
		pk, relays := r.resolveNIP05(ctx, warm, id)
		insert('P', pk, relays)
	}
	for _, domain := range q.DomainAuthors {
		insert(0, r.resolveDomain(ctx, warm, domain), nil)
	}
	for _, domain := range q.DomainPTags {
		insert('p', r.resolveDomain(ctx, warm, domain), nil)
	}
	for _, domain := range q.DomainPTagsUppercase {
		insert('P', r.resolveDomain(ctx, warm, domain), nil)
	}

	out.NIP05Authors = nil
	out.NIP05PTags = nil
	out.NIP05PTagsUppercase = nil
	out.DomainAuthors = nil
	out.DomainPTags = nil
	out.DomainPTagsUppercase = nil

	return out
}

// expandAliases replaces $me/$contacts literals using the account snapshot.
// Literals stay in place when no account is available; pending reports
// whether any literal remains.
func expandAliases(values []string, acct *Account) (out []string, pending bool) {
	for _, v := range values {
		switch v {
		case "$me":
			if acct != nil && acct.Pubkey != "" {
				out = appendUnique(out, strings.ToLower(acct.Pubkey))
			} else {
				out = appendUnique(out, v)
				pending = true
			}
		case "$contacts":
			if acct != nil {
				for _, contact := range acct.Contacts {
					out = appendUnique(out, strings.ToLower(contact))
				}
			} else {
				out = appendUnique(out, v)
				pending = true
			}
		default:
			out = appendUnique(out, v)
		}
	}
	return out, pending
}

// prefetch loads the cache entries for every pending bucket of q in a
// single batch read. Returns nil when there is nothing to fetch or the
// batch fails; callers then fall back to per-key reads.
func (r *Resolver) prefetch(ctx context.Context, q spell.CompiledQuery) map[string][]byte {
	if r.store == nil {
		return nil
	}

	var keys []string
	for _, ids := range [][]string{q.NIP05Authors, q.NIP05PTags, q.NIP05PTagsUppercase} {
		for _, id := range ids {
			keys = append(keys, "nip05:"+id)
		}
	}
	for _, domains := range [][]string{q.DomainAuthors, q.DomainPTags, q.DomainPTagsUppercase} {
		for _, d := range domains {
			keys = append(keys, "domain:"+d)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	warm, err := r.store.GetMultiple(ctx, keys)
	if err != nil {
		slog.Debug("cache prefetch failed", "keys", len(keys), "error", err)
		return nil
	}
	return warm
}

// resolveNIP05 resolves one user@domain (or bare domain, meaning the "_"
// root name) identifier. Returns zero or one pubkey plus relay hints.
func (r *Resolver) resolveNIP05(ctx context.Context, warm map[string][]byte, identifier string) ([]string, []string) {
	cacheKey := "nip05:" + identifier
	var cached cachedNIP05
	if r.cacheGet(ctx, warm, cacheKey, &cached) {
		if cached.NotFound {
			return nil, nil
		}
		return []string{cached.Pubkey}, cached.Relays
	}

	name, domain := "_", identifier
	if at := strings.Index(identifier, "@"); at >= 0 {
		name, domain = identifier[:at], identifier[at+1:]
	}

	doc, err := r.fetchDocument(ctx, domain, name)
	if err != nil {
		slog.Debug("nip05 resolution failed", "identifier", identifier, "error", err)
		r.cacheSet(ctx, cacheKey, cachedNIP05{NotFound: true}, r.ttls.NIP05NotFoundTTL)
		return nil, nil
	}

	pubkey, ok := doc.Names[name]
	if !ok || !isHex64(pubkey) {
		slog.Debug("nip05 name not found", "identifier", identifier)
		r.cacheSet(ctx, cacheKey, cachedNIP05{NotFound: true}, r.ttls.NIP05NotFoundTTL)
		return nil, nil
	}
	pubkey = strings.ToLower(pubkey)
	relays := normalizeRelayHints(doc.Relays[pubkey])

	r.cacheSet(ctx, cacheKey, cachedNIP05{Pubkey: pubkey, Relays: relays}, r.ttls.NIP05TTL)
	slog.Debug("nip05 resolved", "identifier", identifier, "pubkey", nostr.ShortID(pubkey), "relays", len(relays))
	return []string{pubkey}, relays
}

// resolveDomain resolves an @domain directory reference to every pubkey the
// domain lists in its nostr.json.
func (r *Resolver) resolveDomain(ctx context.Context, warm map[string][]byte, domain string) []string {
	cacheKey := "domain:" + domain
	var cached cachedDomain
	if r.cacheGet(ctx, warm, cacheKey, &cached) {
		return cached.Pubkeys
	}

	doc, err := r.fetchDocument(ctx, domain, "")
	if err != nil {
		slog.Debug("domain resolution failed", "domain", domain, "error", err)
		r.cacheSet(ctx, cacheKey, cachedDomain{NotFound: true}, r.ttls.DomainNotFoundTTL)
		return nil
	}

	var pubkeys []string
	primed := make(map[string][]byte)
	for name, pk := range doc.Names {
		if !isHex64(pk) {
			continue
		}
		pk = strings.ToLower(pk)
		pubkeys = appendUnique(pubkeys, pk)
		// The directory already names every member, so warm the
		// per-identifier entries while we have them.
		item, err := json.Marshal(cachedNIP05{Pubkey: pk, Relays: normalizeRelayHints(doc.Relays[pk])})
		if err == nil {
			primed["nip05:"+name+"@"+domain] = item
		}
	}
	// Map iteration order is random; keep directory results stable.
	sort.Strings(pubkeys)

	if len(primed) > 0 && r.store != nil {
		if err := r.store.SetMultiple(ctx, primed, r.ttls.NIP05TTL); err != nil {
			slog.Debug("nip05 priming failed", "domain", domain, "error", err)
		}
	}
	r.cacheSet(ctx, cacheKey, cachedDomain{Pubkeys: pubkeys}, r.ttls.DomainTTL)
	slog.Debug("domain resolved", "domain", domain, "pubkeys", len(pubkeys))
	return pubkeys
}

// fetchDocument fetches https://<domain>/.well-known/nostr.json, optionally
// scoped to one name. Internal/private hosts are blocked.
func (r *Resolver) fetchDocument(ctx context.Context, domain, name string) (*nip05Document, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || strings.ContainsAny(domain, "/\\") {
		return nil, fmt.Errorf("invalid domain %q", domain)
	}
	if util.IsPrivateHost(domain) {
		return nil, fmt.Errorf("domain %q is private/internal", domain)
	}

	url := fmt.Sprintf("https://%s/.well-known/nostr.json", domain)
	if name != "" {
		url += "?name=" + name
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nostr.json returned status %d", resp.StatusCode)
	}

	var doc nip05Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse nostr.json: %w", err)
	}
	return &doc, nil
}

// cacheGet reads key from the prefetched batch when present, falling back
// to a direct read. The fallback matters for entries written after the
// batch was taken, like an identifier repeated across buckets.
func (r *Resolver) cacheGet(ctx context.Context, warm map[string][]byte, key string, v interface{}) bool {
	if data, ok := warm[key]; ok {
		return json.Unmarshal(data, v) == nil
	}
	if r.store == nil {
		return false
	}
	data, found, err := r.store.Get(ctx, key)
	if err != nil || !found {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (r *Resolver) cacheSet(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if r.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.store.Set(ctx, key, data, ttl); err != nil {
		slog.Debug("cache set failed", "key", key, "error", err)
	}
}

func normalizeRelayHints(urls []string) []string {
	var out []string
	for _, relay := range urls {
		if normalized := nostr.NormalizeRelayURL(relay); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}

func setTagValues(f *nostr.Filter, letter byte, values []string) {
	if f.Tags == nil {
		if len(values) == 0 {
			return
		}
		f.Tags = make(map[byte][]string)
	}
	if len(values) == 0 {
		delete(f.Tags, letter)
		return
	}
	f.Tags[letter] = values
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
