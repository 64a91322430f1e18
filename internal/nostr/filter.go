package nostr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Filter is a NIP-01 subscription filter. Array fields hold deduplicated
// values in first-seen order; a field is serialized only when it is
// non-empty (arrays) or defined (scalars).
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	// Tags maps a single-letter tag name ('e', 'p', 'P', 't', ...) to its
	// value list. Keys are restricted to ASCII letters via AddTag.
	Tags   map[byte][]string
	Since  *int64
	Until  *int64
	Limit  *int
	Search string
}

// IsTagLetter reports whether b is a valid single-letter tag name.
func IsTagLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// AddID appends an event ID if not already present.
func (f *Filter) AddID(id string) {
	f.IDs = appendUnique(f.IDs, id)
}

// AddAuthor appends a pubkey if not already present.
func (f *Filter) AddAuthor(pubkey string) {
	f.Authors = appendUnique(f.Authors, pubkey)
}

// AddKind appends a kind if not already present.
func (f *Filter) AddKind(kind int) {
	for _, k := range f.Kinds {
		if k == kind {
			return
		}
	}
	f.Kinds = append(f.Kinds, kind)
}

// AddTag appends a value to the given tag letter's list if not already
// present. Non-letter tag names are ignored.
func (f *Filter) AddTag(letter byte, value string) {
	if !IsTagLetter(letter) {
		return
	}
	if f.Tags == nil {
		f.Tags = make(map[byte][]string)
	}
	f.Tags[letter] = appendUnique(f.Tags[letter], value)
}

// TagValues returns the value list for a tag letter (nil if unset).
func (f *Filter) TagValues(letter byte) []string {
	if f.Tags == nil {
		return nil
	}
	return f.Tags[letter]
}

// HasConstraints reports whether the filter narrows the query at all.
// A filter without constraints would ask relays for everything; callers
// persisting or executing a query must reject it.
func (f *Filter) HasConstraints() bool {
	if len(f.IDs) > 0 || len(f.Authors) > 0 || len(f.Kinds) > 0 {
		return true
	}
	for _, vs := range f.Tags {
		if len(vs) > 0 {
			return true
		}
	}
	return f.Since != nil || f.Until != nil || f.Limit != nil || f.Search != ""
}

// Clone returns a deep copy of the filter.
func (f Filter) Clone() Filter {
	out := f
	out.IDs = append([]string(nil), f.IDs...)
	out.Authors = append([]string(nil), f.Authors...)
	out.Kinds = append([]int(nil), f.Kinds...)
	if f.Tags != nil {
		out.Tags = make(map[byte][]string, len(f.Tags))
		for letter, values := range f.Tags {
			out.Tags[letter] = append([]string(nil), values...)
		}
	}
	if f.Since != nil {
		v := *f.Since
		out.Since = &v
	}
	if f.Until != nil {
		v := *f.Until
		out.Until = &v
	}
	if f.Limit != nil {
		v := *f.Limit
		out.Limit = &v
	}
	return out
}

// MarshalJSON serializes the filter in NIP-01 wire shape, with tag filters
// as "#<letter>" keys. Empty fields are omitted.
func (f Filter) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{})
	if len(f.IDs) > 0 {
		obj["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		obj["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		obj["kinds"] = f.Kinds
	}
	for letter, values := range f.Tags {
		if len(values) > 0 {
			obj["#"+string(letter)] = values
		}
	}
	if f.Since != nil {
		obj["since"] = *f.Since
	}
	if f.Until != nil {
		obj["until"] = *f.Until
	}
	if f.Limit != nil {
		obj["limit"] = *f.Limit
	}
	if f.Search != "" {
		obj["search"] = f.Search
	}
	return json.Marshal(obj)
}

// UnmarshalJSON parses a NIP-01 wire filter, including "#<letter>" tag keys.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Filter{}
	for key, val := range raw {
		switch key {
		case "ids":
			if err := json.Unmarshal(val, &f.IDs); err != nil {
				return fmt.Errorf("filter ids: %w", err)
			}
		case "authors":
			if err := json.Unmarshal(val, &f.Authors); err != nil {
				return fmt.Errorf("filter authors: %w", err)
			}
		case "kinds":
			if err := json.Unmarshal(val, &f.Kinds); err != nil {
				return fmt.Errorf("filter kinds: %w", err)
			}
		case "since":
			var v int64
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("filter since: %w", err)
			}
			f.Since = &v
		case "until":
			var v int64
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("filter until: %w", err)
			}
			f.Until = &v
		case "limit":
			var v int
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("filter limit: %w", err)
			}
			f.Limit = &v
		case "search":
			if err := json.Unmarshal(val, &f.Search); err != nil {
				return fmt.Errorf("filter search: %w", err)
			}
		default:
			if strings.HasPrefix(key, "#") && len(key) == 2 && IsTagLetter(key[1]) {
				var values []string
				if err := json.Unmarshal(val, &values); err != nil {
					return fmt.Errorf("filter %s: %w", key, err)
				}
				for _, v := range values {
					f.AddTag(key[1], v)
				}
			}
			// Unknown keys are ignored, same as relays do.
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
