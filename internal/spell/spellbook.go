package spell

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Spell is a saved query: a name, a req/count marker, and the command
// string it replays.
type Spell struct {
	Name      string `toml:"name"`
	Type      string `toml:"type"`
	Command   string `toml:"command"`
	CreatedAt int64  `toml:"created_at"`
}

// Spellbook is the on-disk collection of saved spells.
type Spellbook struct {
	path string

	Spells []Spell `toml:"spells"`
}

// LoadSpellbook reads the spellbook at path. A missing file yields an empty
// book bound to that path.
func LoadSpellbook(path string) (*Spellbook, error) {
	book := &Spellbook{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return book, nil
		}
		return nil, fmt.Errorf("read spellbook: %w", err)
	}

	if err := toml.Unmarshal(data, book); err != nil {
		return nil, fmt.Errorf("parse spellbook: %w", err)
	}
	return book, nil
}

// Save writes the book back to its path, creating parent directories.
func (b *Spellbook) Save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create spellbook dir: %w", err)
	}

	data, err := toml.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode spellbook: %w", err)
	}

	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write spellbook: %w", err)
	}
	return nil
}

// Put adds a spell, replacing any existing spell of the same name.
func (b *Spellbook) Put(s Spell) {
	for i := range b.Spells {
		if b.Spells[i].Name == s.Name {
			b.Spells[i] = s
			return
		}
	}
	b.Spells = append(b.Spells, s)
}

// Get returns the spell with the given name.
func (b *Spellbook) Get(name string) (Spell, bool) {
	for _, s := range b.Spells {
		if s.Name == name {
			return s, true
		}
	}
	return Spell{}, false
}

// Remove deletes the spell with the given name, reporting whether it existed.
func (b *Spellbook) Remove(name string) bool {
	for i := range b.Spells {
		if b.Spells[i].Name == name {
			b.Spells = append(b.Spells[:i], b.Spells[i+1:]...)
			return true
		}
	}
	return false
}

// List returns spells sorted by name.
func (b *Spellbook) List() []Spell {
	out := make([]Spell, len(b.Spells))
	copy(out, b.Spells)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Decode parses the spell's stored type marker and command. An unrecognized
// type marker is a hard error, matching DecodeTags.
func (s Spell) Decode() (QueryType, CompiledQuery, error) {
	switch QueryType(s.Type) {
	case QueryReq, QueryCount:
	default:
		return "", CompiledQuery{}, fmt.Errorf("spell %q: unrecognized type marker %q", s.Name, s.Type)
	}
	return QueryType(s.Type), Compile(Tokenize(s.Command)), nil
}

// EventTags returns the tags for publishing this spell as a kind 31777
// parameterized-replaceable event.
func (s Spell) EventTags() [][]string {
	q := Compile(Tokenize(s.Command))
	tags := [][]string{{"d", s.Name}}
	return append(tags, EncodeTags(QueryType(s.Type), q)...)
}
