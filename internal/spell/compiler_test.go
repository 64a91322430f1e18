package spell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purrgrammer/grimoire-sub000/internal/nips"
)

var testNow = time.Unix(1700000000, 0)

func encodeTestNEvent(id string) (string, error) {
	return nips.EncodeNEvent(id, nil, "")
}

func compile(t *testing.T, cmd string) CompiledQuery {
	t.Helper()
	return CompileAt(Tokenize(cmd), testNow)
}

func TestCompileBasicFlags(t *testing.T) {
	q := compile(t, "-k 1,3 -a "+vectorHex+" -t nostr,bitcoin -l 100 --since 1h relay.example.com")

	assert.Equal(t, []int{1, 3}, q.Filter.Kinds)
	assert.Equal(t, []string{vectorHex}, q.Filter.Authors)
	assert.Equal(t, []string{"nostr", "bitcoin"}, q.Filter.TagValues('t'))
	require.NotNil(t, q.Filter.Limit)
	assert.Equal(t, 100, *q.Filter.Limit)
	require.NotNil(t, q.Filter.Since)
	assert.Equal(t, testNow.Unix()-3600, *q.Filter.Since)
	assert.Equal(t, []string{"wss://relay.example.com/"}, q.Relays)
	assert.False(t, q.CloseOnEose)
	assert.False(t, q.NeedsAccount)
}

func TestCompileDeduplicates(t *testing.T) {
	t.Run("kinds", func(t *testing.T) {
		q := compile(t, "-k 1,3,1,3")
		assert.Equal(t, []int{1, 3}, q.Filter.Kinds)
	})

	t.Run("hex and npub of same key", func(t *testing.T) {
		q := compile(t, "-a "+vectorHex+" -a "+vectorNpub)
		assert.Equal(t, []string{vectorHex}, q.Filter.Authors)
	})

	t.Run("relays", func(t *testing.T) {
		q := compile(t, "relay.example.com wss://relay.example.com WSS://RELAY.EXAMPLE.COM/")
		assert.Equal(t, []string{"wss://relay.example.com/"}, q.Relays)
	})
}

func TestCompileMalformedValuesDropped(t *testing.T) {
	t.Run("bad kind in list keeps good ones", func(t *testing.T) {
		q := compile(t, "-k 1,x,-5,3")
		assert.Equal(t, []int{1, 3}, q.Filter.Kinds)
	})

	t.Run("bad pubkey in list keeps good ones", func(t *testing.T) {
		q := compile(t, "-a junk,"+vectorHex)
		assert.Equal(t, []string{vectorHex}, q.Filter.Authors)
	})

	t.Run("unknown flag dropped", func(t *testing.T) {
		q := compile(t, "--bogus -k 1")
		assert.Equal(t, []int{1}, q.Filter.Kinds)
	})

	t.Run("flag at end of input dropped", func(t *testing.T) {
		q := compile(t, "-k 1 -a")
		assert.Equal(t, []int{1}, q.Filter.Kinds)
		assert.Empty(t, q.Filter.Authors)
	})

	t.Run("negative limit dropped", func(t *testing.T) {
		q := compile(t, "-l -5")
		assert.Nil(t, q.Filter.Limit)
	})

	t.Run("bad since dropped", func(t *testing.T) {
		q := compile(t, "--since yesterday -k 1")
		assert.Nil(t, q.Filter.Since)
		assert.Equal(t, []int{1}, q.Filter.Kinds)
	})
}

func TestCompileRelayTokensWinOverValues(t *testing.T) {
	// A relay-shaped token following a flag joins the relay list and the
	// flag is dropped.
	q := compile(t, "-a relay.example.com -k 1")
	assert.Empty(t, q.Filter.Authors)
	assert.Empty(t, q.NIP05Authors)
	assert.Equal(t, []string{"wss://relay.example.com/"}, q.Relays)
	assert.Equal(t, []int{1}, q.Filter.Kinds)
}

func TestCompileResolutionBuckets(t *testing.T) {
	q := compile(t, "-a alice@nostr.com,@nostr.com -p bob@example.org -P @example.org")

	assert.Equal(t, []string{"alice@nostr.com"}, q.NIP05Authors)
	assert.Equal(t, []string{"nostr.com"}, q.DomainAuthors)
	assert.Equal(t, []string{"bob@example.org"}, q.NIP05PTags)
	assert.Equal(t, []string{"example.org"}, q.DomainPTagsUppercase)
	assert.True(t, q.HasPendingResolution())
	assert.Empty(t, q.Filter.Authors)
}

func TestCompileAliases(t *testing.T) {
	q := compile(t, "-a $me -p $contacts")
	assert.Equal(t, []string{"$me"}, q.Filter.Authors)
	assert.Equal(t, []string{"$contacts"}, q.Filter.TagValues('p'))
	assert.True(t, q.NeedsAccount)
}

func TestCompileEventRefs(t *testing.T) {
	id2 := "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	coord := "30023:" + vectorHex + ":post"

	t.Run("-e routes ids to #e and coordinates to #a", func(t *testing.T) {
		q := compile(t, "-e "+id2+",'"+coord+"'")
		assert.Equal(t, []string{id2}, q.Filter.TagValues('e'))
		assert.Equal(t, []string{coord}, q.Filter.TagValues('a'))
	})

	t.Run("-i routes ids to ids and rejects coordinates", func(t *testing.T) {
		q := compile(t, "-i "+id2+","+coord)
		assert.Equal(t, []string{id2}, q.Filter.IDs)
		assert.Empty(t, q.Filter.TagValues('a'))
	})

	t.Run("nevent goes by flag destination", func(t *testing.T) {
		nevent, err := encodeTestNEvent(id2)
		require.NoError(t, err)

		q := compile(t, "-e "+nevent)
		assert.Equal(t, []string{id2}, q.Filter.TagValues('e'))

		q = compile(t, "-i "+nevent)
		assert.Equal(t, []string{id2}, q.Filter.IDs)
	})
}

func TestCompileGenericTagFlag(t *testing.T) {
	t.Run("valid letter", func(t *testing.T) {
		q := compile(t, "-T r wss://relay.example.com/feed")
		// the value is relay-shaped, claimed by the relay list
		assert.Empty(t, q.Filter.TagValues('r'))

		q = compile(t, "-T g u1h2")
		assert.Equal(t, []string{"u1h2"}, q.Filter.TagValues('g'))
	})

	t.Run("multi-character letter invalidates flag", func(t *testing.T) {
		q := compile(t, "-T xyz value -k 1")
		assert.Empty(t, q.Filter.Tags)
		assert.Equal(t, []int{1}, q.Filter.Kinds)
	})
}

func TestCompileSearchAndModes(t *testing.T) {
	q := compile(t, `--search "hello world" --close-on-eose --follow`)
	assert.Equal(t, "hello world", q.Filter.Search)
	assert.True(t, q.CloseOnEose)
	assert.True(t, q.Follow)
}

func TestCompileNeverFails(t *testing.T) {
	// Pathological input compiles to an empty query rather than erroring.
	q := compile(t, "-a -k -e --since -T")
	assert.False(t, q.Filter.HasConstraints())
	assert.False(t, q.HasPendingResolution())
}

func TestCompileNprofileAddsRelayHints(t *testing.T) {
	q := compile(t, "-a "+vectorNprofile)
	assert.Equal(t, []string{vectorNprofileHex}, q.Filter.Authors)
	assert.Equal(t, []string{"wss://r.x.com/", "wss://djbas.sadkb.com/"}, q.Relays)
}
