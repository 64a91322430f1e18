package spell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vector from NIP-19: npub for this hex pubkey.
const (
	vectorNpub = "npub10elfcs4fr0l0r8af98jlmgdh9c8tcxjvz9qkw038js35mp4dma8qzvjptg"
	vectorHex  = "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e"

	vectorNprofile    = "nprofile1qqsrhuxx8l9ex335q7he0f09aej04zpazpl0ne2cgukyawd24mayt8gpp4mhxue69uhhytnc9e3k7mgpz4mhxue69uhkg6nzv9ejuumpv34kytnrdaksjlyr9p"
	vectorNprofileHex = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
)

func TestClassifyPubkeyValue(t *testing.T) {
	t.Run("aliases", func(t *testing.T) {
		for _, raw := range []string{"$me", "$ME", "$contacts", "$Contacts"} {
			pv := ClassifyPubkeyValue(raw)
			assert.Equal(t, PubkeyAlias, pv.Kind, raw)
		}
		assert.Equal(t, "$me", ClassifyPubkeyValue("$ME").Value)
	})

	t.Run("domain directory", func(t *testing.T) {
		pv := ClassifyPubkeyValue("@Nostr.com")
		require.Equal(t, PubkeyDomain, pv.Kind)
		assert.Equal(t, "nostr.com", pv.Value)

		assert.Equal(t, PubkeyInvalid, ClassifyPubkeyValue("@not_a_domain").Kind)
	})

	t.Run("nip05", func(t *testing.T) {
		pv := ClassifyPubkeyValue("Alice@Nostr.com")
		require.Equal(t, PubkeyNIP05, pv.Kind)
		assert.Equal(t, "alice@nostr.com", pv.Value)

		// bare domain implies the "_" root name
		pv = ClassifyPubkeyValue("nostr.com")
		assert.Equal(t, PubkeyNIP05, pv.Kind)

		pv = ClassifyPubkeyValue("_@nostr.com")
		assert.Equal(t, PubkeyNIP05, pv.Kind)
	})

	t.Run("npub decodes to hex", func(t *testing.T) {
		pv := ClassifyPubkeyValue(vectorNpub)
		require.Equal(t, PubkeyHex, pv.Kind)
		assert.Equal(t, vectorHex, pv.Value)
		assert.Empty(t, pv.RelayHints)
	})

	t.Run("nprofile carries relay hints", func(t *testing.T) {
		pv := ClassifyPubkeyValue(vectorNprofile)
		require.Equal(t, PubkeyHex, pv.Kind)
		assert.Equal(t, vectorNprofileHex, pv.Value)
		assert.Equal(t, []string{"wss://r.x.com", "wss://djbas.sadkb.com"}, pv.RelayHints)
	})

	t.Run("hex is lowercased", func(t *testing.T) {
		upper := "7E7E9C42A91BFEF19FA929E5FDA1B72E0EBC1A4C1141673E2794234D86ADDF4E"
		pv := ClassifyPubkeyValue(upper)
		require.Equal(t, PubkeyHex, pv.Kind)
		assert.Equal(t, vectorHex, pv.Value)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, raw := range []string{"", "npub1invalid", "nprofile1junk", "deadbeef", "$other", "not a key"} {
			assert.Equal(t, PubkeyInvalid, ClassifyPubkeyValue(raw).Kind, raw)
		}
	})
}

func TestClassifyEventValue(t *testing.T) {
	t.Run("raw hex id", func(t *testing.T) {
		ev := ClassifyEventValue(vectorHex)
		require.Equal(t, EventID, ev.Kind)
		assert.Equal(t, vectorHex, ev.ID)
	})

	t.Run("coordinate", func(t *testing.T) {
		ev := ClassifyEventValue("30023:" + vectorHex + ":my-article")
		require.Equal(t, EventAddress, ev.Kind)
		assert.Equal(t, "30023:"+vectorHex+":my-article", ev.Coordinate)
	})

	t.Run("coordinate pubkey is lowercased", func(t *testing.T) {
		upper := "7E7E9C42A91BFEF19FA929E5FDA1B72E0EBC1A4C1141673E2794234D86ADDF4E"
		ev := ClassifyEventValue("30023:" + upper + ":x")
		require.Equal(t, EventAddress, ev.Kind)
		assert.Equal(t, "30023:"+vectorHex+":x", ev.Coordinate)
	})

	t.Run("coordinate identifier may be empty or contain colons", func(t *testing.T) {
		ev := ClassifyEventValue("30023:" + vectorHex + ":")
		require.Equal(t, EventAddress, ev.Kind)

		ev = ClassifyEventValue("30023:" + vectorHex + ":a:b:c")
		require.Equal(t, EventAddress, ev.Kind)
		assert.Equal(t, "30023:"+vectorHex+":a:b:c", ev.Coordinate)
	})

	t.Run("coordinate kind must be numeric", func(t *testing.T) {
		assert.Equal(t, EventInvalid, ClassifyEventValue("abc:"+vectorHex+":x").Kind)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, raw := range []string{"", "nevent1junk", "naddr1junk", "note1junk", "deadbeef", "30023:nothex:x"} {
			assert.Equal(t, EventInvalid, ClassifyEventValue(raw).Kind, raw)
		}
	})
}
