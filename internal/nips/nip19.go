package nips

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

// NEvent represents a decoded nevent1... identifier
type NEvent struct {
	EventID    string   // 32-byte event ID as hex
	Author     string   // Optional 32-byte author pubkey as hex
	RelayHints []string // Optional relay URLs
}

// NAddr represents a decoded naddr1... identifier
type NAddr struct {
	Kind       uint32   // Event kind
	Author     string   // 32-byte author pubkey as hex
	DTag       string   // d-tag identifier
	RelayHints []string // Optional relay URLs
}

// NProfile represents a decoded nprofile1... identifier
type NProfile struct {
	Pubkey     string   // 32-byte pubkey as hex
	RelayHints []string // Optional relay URLs
}

// Coordinate returns the kind:pubkey:identifier address string for the naddr.
func (n *NAddr) Coordinate() string {
	var b strings.Builder
	b.WriteString(uitoa(n.Kind))
	b.WriteByte(':')
	b.WriteString(strings.ToLower(n.Author))
	b.WriteByte(':')
	b.WriteString(n.DTag)
	return b.String()
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// TLV type constants for NIP-19
const (
	tlvTypeSpecial = 0 // event_id for nevent, pubkey for nprofile, d-tag for naddr
	tlvTypeRelay   = 1 // relay URL
	tlvTypeAuthor  = 2 // author pubkey
	tlvTypeKind    = 3 // kind (for naddr)
)

// DecodePubkey decodes an npub1... bech32 string to a hex pubkey
func DecodePubkey(npub string) (string, error) {
	hrp, data, err := Bech32Decode(npub)
	if err != nil {
		return "", err
	}
	if hrp != "npub" {
		return "", errors.New("not an npub")
	}

	pubkeyBytes, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	if len(pubkeyBytes) != 32 {
		return "", errors.New("invalid npub length")
	}

	return hex.EncodeToString(pubkeyBytes), nil
}

// DecodeNote decodes a note1... bech32 string to an event ID
func DecodeNote(note string) (string, error) {
	hrp, data, err := Bech32Decode(note)
	if err != nil {
		return "", err
	}
	if hrp != "note" {
		return "", errors.New("not a note")
	}

	eventIDBytes, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	if len(eventIDBytes) != 32 {
		return "", errors.New("invalid note length")
	}

	return hex.EncodeToString(eventIDBytes), nil
}

// DecodeNEvent decodes a nevent1... bech32 string
func DecodeNEvent(nevent string) (*NEvent, error) {
	hrp, data, err := Bech32Decode(nevent)
	if err != nil {
		return nil, err
	}
	if hrp != "nevent" {
		return nil, errors.New("not a nevent")
	}

	tlvBytes, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}

	return decodeNEventTLV(tlvBytes)
}

// DecodeNAddr decodes a naddr1... bech32 string
func DecodeNAddr(naddr string) (*NAddr, error) {
	hrp, data, err := Bech32Decode(naddr)
	if err != nil {
		return nil, err
	}
	if hrp != "naddr" {
		return nil, errors.New("not a naddr")
	}

	tlvBytes, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}

	return decodeNAddrTLV(tlvBytes)
}

// DecodeNProfile decodes a nprofile1... bech32 string
func DecodeNProfile(nprofile string) (*NProfile, error) {
	hrp, data, err := Bech32Decode(nprofile)
	if err != nil {
		return nil, err
	}
	if hrp != "nprofile" {
		return nil, errors.New("not a nprofile")
	}

	tlvBytes, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}

	return decodeNProfileTLV(tlvBytes)
}

func decodeNEventTLV(data []byte) (*NEvent, error) {
	n := &NEvent{RelayHints: []string{}}

	for i := 0; i < len(data); {
		if i+2 > len(data) {
			break
		}

		tlvType := data[i]
		tlvLen := int(data[i+1])
		i += 2

		if i+tlvLen > len(data) {
			break
		}

		value := data[i : i+tlvLen]
		i += tlvLen

		switch tlvType {
		case tlvTypeSpecial: // event_id
			if tlvLen == 32 {
				n.EventID = hex.EncodeToString(value)
			}
		case tlvTypeRelay:
			n.RelayHints = append(n.RelayHints, string(value))
		case tlvTypeAuthor:
			if tlvLen == 32 {
				n.Author = hex.EncodeToString(value)
			}
		}
	}

	if n.EventID == "" {
		return nil, errors.New("nevent missing event ID")
	}

	return n, nil
}

func decodeNAddrTLV(data []byte) (*NAddr, error) {
	n := &NAddr{RelayHints: []string{}}
	hasKind := false
	hasAuthor := false

	for i := 0; i < len(data); {
		if i+2 > len(data) {
			break
		}

		tlvType := data[i]
		tlvLen := int(data[i+1])
		i += 2

		if i+tlvLen > len(data) {
			break
		}

		value := data[i : i+tlvLen]
		i += tlvLen

		switch tlvType {
		case tlvTypeSpecial: // d-tag
			n.DTag = string(value)
		case tlvTypeRelay:
			n.RelayHints = append(n.RelayHints, string(value))
		case tlvTypeAuthor:
			if tlvLen == 32 {
				n.Author = hex.EncodeToString(value)
				hasAuthor = true
			}
		case tlvTypeKind:
			if tlvLen == 4 {
				n.Kind = binary.BigEndian.Uint32(value)
				hasKind = true
			}
		}
	}

	if !hasKind || !hasAuthor {
		return nil, errors.New("naddr missing required fields")
	}

	return n, nil
}

func decodeNProfileTLV(data []byte) (*NProfile, error) {
	n := &NProfile{RelayHints: []string{}}

	for i := 0; i < len(data); {
		if i+2 > len(data) {
			break
		}

		tlvType := data[i]
		tlvLen := int(data[i+1])
		i += 2

		if i+tlvLen > len(data) {
			break
		}

		value := data[i : i+tlvLen]
		i += tlvLen

		switch tlvType {
		case tlvTypeSpecial: // pubkey
			if tlvLen == 32 {
				n.Pubkey = hex.EncodeToString(value)
			}
		case tlvTypeRelay:
			n.RelayHints = append(n.RelayHints, string(value))
		}
	}

	if n.Pubkey == "" {
		return nil, errors.New("nprofile missing pubkey")
	}

	return n, nil
}

// EncodePubkey encodes a hex pubkey to npub format
func EncodePubkey(hexPubkey string) (string, error) {
	pubkeyBytes, err := hex.DecodeString(hexPubkey)
	if err != nil {
		return "", err
	}
	if len(pubkeyBytes) != 32 {
		return "", errors.New("invalid pubkey length")
	}

	data, err := Bech32ConvertBits(pubkeyBytes, 8, 5, true)
	if err != nil {
		return "", err
	}

	return Bech32Encode("npub", data)
}

// EncodeEventID encodes a hex event ID to note format
func EncodeEventID(hexEventID string) (string, error) {
	eventIDBytes, err := hex.DecodeString(hexEventID)
	if err != nil {
		return "", err
	}
	if len(eventIDBytes) != 32 {
		return "", errors.New("invalid event ID length")
	}

	data, err := Bech32ConvertBits(eventIDBytes, 8, 5, true)
	if err != nil {
		return "", err
	}

	return Bech32Encode("note", data)
}

// EncodeNProfile encodes a hex pubkey plus relay hints to nprofile format
func EncodeNProfile(pubkeyHex string, relays []string) (string, error) {
	pubkeyBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return "", err
	}
	if len(pubkeyBytes) != 32 {
		return "", errors.New("invalid pubkey length")
	}

	var tlvData []byte
	tlvData = append(tlvData, tlvTypeSpecial, 32)
	tlvData = append(tlvData, pubkeyBytes...)
	tlvData = appendRelayTLVs(tlvData, relays)

	data5bit, err := Bech32ConvertBits(tlvData, 8, 5, true)
	if err != nil {
		return "", err
	}

	return Bech32Encode("nprofile", data5bit)
}

// EncodeNEvent encodes a hex event ID plus relay hints to nevent format
func EncodeNEvent(eventIDHex string, relays []string, authorHex string) (string, error) {
	eventIDBytes, err := hex.DecodeString(eventIDHex)
	if err != nil {
		return "", err
	}
	if len(eventIDBytes) != 32 {
		return "", errors.New("invalid event ID length")
	}

	var tlvData []byte
	tlvData = append(tlvData, tlvTypeSpecial, 32)
	tlvData = append(tlvData, eventIDBytes...)
	tlvData = appendRelayTLVs(tlvData, relays)

	if authorHex != "" {
		authorBytes, err := hex.DecodeString(authorHex)
		if err != nil || len(authorBytes) != 32 {
			return "", errors.New("invalid author pubkey")
		}
		tlvData = append(tlvData, tlvTypeAuthor, 32)
		tlvData = append(tlvData, authorBytes...)
	}

	data5bit, err := Bech32ConvertBits(tlvData, 8, 5, true)
	if err != nil {
		return "", err
	}

	return Bech32Encode("nevent", data5bit)
}

// EncodeNAddr encodes an naddr from kind, pubkey (hex), d-tag and relay hints
func EncodeNAddr(kind uint32, pubkeyHex string, dTag string, relays []string) (string, error) {
	pubkeyBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return "", err
	}
	if len(pubkeyBytes) != 32 {
		return "", errors.New("invalid pubkey length")
	}

	// D-tag (type 0/special): variable length - must be first per NIP-19
	var tlvData []byte
	dTagBytes := []byte(dTag)
	tlvData = append(tlvData, tlvTypeSpecial, byte(len(dTagBytes)))
	tlvData = append(tlvData, dTagBytes...)

	tlvData = appendRelayTLVs(tlvData, relays)

	tlvData = append(tlvData, tlvTypeAuthor, 32)
	tlvData = append(tlvData, pubkeyBytes...)

	kindBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(kindBytes, kind)
	tlvData = append(tlvData, tlvTypeKind, 4)
	tlvData = append(tlvData, kindBytes...)

	data5bit, err := Bech32ConvertBits(tlvData, 8, 5, true)
	if err != nil {
		return "", err
	}

	return Bech32Encode("naddr", data5bit)
}

func appendRelayTLVs(tlvData []byte, relays []string) []byte {
	for _, relay := range relays {
		relayBytes := []byte(relay)
		if len(relayBytes) == 0 || len(relayBytes) > 255 {
			continue
		}
		tlvData = append(tlvData, tlvTypeRelay, byte(len(relayBytes)))
		tlvData = append(tlvData, relayBytes...)
	}
	return tlvData
}
