package codec

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
)

// Address is the 20-byte payout identity of a participant, derived from
// their secp256k1 public key the same way the settlement contract derives
// it.
type Address [20]byte

// PubKeyAddress derives the address of a public key: the last 20 bytes of
// the keccak256 hash of the uncompressed public key without its prefix
// byte.
func PubKeyAddress(pub *btcec.PublicKey) Address {
	h := keccak256(pub.SerializeUncompressed()[1:])
	a := Address{}
	copy(a[:], h[len(h)-20:])
	return a
}

// KeyAddress derives the address of the public key of a signing key.
func KeyAddress(key *btcec.PrivateKey) Address {
	return PubKeyAddress(key.PubKey())
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ParseAddress parses a hex address with or without a 0x prefix.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("parsing address %q: %w", s, err)
	}
	if len(b) != len(Address{}) {
		return Address{}, fmt.Errorf("parsing address %q: length %d, want %d", s, len(b), len(Address{}))
	}
	a := Address{}
	copy(a[:], b)
	return a, nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
