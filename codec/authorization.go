package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Authorization is a recoverable signature over a payment tuple, split
// into the components the settlement contract's claim operation takes.
type Authorization struct {
	V byte
	R [32]byte
	S [32]byte
}

// compact rebuilds the 65-byte compact signature form, recovery byte
// first.
func (a Authorization) compact() []byte {
	sig := make([]byte, 65)
	sig[0] = a.V
	copy(sig[1:33], a.R[:])
	copy(sig[33:], a.S[:])
	return sig
}

func authorizationFromCompact(sig []byte) (Authorization, error) {
	if len(sig) != 65 {
		return Authorization{}, fmt.Errorf("compact signature length %d, want 65", len(sig))
	}
	a := Authorization{V: sig[0]}
	copy(a.R[:], sig[1:33])
	copy(a.S[:], sig[33:])
	return a, nil
}

// authorizationJSON is the wire form. R and S are hex encoded in full so
// the signature round-trips byte-exactly.
type authorizationJSON struct {
	V int    `json:"v"`
	R string `json:"r"`
	S string `json:"s"`
}

func (a Authorization) MarshalJSON() ([]byte, error) {
	return json.Marshal(authorizationJSON{
		V: int(a.V),
		R: "0x" + hex.EncodeToString(a.R[:]),
		S: "0x" + hex.EncodeToString(a.S[:]),
	})
}

func (a *Authorization) UnmarshalJSON(data []byte) error {
	aj := authorizationJSON{}
	err := json.Unmarshal(data, &aj)
	if err != nil {
		return err
	}
	if aj.V < 0 || aj.V > 255 {
		return fmt.Errorf("authorization v %d out of range", aj.V)
	}
	r, err := decodeWord(aj.R)
	if err != nil {
		return fmt.Errorf("authorization r: %w", err)
	}
	s, err := decodeWord(aj.S)
	if err != nil {
		return fmt.Errorf("authorization s: %w", err)
	}
	a.V = byte(aj.V)
	a.R = r
	a.S = s
	return nil
}

func decodeWord(s string) ([32]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return [32]byte{}, err
	}
	if len(b) != 32 {
		return [32]byte{}, fmt.Errorf("length %d, want 32", len(b))
	}
	w := [32]byte{}
	copy(w[:], b)
	return w, nil
}
