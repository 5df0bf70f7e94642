// Package codec produces and verifies the cryptographic authorization
// attached to every off-chain payment.
//
// A payment is the tuple (channelID, recipient, value). Its digest and
// signature scheme mirror the settlement contract's verification exactly:
// keccak256 over the packed tuple, wrapped in the signed-message prefix,
// signed with a recoverable secp256k1 signature. Any divergence from the
// contract's semantics here is a defect, not a policy choice.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"golang.org/x/crypto/sha3"
)

// signedMessagePrefix is prepended to the 32-byte payment digest before
// signing, mirroring the contract's recover semantics.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// PaymentDigest returns the keccak256 digest of the packed payment tuple:
// channelID as a 32-byte big-endian word, the 20-byte recipient, and value
// as a 32-byte big-endian word.
func PaymentDigest(channelID uint64, recipient Address, value int64) [32]byte {
	packed := make([]byte, 0, 32+20+32)
	word := [32]byte{}
	binary.BigEndian.PutUint64(word[24:], channelID)
	packed = append(packed, word[:]...)
	packed = append(packed, recipient[:]...)
	word = [32]byte{}
	binary.BigEndian.PutUint64(word[24:], uint64(value))
	packed = append(packed, word[:]...)

	digest := [32]byte{}
	copy(digest[:], keccak256(packed))
	return digest
}

func sigHash(channelID uint64, recipient Address, value int64) []byte {
	digest := PaymentDigest(channelID, recipient, value)
	return keccak256([]byte(signedMessagePrefix), digest[:])
}

// Sign authorizes the payment tuple with the given signing key. The
// returned authorization is deterministic for a given key and tuple.
func Sign(channelID uint64, recipient Address, value int64, key *btcec.PrivateKey) (Authorization, error) {
	if value < 0 {
		return Authorization{}, fmt.Errorf("signing payment: negative value %d", value)
	}
	compact, err := btcec.SignCompact(btcec.S256(), key, sigHash(channelID, recipient, value), false)
	if err != nil {
		return Authorization{}, fmt.Errorf("signing payment value %d on channel %d: %w", value, channelID, err)
	}
	return authorizationFromCompact(compact)
}

// RecoverSigner recovers the address that authorized the payment tuple.
func RecoverSigner(channelID uint64, recipient Address, value int64, auth Authorization) (Address, error) {
	pub, _, err := btcec.RecoverCompact(btcec.S256(), auth.compact(), sigHash(channelID, recipient, value))
	if err != nil {
		return Address{}, fmt.Errorf("recovering payment signer: %w", err)
	}
	return PubKeyAddress(pub), nil
}

// Verify reports whether auth is signer's authorization of the payment
// tuple. Pure, no side effects.
func Verify(channelID uint64, signer Address, recipient Address, value int64, auth Authorization) bool {
	recovered, err := RecoverSigner(channelID, recipient, value, auth)
	if err != nil {
		return false
	}
	return recovered == signer
}
