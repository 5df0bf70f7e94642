package codec

import (
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify_roundTrip(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	recipientKey, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	recipient := KeyAddress(recipientKey)

	auth, err := Sign(7, recipient, 150, key)
	require.NoError(t, err)

	assert.True(t, Verify(7, KeyAddress(key), recipient, 150, auth))

	signer, err := RecoverSigner(7, recipient, 150, auth)
	require.NoError(t, err)
	assert.Equal(t, KeyAddress(key), signer)
}

func TestSign_deterministic(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	recipient := KeyAddress(key)

	auth1, err := Sign(1, recipient, 10, key)
	require.NoError(t, err)
	auth2, err := Sign(1, recipient, 10, key)
	require.NoError(t, err)
	assert.Equal(t, auth1, auth2)
}

func TestVerify_tamperedTuple(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	otherKey, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	recipient := KeyAddress(otherKey)
	signer := KeyAddress(key)

	auth, err := Sign(42, recipient, 1000, key)
	require.NoError(t, err)
	require.True(t, Verify(42, signer, recipient, 1000, auth))

	// Altering any one field of the signed tuple must fail verification.
	assert.False(t, Verify(43, signer, recipient, 1000, auth))
	assert.False(t, Verify(42, signer, signer, 1000, auth))
	assert.False(t, Verify(42, signer, recipient, 1001, auth))
	assert.False(t, Verify(42, recipient, recipient, 1000, auth))

	corrupted := auth
	corrupted.S[31] ^= 0x01
	assert.False(t, Verify(42, signer, recipient, 1000, corrupted))
}

func TestSign_negativeValue(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	_, err = Sign(1, KeyAddress(key), -1, key)
	require.Error(t, err)
}

func TestAuthorization_jsonRoundTrip(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	auth, err := Sign(9, KeyAddress(key), 25, key)
	require.NoError(t, err)

	b, err := json.Marshal(auth)
	require.NoError(t, err)

	back := Authorization{}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, auth, back)
}

func TestAuthorization_jsonRoundTripFuzzed(t *testing.T) {
	f := fuzz.New()
	for i := 0; i < 100; i++ {
		auth := Authorization{}
		f.Fuzz(&auth)

		b, err := json.Marshal(auth)
		require.NoError(t, err)
		back := Authorization{}
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, auth, back)
	}
}

func TestPaymentRecord_wireFormat(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	auth, err := Sign(3, KeyAddress(key), 15, key)
	require.NoError(t, err)

	b, err := EncodePayment(PaymentRecord{Value: 15, Sig: auth})
	require.NoError(t, err)

	// The wire form is the contract-facing shape: value plus the split
	// v, r, s signature components.
	fields := struct {
		Value int64 `json:"value"`
		Sig   struct {
			V int    `json:"v"`
			R string `json:"r"`
			S string `json:"s"`
		} `json:"sig"`
	}{}
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.Equal(t, int64(15), fields.Value)
	assert.Contains(t, []int{27, 28}, fields.Sig.V)
	assert.Len(t, fields.Sig.R, 66)
	assert.Len(t, fields.Sig.S, 66)

	back, err := DecodePayment(b)
	require.NoError(t, err)
	assert.Equal(t, PaymentRecord{Value: 15, Sig: auth}, back)
}

func TestDecodePayment_malformed(t *testing.T) {
	_, err := DecodePayment([]byte("{not json"))
	require.Error(t, err)
}

func TestAddress_parseRoundTrip(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	addr := KeyAddress(key)

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	parsed, err = ParseAddress(addr.String()[2:])
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("zz")
	require.Error(t, err)
}
