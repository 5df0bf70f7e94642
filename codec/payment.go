package codec

import (
	"encoding/json"
	"fmt"
)

// PaymentRecord is the payload of a payment message: the value paid and
// the authorization binding it to the channel and recipient.
type PaymentRecord struct {
	Value int64         `json:"value"`
	Sig   Authorization `json:"sig"`
}

// EncodePayment serializes a payment record for wire transport.
func EncodePayment(p PaymentRecord) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding payment record: %w", err)
	}
	return b, nil
}

// DecodePayment parses a payment record received off the wire.
func DecodePayment(payload []byte) (PaymentRecord, error) {
	p := PaymentRecord{}
	err := json.Unmarshal(payload, &p)
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("decoding payment record: %w", err)
	}
	return p, nil
}
