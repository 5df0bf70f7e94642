package channel

import (
	"github.com/offchain/paych/codec"
	"github.com/offchain/paych/ledger"
)

// ErrorEvent occurs when an error has occurred, and contains the error
// occurred.
type ErrorEvent struct {
	SessionID string
	Err       error
}

// SetupReceivedEvent occurs on the payer when the beneficiary announces
// itself and its payout identity.
type SetupReceivedEvent struct {
	SessionID string
	Recipient codec.Address
}

// OpenedEvent occurs when the on-chain channel is confirmed and the
// session enters the open payment loop.
type OpenedEvent struct {
	SessionID string
	ChannelID uint64
}

// DeliveredEvent occurs on the beneficiary when a payload has been sent
// to the payer.
type DeliveredEvent struct {
	SessionID string
	Payload   []byte
}

// PaymentSentEvent occurs on the payer when a signed payment has been
// published.
type PaymentSentEvent struct {
	SessionID string
	Value     int64
}

// PaymentReceivedEvent occurs on the beneficiary when a payment has been
// verified and accepted by the ledger.
type PaymentReceivedEvent struct {
	SessionID string
	Payment   ledger.Payment
}

// PaymentRejectedEvent occurs on the beneficiary when an inbound payment
// was rejected. The session stays open.
type PaymentRejectedEvent struct {
	SessionID string
	Reason    error
	Payment   ledger.Payment
}

// DoneEvent occurs when the beneficiary has no further payloads to
// deliver.
type DoneEvent struct {
	SessionID string
}

// CancelledEvent occurs when the session has been cancelled and its
// subscriptions torn down.
type CancelledEvent struct {
	SessionID string
}

// RedeemedEvent occurs on the beneficiary when the settlement contract
// accepted the final payment claim.
type RedeemedEvent struct {
	SessionID string
	Value     int64
}
