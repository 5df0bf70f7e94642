// Package ledger gatekeeps inbound payments for a channel. It tracks the
// single most recent accepted payment and enforces the channel's
// authorization, funding, monotonicity, and increment policy.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/offchain/paych/codec"
	"github.com/offchain/paych/settle"
)

var (
	// ErrInvalidAuthorization indicates the payment's signature does not
	// verify for the expected signer.
	ErrInvalidAuthorization = errors.New("payment authorization invalid")

	// ErrUnderfunded indicates the payment value exceeds the channel's
	// escrowed balance.
	ErrUnderfunded = errors.New("channel has insufficient escrowed funds")

	// ErrNonMonotonic indicates the payment does not strictly exceed the
	// last accepted payment.
	ErrNonMonotonic = errors.New("payment does not exceed last accepted payment")

	// ErrIncrementTooLow indicates the payment exceeds the last accepted
	// payment by less than the channel's increment policy.
	ErrIncrementTooLow = errors.New("payment increment below policy")

	// ErrBelowBase indicates the first payment is below the channel's base
	// policy.
	ErrBelowBase = errors.New("first payment below policy base")
)

// Policy is the minimum first payment and the minimum increment between
// successive payments on a channel.
type Policy struct {
	Base      int64
	Increment int64
}

// Payment is an accepted payment: its value and the authorization that
// binds it to the channel.
type Payment struct {
	Value int64
	Auth  codec.Authorization
}

// Ledger evaluates candidate payments for a single channel instance.
// It is not safe for concurrent use; the session owning it serializes
// access.
type Ledger struct {
	policy   Policy
	verifier settle.Verifier
	balances settle.BalanceCollector
	last     Payment
	haveLast bool
	accepted int
}

// NewLedger constructs a ledger enforcing the given policy, verifying
// authorizations with verifier and funding with balances.
func NewLedger(policy Policy, verifier settle.Verifier, balances settle.BalanceCollector) *Ledger {
	return &Ledger{
		policy:   policy,
		verifier: verifier,
		balances: balances,
	}
}

// Evaluate accepts or rejects a candidate payment paying recipient on the
// given channel. A nil return means the candidate was
// accepted and is now the last accepted payment. A rejection is returned
// as one of the sentinel errors in this package and leaves the last
// accepted payment untouched.
//
// The checks run in a fixed order so rejections are deterministic:
// authorization, funding, monotonicity, increment, base. Funding is
// checked before history because it is contract-verifiable independent of
// this ledger's state.
func (l *Ledger) Evaluate(ctx context.Context, channelID uint64, recipient codec.Address, candidate Payment) error {
	ok, err := l.verifier.Verify(ctx, channelID, recipient, candidate.Value, candidate.Auth)
	if err != nil {
		return fmt.Errorf("verifying payment of %d on channel %d: %w", candidate.Value, channelID, err)
	}
	if !ok {
		return ErrInvalidAuthorization
	}

	escrow, err := l.balances.ChannelValue(ctx, channelID)
	if err != nil {
		return fmt.Errorf("getting escrow balance of channel %d: %w", channelID, err)
	}
	if candidate.Value > escrow {
		return fmt.Errorf("payment of %d over escrow of %d: %w", candidate.Value, escrow, ErrUnderfunded)
	}

	if l.haveLast {
		if candidate.Value <= l.last.Value {
			return fmt.Errorf("payment of %d after %d: %w", candidate.Value, l.last.Value, ErrNonMonotonic)
		}
		if candidate.Value-l.last.Value < l.policy.Increment {
			return fmt.Errorf("payment of %d after %d with increment policy %d: %w", candidate.Value, l.last.Value, l.policy.Increment, ErrIncrementTooLow)
		}
	} else if candidate.Value < l.policy.Base {
		return fmt.Errorf("payment of %d with base policy %d: %w", candidate.Value, l.policy.Base, ErrBelowBase)
	}

	l.last = candidate
	l.haveLast = true
	l.accepted++
	return nil
}

// Last returns the most recent accepted payment, if any.
func (l *Ledger) Last() (Payment, bool) {
	return l.last, l.haveLast
}

// Count returns the number of payments accepted over the ledger's
// lifetime.
func (l *Ledger) Count() int {
	return l.accepted
}
