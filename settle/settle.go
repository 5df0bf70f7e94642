// Package settle declares the narrow interfaces the protocol consumes
// from the on-chain settlement contract. The contract holds the escrowed
// funds, verifies the final signed payment, and releases funds on
// redemption; everything here is a thin client boundary around those
// operations.
package settle

import (
	"context"

	"github.com/offchain/paych/codec"
)

// CreatedChannel is the confirmation emitted by the contract once a
// channel has been created on chain.
type CreatedChannel struct {
	ChannelID uint64
	Escrow    int64
}

// ChannelCreator requests creation of a channel holding the given escrow
// value. Confirmation is asynchronous: the returned channel receives the
// created channel once the contract confirms it, and is closed after.
// The returned cancel function stops waiting for the confirmation.
type ChannelCreator interface {
	CreateChannel(ctx context.Context, owner codec.Address, escrow int64) (created <-chan CreatedChannel, cancel func(), err error)
}

// BalanceCollector gets the current escrow balance of a channel.
type BalanceCollector interface {
	ChannelValue(ctx context.Context, channelID uint64) (int64, error)
}

// Verifier checks a payment authorization against the contract's
// verification semantics: the authorization must be the channel owner's
// signature over (channelID, recipient, value).
type Verifier interface {
	Verify(ctx context.Context, channelID uint64, recipient codec.Address, value int64, auth codec.Authorization) (bool, error)
}

// Claimer submits a payment to the contract for redemption, releasing the
// claimed value to the recipient.
type Claimer interface {
	Claim(ctx context.Context, channelID uint64, recipient codec.Address, value int64, auth codec.Authorization) error
}
