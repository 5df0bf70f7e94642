// Package settletest provides an in-memory settlement contract for tests
// and examples. Its verification semantics are the codec's verification
// semantics, which is the equivalence the protocol depends on.
package settletest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/offchain/paych/codec"
	"github.com/offchain/paych/settle"
)

type channelState struct {
	owner   codec.Address
	escrow  int64
	claimed bool
}

// Contract simulates the on-chain payment channel contract: it assigns
// channel ids, holds escrow balances, verifies payment authorizations,
// and releases funds on claim. Safe for concurrent use.
type Contract struct {
	mu       sync.Mutex
	nextID   uint64
	channels map[uint64]*channelState
}

var _ settle.ChannelCreator = &Contract{}
var _ settle.BalanceCollector = &Contract{}
var _ settle.Verifier = &Contract{}
var _ settle.Claimer = &Contract{}

func NewContract() *Contract {
	return &Contract{
		nextID:   1,
		channels: map[uint64]*channelState{},
	}
}

// CreateChannel assigns a channel id and escrows the given value.
// Confirmation is delivered on the returned channel immediately; the
// asynchronous shape matches the real contract boundary.
func (c *Contract) CreateChannel(ctx context.Context, owner codec.Address, escrow int64) (<-chan settle.CreatedChannel, func(), error) {
	if escrow <= 0 {
		return nil, nil, errors.Errorf("creating channel: escrow value %d must be positive", escrow)
	}
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.channels[id] = &channelState{owner: owner, escrow: escrow}
	c.mu.Unlock()

	created := make(chan settle.CreatedChannel, 1)
	created <- settle.CreatedChannel{ChannelID: id, Escrow: escrow}
	close(created)
	return created, func() {}, nil
}

func (c *Contract) ChannelValue(ctx context.Context, channelID uint64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[channelID]
	if !ok {
		return 0, errors.Errorf("no channel %d", channelID)
	}
	return ch.escrow, nil
}

// SetChannelValue overrides a channel's escrow balance, for exercising
// under-funded channels.
func (c *Contract) SetChannelValue(channelID uint64, escrow int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[channelID]
	if !ok {
		return errors.Errorf("no channel %d", channelID)
	}
	ch.escrow = escrow
	return nil
}

func (c *Contract) Verify(ctx context.Context, channelID uint64, recipient codec.Address, value int64, auth codec.Authorization) (bool, error) {
	c.mu.Lock()
	ch, ok := c.channels[channelID]
	c.mu.Unlock()
	if !ok {
		return false, errors.Errorf("no channel %d", channelID)
	}
	return codec.Verify(channelID, ch.owner, recipient, value, auth), nil
}

func (c *Contract) Claim(ctx context.Context, channelID uint64, recipient codec.Address, value int64, auth codec.Authorization) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[channelID]
	if !ok {
		return errors.Errorf("no channel %d", channelID)
	}
	if ch.claimed {
		return errors.Errorf("channel %d already claimed", channelID)
	}
	if !codec.Verify(channelID, ch.owner, recipient, value, auth) {
		return errors.Errorf("claim on channel %d: authorization invalid", channelID)
	}
	if value > ch.escrow {
		return errors.Errorf("claim of %d on channel %d exceeds escrow of %d", value, channelID, ch.escrow)
	}
	ch.escrow -= value
	ch.claimed = true
	return nil
}

// Claimed reports whether the channel has been redeemed and the escrow
// remaining after redemption.
func (c *Contract) Claimed(channelID uint64) (remaining int64, claimed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[channelID]
	if !ok {
		return 0, false
	}
	return ch.escrow, ch.claimed
}
