package channel

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcec"

	"github.com/offchain/paych/codec"
	"github.com/offchain/paych/deadline"
	"github.com/offchain/paych/ledger"
	"github.com/offchain/paych/msg"
	"github.com/offchain/paych/settle"
	"github.com/offchain/paych/transport"
)

// PayloadHandler receives each payload delivered by the beneficiary. A
// false return rejects the payload: the session is cancelled and no
// payment is issued for it.
type PayloadHandler interface {
	PayloadReceived(payload []byte) (accept bool)
}

// PayerConfig contains the information needed to construct a Payer
// session.
type PayerConfig struct {
	Self msg.Identity
	Peer msg.Identity

	// Key signs every payment and owns the on-chain channel.
	Key *btcec.PrivateKey

	// EscrowValue is the amount escrowed when the channel is created,
	// bounding the total payable over the session.
	EscrowValue int64

	Policy ledger.Policy

	// DeliveryTimeout is how long the payer waits for the next payload
	// after issuing a payment before it treats the session as abandoned.
	// Zero means deadline.DefaultDuration.
	DeliveryTimeout time.Duration

	Bus     transport.Bus
	Creator settle.ChannelCreator

	Payloads PayloadHandler

	LogWriter io.Writer

	Events chan<- interface{}
}

// Payer is the session role that pays for delivered content.
type Payer struct {
	session

	key         *btcec.PrivateKey
	escrowValue int64
	policy      ledger.Policy
	timeout     time.Duration
	creator     settle.ChannelCreator
	payloads    PayloadHandler

	deadline deadline.Controller

	// mutable, guarded by the session mutex
	recipient     codec.Address
	haveRecipient bool
	issued        int64
	done          bool
	deadlineGen   uint64
	cancelCreate  func()
}

var _ Session = &Payer{}

func NewPayer(c PayerConfig) (*Payer, error) {
	if c.Bus == nil {
		return nil, fmt.Errorf("new payer: no bus")
	}
	if c.Key == nil {
		return nil, fmt.Errorf("new payer: no signing key")
	}
	if c.Creator == nil {
		return nil, fmt.Errorf("new payer: no channel creator")
	}
	if c.Payloads == nil {
		return nil, fmt.Errorf("new payer: no payload handler")
	}
	if c.EscrowValue <= 0 {
		return nil, fmt.Errorf("new payer: escrow value %d must be positive", c.EscrowValue)
	}
	timeout := c.DeliveryTimeout
	if timeout == 0 {
		timeout = deadline.DefaultDuration
	}
	return &Payer{
		session:     newSession(c.Self, c.Peer, c.Bus, c.LogWriter, c.Events),
		key:         c.Key,
		escrowValue: c.EscrowValue,
		policy:      c.Policy,
		timeout:     timeout,
		creator:     c.Creator,
		payloads:    c.Payloads,
	}, nil
}

// Start subscribes to the negotiation topic and waits for the
// beneficiary's setup announcement.
func (p *Payer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusIdle {
		return fmt.Errorf("starting session %s: status %s, want %s", p.id, p.status, StatusIdle)
	}
	p.ctx = ctx
	err := p.subscribeLocked(msg.Filter{
		From:   p.peer,
		To:     p.self,
		Topics: []msg.Topic{msg.NegotiationTopic(msg.PhaseSetup)},
	}, p.handleSetup)
	if err != nil {
		return err
	}
	p.status = StatusNegotiating
	p.logf("waiting for setup from %s", p.peer)
	return nil
}

// handleSetup records the beneficiary's payout identity and requests
// channel creation from the settlement contract.
func (p *Payer) handleSetup(m msg.Message) {
	p.mu.Lock()
	if p.status != StatusNegotiating {
		p.logf("dropping setup message in status %s", p.status)
		p.mu.Unlock()
		return
	}
	recipient, err := codec.ParseAddress(string(m.Payload))
	if err != nil {
		p.logf("dropping setup message with unparseable payout identity: %v", err)
		p.mu.Unlock()
		return
	}
	p.recipient = recipient
	p.haveRecipient = true
	p.status = StatusAwaitingConfirm
	p.event(SetupReceivedEvent{SessionID: p.id, Recipient: recipient})
	p.logf("setup received, paying out to %s", recipient)
	ctx := p.ctx
	p.mu.Unlock()

	// Channel creation has on-chain latency; it runs off the session
	// lock so the session stays responsive to cancellation. A creation
	// failure is fatal to the session: no valid channel id can ever be
	// obtained.
	created, cancel, err := p.creator.CreateChannel(ctx, codec.KeyAddress(p.key), p.escrowValue)
	if err != nil {
		err = fmt.Errorf("creating channel with escrow %d: %w", p.escrowValue, err)
		p.logf("error: %v", err)
		p.event(ErrorEvent{SessionID: p.id, Err: err})
		p.Cancel()
		return
	}

	p.mu.Lock()
	if p.status.terminal() {
		p.mu.Unlock()
		cancel()
		return
	}
	p.cancelCreate = cancel
	p.mu.Unlock()

	go p.awaitCreated(created)
}

func (p *Payer) awaitCreated(created <-chan settle.CreatedChannel) {
	ev, ok := <-created
	if !ok {
		// Confirmation stream ended without a channel; nothing to open.
		return
	}
	p.confirmCreated(ev)
}

// confirmCreated stores the confirmed channel id, announces readiness to
// the beneficiary, and subscribes to the channel's delivery topics.
func (p *Payer) confirmCreated(ev settle.CreatedChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusAwaitingConfirm {
		// Cancelled while the creation was in flight. No subscriptions
		// are armed and no payments will be issued.
		p.logf("ignoring channel confirmation in status %s", p.status)
		return
	}

	p.channelID = ev.ChannelID
	p.cancelCreate = nil
	err := p.subscribeLocked(msg.Filter{
		From: p.peer,
		To:   p.self,
		Topics: []msg.Topic{
			msg.ChannelTopic(ev.ChannelID, msg.PhaseDeliver),
			msg.ChannelTopic(ev.ChannelID, msg.PhaseDone),
		},
	}, p.handleDelivery)
	if err != nil {
		p.logf("error subscribing to deliveries: %v", err)
		p.event(ErrorEvent{SessionID: p.id, Err: err})
		return
	}

	err = p.publishLocked(msg.NegotiationTopic(msg.PhaseReady), []byte(strconv.FormatUint(ev.ChannelID, 10)))
	if err != nil {
		p.logf("error publishing ready: %v", err)
		p.event(ErrorEvent{SessionID: p.id, Err: err})
		return
	}

	p.status = StatusOpen
	p.event(OpenedEvent{SessionID: p.id, ChannelID: ev.ChannelID})
	p.logf("channel %d open with escrow %d", ev.ChannelID, ev.Escrow)
}

// handleDelivery processes deliver and done messages from the
// beneficiary.
func (p *Payer) handleDelivery(m msg.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusOpen {
		p.logf("dropping %s message in status %s", m.Topic.Phase, p.status)
		return
	}

	switch m.Topic.Phase {
	case msg.PhaseDone:
		// The beneficiary has nothing more to sell. Stop issuing
		// payments; the session stays open for redemption on the other
		// side.
		p.clearDeadlineLocked()
		p.done = true
		p.event(DoneEvent{SessionID: p.id})
		p.logf("peer done, no further payments")
	case msg.PhaseDeliver:
		p.handleDeliverLocked(m.Payload)
	default:
		p.logf("dropping message with unknown phase %q", m.Topic.Phase)
	}
}

func (p *Payer) handleDeliverLocked(payload []byte) {
	if p.done {
		// The peer already signalled done; anything delivered after that
		// is not paid for.
		p.logf("dropping deliver message after done")
		return
	}
	p.clearDeadlineLocked()

	if !p.payloads.PayloadReceived(payload) {
		p.logf("payload rejected by application, cancelling")
		err := p.cancelLocked()
		if err != nil {
			p.event(ErrorEvent{SessionID: p.id, Err: err})
		}
		return
	}

	value := p.policy.Base + p.policy.Increment*p.issued
	auth, err := codec.Sign(p.channelID, p.recipient, value, p.key)
	if err != nil {
		p.logf("error signing payment of %d: %v", value, err)
		p.event(ErrorEvent{SessionID: p.id, Err: err})
		return
	}
	record, err := codec.EncodePayment(codec.PaymentRecord{Value: value, Sig: auth})
	if err != nil {
		p.logf("error encoding payment of %d: %v", value, err)
		p.event(ErrorEvent{SessionID: p.id, Err: err})
		return
	}
	err = p.publishLocked(msg.ChannelTopic(p.channelID, msg.PhasePayment), record)
	if err != nil {
		p.logf("error publishing payment of %d on channel %d: %v", value, p.channelID, err)
		p.event(ErrorEvent{SessionID: p.id, Err: err})
		return
	}
	p.issued++
	p.event(PaymentSentEvent{SessionID: p.id, Value: value})
	p.logf("paid %d on channel %d", value, p.channelID)

	p.armDeadlineLocked()
}

// clearDeadlineLocked cancels any pending deadline. The generation
// counter invalidates an expiry that already fired and is waiting on the
// session lock.
func (p *Payer) clearDeadlineLocked() {
	p.deadline.Cancel()
	p.deadlineGen++
}

func (p *Payer) armDeadlineLocked() {
	p.deadlineGen++
	gen := p.deadlineGen
	p.deadline.Arm(p.timeout, func() {
		p.expire(gen)
	})
}

// expire runs when the beneficiary has not delivered the next payload
// within the session's deadline.
func (p *Payer) expire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.deadlineGen || p.status.terminal() {
		return
	}
	p.logf("no delivery within %s: %v", p.timeout, ErrLivenessTimeout)
	p.event(ErrorEvent{SessionID: p.id, Err: ErrLivenessTimeout})
	err := p.cancelLocked()
	if err != nil {
		p.event(ErrorEvent{SessionID: p.id, Err: err})
	}
}

// Recipient returns the beneficiary's payout identity learned during
// negotiation.
func (p *Payer) Recipient() (codec.Address, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recipient, p.haveRecipient
}

// Cancel tears down the session's subscriptions and any pending deadline
// or in-flight channel creation wait. Idempotent.
func (p *Payer) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearDeadlineLocked()
	if p.cancelCreate != nil {
		p.cancelCreate()
		p.cancelCreate = nil
	}
	return p.cancelLocked()
}

// Snapshot returns a point-in-time view of the session for debugging.
func (p *Payer) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		ID:        p.id,
		Role:      "payer",
		Status:    p.status,
		ChannelID: p.channelID,
		Issued:    p.issued,
	}
	if p.issued > 0 {
		s.LastIssuedValue = p.policy.Base + p.policy.Increment*(p.issued-1)
	}
	return s
}
