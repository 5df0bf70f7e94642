package channel

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/offchain/paych/codec"
	"github.com/offchain/paych/ledger"
	"github.com/offchain/paych/msg"
	"github.com/offchain/paych/settle"
	"github.com/offchain/paych/transport"
)

// PayloadProvider supplies the application content the beneficiary sells
// over the channel. NextPayload returns false when there is nothing left
// to deliver.
type PayloadProvider interface {
	NextPayload() ([]byte, bool)
}

// PaymentHandler receives the outcome of every inbound payment. A nil
// result is an accepted payment. For a rejected payment the return value
// decides whether the next payload is delivered anyway; accepted payments
// always release the next payload.
type PaymentHandler interface {
	PaymentOutcome(result error, payment ledger.Payment) (releaseNext bool)
}

// BeneficiaryConfig contains the information needed to construct a
// Beneficiary session.
type BeneficiaryConfig struct {
	Self msg.Identity
	Peer msg.Identity

	// Payout is the identity the settlement contract pays out to; it is
	// announced to the payer during negotiation and every payment is
	// bound to it.
	Payout codec.Address

	Policy ledger.Policy

	Bus              transport.Bus
	Verifier         settle.Verifier
	BalanceCollector settle.BalanceCollector
	Claimer          settle.Claimer

	Payloads PayloadProvider
	Payments PaymentHandler

	LogWriter io.Writer

	Events chan<- interface{}
}

// Beneficiary is the session role that delivers content and accepts
// payments for it.
type Beneficiary struct {
	session

	payout   codec.Address
	claimer  settle.Claimer
	ledger   *ledger.Ledger
	payloads PayloadProvider
	payments PaymentHandler
}

var _ Session = &Beneficiary{}

func NewBeneficiary(c BeneficiaryConfig) (*Beneficiary, error) {
	if c.Bus == nil {
		return nil, fmt.Errorf("new beneficiary: no bus")
	}
	if c.Verifier == nil || c.BalanceCollector == nil {
		return nil, fmt.Errorf("new beneficiary: no settlement contract client")
	}
	if c.Payloads == nil {
		return nil, fmt.Errorf("new beneficiary: no payload provider")
	}
	if c.Payments == nil {
		return nil, fmt.Errorf("new beneficiary: no payment handler")
	}
	return &Beneficiary{
		session:  newSession(c.Self, c.Peer, c.Bus, c.LogWriter, c.Events),
		payout:   c.Payout,
		claimer:  c.Claimer,
		ledger:   ledger.NewLedger(c.Policy, c.Verifier, c.BalanceCollector),
		payloads: c.Payloads,
		payments: c.Payments,
	}, nil
}

// Start broadcasts the setup announcement carrying the payout identity
// and waits for the payer to create the channel on chain and announce
// readiness.
func (b *Beneficiary) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status != StatusIdle {
		return fmt.Errorf("starting session %s: status %s, want %s", b.id, b.status, StatusIdle)
	}
	b.ctx = ctx
	b.status = StatusNegotiating

	err := b.subscribeLocked(msg.Filter{
		From:   b.peer,
		To:     b.self,
		Topics: []msg.Topic{msg.NegotiationTopic(msg.PhaseReady)},
	}, b.handleReady)
	if err != nil {
		return err
	}

	err = b.publishLocked(msg.NegotiationTopic(msg.PhaseSetup), []byte(b.payout.String()))
	if err != nil {
		return err
	}
	b.logf("announced setup, payout %s", b.payout)

	// Nothing more to do locally until the payer confirms channel
	// creation on chain.
	b.status = StatusAwaitingConfirm
	return nil
}

// handleReady stores the channel id announced by the payer, subscribes to
// the channel's payment topic, and delivers the first payload.
func (b *Beneficiary) handleReady(m msg.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status != StatusAwaitingConfirm {
		b.logf("dropping ready message in status %s", b.status)
		return
	}
	channelID, err := strconv.ParseUint(string(m.Payload), 10, 64)
	if err != nil || channelID == 0 {
		b.logf("dropping ready message with unparseable channel id %q", m.Payload)
		return
	}

	b.channelID = channelID
	err = b.subscribeLocked(msg.Filter{
		From:   b.peer,
		To:     b.self,
		Topics: []msg.Topic{msg.ChannelTopic(channelID, msg.PhasePayment)},
	}, b.handlePayment)
	if err != nil {
		b.logf("error subscribing to payments: %v", err)
		b.event(ErrorEvent{SessionID: b.id, Err: err})
		return
	}

	b.status = StatusOpen
	b.event(OpenedEvent{SessionID: b.id, ChannelID: channelID})
	b.logf("channel %d open", channelID)

	b.postLocked()
}

// postLocked emits the next application payload as a deliver message, or
// a done message when the provider has nothing left. The session stays
// open either way.
func (b *Beneficiary) postLocked() {
	payload, ok := b.payloads.NextPayload()
	if !ok {
		err := b.publishLocked(msg.ChannelTopic(b.channelID, msg.PhaseDone), nil)
		if err != nil {
			b.logf("error publishing done: %v", err)
			b.event(ErrorEvent{SessionID: b.id, Err: err})
			return
		}
		b.event(DoneEvent{SessionID: b.id})
		b.logf("no payload available, signalled done")
		return
	}
	err := b.publishLocked(msg.ChannelTopic(b.channelID, msg.PhaseDeliver), payload)
	if err != nil {
		b.logf("error publishing deliver: %v", err)
		b.event(ErrorEvent{SessionID: b.id, Err: err})
		return
	}
	b.event(DeliveredEvent{SessionID: b.id, Payload: payload})
	b.logf("delivered %d byte payload", len(payload))
}

// handlePayment verifies and evaluates an inbound payment. Rejections are
// surfaced to the payment handler and the session stays open.
func (b *Beneficiary) handlePayment(m msg.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status != StatusOpen {
		b.logf("dropping payment message in status %s", b.status)
		return
	}
	record, err := codec.DecodePayment(m.Payload)
	if err != nil {
		b.logf("dropping malformed payment message: %v", err)
		return
	}

	candidate := ledger.Payment{Value: record.Value, Auth: record.Sig}
	result := b.ledger.Evaluate(b.ctx, b.channelID, b.payout, candidate)
	if result == nil {
		b.event(PaymentReceivedEvent{SessionID: b.id, Payment: candidate})
		b.logf("accepted payment of %d", candidate.Value)
	} else {
		b.event(PaymentRejectedEvent{SessionID: b.id, Reason: result, Payment: candidate})
		b.logf("rejected payment of %d: %v", candidate.Value, result)
	}

	releaseNext := b.payments.PaymentOutcome(result, candidate)
	if result == nil || releaseNext {
		b.postLocked()
	}
}

// Redeem submits the last accepted payment to the settlement contract's
// claim operation. On success the session is redeemed and its
// subscriptions torn down. On failure the session stays open and Redeem
// may be retried.
func (b *Beneficiary) Redeem(ctx context.Context) error {
	b.mu.Lock()
	if b.status != StatusOpen {
		b.mu.Unlock()
		return fmt.Errorf("redeeming session %s: status %s: %w", b.id, b.status, ErrSessionTerminated)
	}
	if b.claimer == nil {
		b.mu.Unlock()
		return fmt.Errorf("redeeming session %s: no claimer configured", b.id)
	}
	last, ok := b.ledger.Last()
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("redeeming session %s: no accepted payment", b.id)
	}
	channelID := b.channelID
	b.mu.Unlock()

	// The claim call has on-chain latency; it runs outside the session
	// lock so the session stays responsive to cancellation.
	err := b.claimer.Claim(ctx, channelID, b.payout, last.Value, last.Auth)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("claiming %d on channel %d: %w", last.Value, channelID, err)
		b.logf("error redeeming: %v", err)
		b.event(ErrorEvent{SessionID: b.id, Err: err})
		return err
	}
	if b.status.terminal() {
		// Cancelled while the claim was in flight. The claim stands; the
		// session state does not regress.
		return nil
	}
	teardownErr := b.teardownLocked()
	b.status = StatusRedeemed
	b.event(RedeemedEvent{SessionID: b.id, Value: last.Value})
	b.logf("redeemed channel %d for %d", channelID, last.Value)
	return teardownErr
}

// LastAccepted returns the highest-value payment accepted so far.
func (b *Beneficiary) LastAccepted() (ledger.Payment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.Last()
}

// Cancel tears down the session's subscriptions. Idempotent.
func (b *Beneficiary) Cancel() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelLocked()
}

// Snapshot returns a point-in-time view of the session for debugging.
func (b *Beneficiary) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		ID:        b.id,
		Role:      "beneficiary",
		Status:    b.status,
		ChannelID: b.channelID,
		Accepted:  b.ledger.Count(),
	}
	if last, ok := b.ledger.Last(); ok {
		s.LastAcceptedValue = last.Value
	}
	return s
}
