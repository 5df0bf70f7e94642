// Package channel implements the off-chain payment channel protocol state
// machine. A session is one instance of the protocol between a payer and
// a beneficiary; the two roles are the Payer and Beneficiary types, both
// behind the Session interface.
//
// A session exchanges messages over an injected transport bus and drives
// the settlement contract through the narrow interfaces in the settle
// package. All state transitions of a session are serialized by an
// internal mutex; bus deliveries and deadline expiries go through the
// same lock.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/offchain/paych/msg"
	"github.com/offchain/paych/transport"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle            = Status("idle")
	StatusNegotiating     = Status("negotiating")
	StatusAwaitingConfirm = Status("awaiting_confirm")
	StatusOpen            = Status("open")
	StatusCancelled       = Status("cancelled")
	StatusRedeemed        = Status("redeemed")
)

// terminal reports whether no further transitions can occur.
func (s Status) terminal() bool {
	return s == StatusCancelled || s == StatusRedeemed
}

// ErrLivenessTimeout indicates the peer did not respond within the
// session's delivery deadline.
var ErrLivenessTimeout = errors.New("liveness deadline expired")

// ErrSessionTerminated indicates an operation on a cancelled or redeemed
// session.
var ErrSessionTerminated = errors.New("session terminated")

// Session is the capability set shared by both roles.
type Session interface {
	// ID is the unique id of this session instance, used in logs and
	// events.
	ID() string

	// Status returns the session's current lifecycle state.
	Status() Status

	// ChannelID returns the on-chain channel handle, once known.
	ChannelID() (uint64, bool)

	// Start begins the role-specific negotiation. It can be called once.
	Start(ctx context.Context) error

	// Cancel tears down all of the session's subscriptions and moves it
	// to the cancelled terminal state. Idempotent.
	Cancel() error
}

// session holds the state and behavior common to both roles.
type session struct {
	id        string
	self      msg.Identity
	peer      msg.Identity
	bus       transport.Bus
	logWriter io.Writer
	events    chan<- interface{}

	// mu serializes all state transitions. Bus delivery callbacks,
	// deadline expiries, and exported methods all take it before touching
	// any mutable field below.
	mu        sync.Mutex
	ctx       context.Context
	status    Status
	channelID uint64
	subs      []transport.Subscription
}

func newSession(self, peer msg.Identity, bus transport.Bus, logWriter io.Writer, events chan<- interface{}) session {
	if logWriter == nil {
		logWriter = io.Discard
	}
	return session{
		id:        uuid.NewString(),
		self:      self,
		peer:      peer,
		bus:       bus,
		logWriter: logWriter,
		events:    events,
		status:    StatusIdle,
	}
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) ChannelID() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID, s.channelID != 0
}

func (s *session) logf(format string, args ...interface{}) {
	fmt.Fprintf(s.logWriter, "session %s: %s\n", s.id, fmt.Sprintf(format, args...))
}

func (s *session) event(e interface{}) {
	if s.events != nil {
		s.events <- e
	}
}

// subscribeLocked registers a subscription on the bus and retains its
// handle for teardown.
func (s *session) subscribeLocked(f msg.Filter, deliver func(msg.Message)) error {
	sub, err := s.bus.Subscribe(f, deliver)
	if err != nil {
		return fmt.Errorf("subscribing to %d topics from %s: %w", len(f.Topics), f.From, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *session) publishLocked(topic msg.Topic, payload []byte) error {
	err := s.bus.Publish(s.ctx, msg.Message{
		From:    s.self,
		To:      s.peer,
		Topic:   topic,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// cancelLocked tears down all subscriptions and moves the session to
// cancelled. A second call, or a call on a session that never armed any
// filter, is a no-op.
func (s *session) cancelLocked() error {
	if s.status.terminal() {
		return nil
	}
	err := s.teardownLocked()
	s.status = StatusCancelled
	s.event(CancelledEvent{SessionID: s.id})
	s.logf("cancelled")
	return err
}

func (s *session) teardownLocked() error {
	g := errgroup.Group{}
	for _, sub := range s.subs {
		sub := sub
		g.Go(sub.Unsubscribe)
	}
	s.subs = nil
	err := g.Wait()
	if err != nil {
		return fmt.Errorf("unsubscribing session filters: %w", err)
	}
	return nil
}
