// Package memorybus is an in-process implementation of the transport bus,
// for tests and examples where both participants run in one process.
package memorybus

import (
	"context"
	"fmt"
	"sync"

	"github.com/cskr/pubsub"

	"github.com/offchain/paych/msg"
	"github.com/offchain/paych/transport"
)

// subCapacity bounds how many undelivered messages a subscription buffers
// before publishing blocks.
const subCapacity = 32

// Bus is an in-memory topic bus. Safe for concurrent use by multiple
// sessions.
type Bus struct {
	ps *pubsub.PubSub
}

var _ transport.Bus = &Bus{}

func New() *Bus {
	return &Bus{ps: pubsub.New(subCapacity)}
}

// key is the canonical routing key of a (from, to, topic) tuple.
func key(from msg.Identity, to msg.Identity, topic msg.Topic) string {
	return fmt.Sprintf("%s|%s|%s", from, to, topic)
}

func (b *Bus) Publish(ctx context.Context, m msg.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.ps.Pub(m, key(m.From, m.To, m.Topic))
	return nil
}

func (b *Bus) Subscribe(f msg.Filter, deliver func(msg.Message)) (transport.Subscription, error) {
	if len(f.Topics) == 0 {
		return nil, fmt.Errorf("subscribing: filter has no topics")
	}
	keys := make([]string, 0, len(f.Topics))
	for _, topic := range f.Topics {
		keys = append(keys, key(f.From, f.To, topic))
	}
	ch := b.ps.Sub(keys...)
	go func() {
		for v := range ch {
			deliver(v.(msg.Message))
		}
	}()
	return &subscription{bus: b, ch: ch}, nil
}

// Close shuts the bus down. Subscriptions stop receiving; publishing
// after close panics.
func (b *Bus) Close() {
	b.ps.Shutdown()
}

type subscription struct {
	once sync.Once
	bus  *Bus
	ch   chan interface{}
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.ps.Unsub(s.ch)
	})
	return nil
}
