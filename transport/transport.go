// Package transport declares the publish/subscribe message bus the
// protocol exchanges its messages over. The bus is an external
// collaborator; implementations must be safe for concurrent use by
// multiple sessions.
package transport

import (
	"context"

	"github.com/offchain/paych/msg"
)

// Bus posts messages and delivers subscribed messages to callbacks.
type Bus interface {
	// Publish posts a message to its topic.
	Publish(ctx context.Context, m msg.Message) error

	// Subscribe registers deliver to be called for every message matching
	// the filter, until the subscription is unsubscribed. Deliveries for
	// a single subscription are made one at a time.
	Subscribe(f msg.Filter, deliver func(msg.Message)) (Subscription, error)
}

// Subscription is a handle on an active subscribe registration.
type Subscription interface {
	// Unsubscribe stops delivery. Idempotent.
	Unsubscribe() error
}
