// Package notify fans session change events out to every broker instance.
// An event carries only the passkey whose file list changed.
package notify

import "context"

// Hub publishes and delivers session change events.
type Hub interface {
	Publish(ctx context.Context, passkey string) error
	// Subscribe delivers every event published after it returns, until the
	// returned cancel func is called or ctx ends. The channel is closed then.
	Subscribe(ctx context.Context) (<-chan string, func())
}

const subscriberBuffer = 64
