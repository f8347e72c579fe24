// Package memory provides in-process stand-ins for the Redis-backed signal
// bus and rate limiter, used when a single instance runs without Redis.
package memory

import (
	"context"
	"path"
	"sync"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

const subscriberBuffer = 128

type subscriber struct {
	pattern string
	ch      chan domain.Message
}

// Bus implements domain.SignalBus in memory. Channel patterns use path.Match
// syntax, which covers the "ch:wizard:*" form used with Redis PSUBSCRIBE.
// Slow subscribers lose messages rather than block publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Publish delivers payload to every matching subscriber.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		select {
		case s.ch <- domain.Message{Channel: channel, Payload: payload}:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of messages matching pattern. It is closed
// when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, pattern string) (<-chan domain.Message, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	s := &subscriber{pattern: pattern, ch: make(chan domain.Message, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		close(s.ch)
	}()
	return s.ch, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*Bus)(nil)
