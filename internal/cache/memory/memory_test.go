package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/liqguard/internal/cache/memory"
)

func TestBusPatternDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewBus()
	msgs, err := bus.Subscribe(ctx, "ch:wizard:*")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	_ = bus.Publish(ctx, "ch:other", []byte("skip"))
	_ = bus.Publish(ctx, "ch:wizard:abc", []byte("hello"))

	select {
	case m := <-msgs:
		if m.Channel != "ch:wizard:abc" || string(m.Payload) != "hello" {
			t.Fatalf("got %s %q", m.Channel, m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Fatal("unexpected message after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	l := memory.NewRateLimiter()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow(ctx, "a", 3, time.Hour); !ok {
			t.Fatalf("request %d denied", i)
		}
	}
	if ok, _ := l.Allow(ctx, "a", 3, time.Hour); ok {
		t.Fatal("4th request allowed")
	}
	if ok, _ := l.Allow(ctx, "b", 3, time.Hour); !ok {
		t.Fatal("other key denied")
	}
}
