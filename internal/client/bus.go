/*
Package client is the Go SDK for the Mentor Match realtime endpoint.

A Client owns one lifecycle Manager (dial, bounded retry, logout) and fans
every inbound event out through a Bus to any number of independent
subscribers. Local stores keep the presence list, live typing indicators and
session activity in sync with the stream and publish their own change events
on the same Bus.
*/
package client

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"mentormatch/internal/pkg/logx"
)

// Listener receives the payload of one event. Server events carry
// json.RawMessage; local change events carry the typed value documented on
// their constant.
type Listener func(data any)

type subscription struct {
	id      uint64
	fn      Listener
	removed atomic.Bool
}

// Bus is an ordered per-event publish/subscribe registry. It is safe for
// concurrent use; listeners run on the publishing goroutine.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]*subscription
	logger zerolog.Logger
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[string][]*subscription),
		logger: logx.Component("client_bus"),
	}
}

// Subscribe adds fn for event and returns a function removing exactly this
// subscription. Calling it more than once is a no-op.
func (b *Bus) Subscribe(event string, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], &subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		s.removed.Store(true)
		rest := make([]*subscription, 0, len(subs)-1)
		rest = append(rest, subs[:i]...)
		rest = append(rest, subs[i+1:]...)
		if len(rest) == 0 {
			delete(b.subs, event)
		} else {
			b.subs[event] = rest
		}
		return
	}
}

// Publish calls every listener of event in subscription order and returns
// how many returned normally. Listeners added during the call are not
// invoked; listeners removed during the call are skipped if not yet reached.
// A panicking listener is logged and skipped.
func (b *Bus) Publish(event string, data any) int {
	b.mu.Lock()
	subs := b.subs[event]
	b.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		if s.removed.Load() {
			continue
		}
		if err := b.call(s.fn, data); err != nil {
			b.logger.Error().Err(err).Str("event", event).Msg("Listener panicked")
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Bus) call(fn Listener, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	fn(data)
	return nil
}

// Listeners returns the number of subscriptions for event.
func (b *Bus) Listeners(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}

// Events returns the number of event types with at least one subscription.
func (b *Bus) Events() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
