package eventlog

import (
	"sync"
)

// Broadcaster fans a value out to every subscriber. Each subscriber channel
// holds at most one pending value: publishing to a full channel replaces the
// stale value with the latest one, so Publish never blocks.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	stopped     bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[chan T]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned channel is closed by Stop
// or by the returned unsubscribe func. Subscribing to a stopped broadcaster
// yields an already closed channel.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[ch] = struct{}{}

	return ch, func() { b.unsubscribe(ch) }
}

func (b *Broadcaster[T]) unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

func (b *Broadcaster[T]) Publish(msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	for s := range b.subscribers {
		select {
		case s <- msg:
		default:
			// channel is full, drop the stale value
			select {
			case <-s:
			default:
			}
			s <- msg
		}
	}
}

// Stop closes all subscriber channels. Publish after Stop is a no-op.
func (b *Broadcaster[T]) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	for s := range b.subscribers {
		close(s)
	}
	clear(b.subscribers)
}

func (b *Broadcaster[T]) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}
