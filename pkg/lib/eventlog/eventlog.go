// Package eventlog provides an append-only journal with lock-free readers.
// One goroutine appends; any number of cursors and subscribers read the
// journal from the beginning and follow it until it is closed.
package eventlog

import (
	"context"
	"iter"
	"sync/atomic"
)

// node is an element of the singly linked list. The list uses a sentinel head
// node so that readers never need to special-case an empty journal.
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Log is an append-only singly linked list. Append and Close must be called
// from a single producer goroutine; every reading method is safe to call
// concurrently with the producer.
type Log[T any] struct {
	head *node[T] // sentinel, immutable
	tail *node[T] // owned by the producer

	size     atomic.Int64
	closed   atomic.Bool
	notifier *Broadcaster[struct{}]
}

func New[T any]() *Log[T] {
	sentinel := &node[T]{}
	return &Log[T]{
		head:     sentinel,
		tail:     sentinel,
		notifier: NewBroadcaster[struct{}](),
	}
}

// Append adds v to the end of the journal and wakes followers. It returns
// false once the journal is closed.
func (l *Log[T]) Append(v T) bool {
	if l == nil || l.closed.Load() {
		return false
	}

	n := &node[T]{value: v}
	l.tail.next.Store(n)
	l.tail = n
	l.size.Add(1)

	l.notifier.Publish(struct{}{})
	return true
}

// Close marks the journal complete. Followers deliver what is left and stop.
func (l *Log[T]) Close() {
	if l == nil || !l.closed.CompareAndSwap(false, true) {
		return
	}
	l.notifier.Stop()
}

func (l *Log[T]) Closed() bool {
	return l != nil && l.closed.Load()
}

func (l *Log[T]) Len() int {
	if l == nil {
		return 0
	}
	return int(l.size.Load())
}

// All iterates over the values appended so far, in order.
func (l *Log[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if l == nil {
			return
		}
		for cur := l.head.next.Load(); cur != nil; cur = cur.next.Load() {
			if !yield(cur.value) {
				return
			}
		}
	}
}

// Notify returns a channel that receives a value after every Append and is
// closed when the journal is closed. Call cancel to stop receiving.
func (l *Log[T]) Notify() (<-chan struct{}, func()) {
	return l.notifier.Subscribe()
}

// Cursor returns a reader positioned at the start of the journal.
func (l *Log[T]) Cursor() *Cursor[T] {
	return &Cursor[T]{log: l, prev: l.head}
}

// Subscribe streams every value, replaying the existing ones first and then
// following new appends. The channel is closed after the last value of a
// closed journal has been delivered, or when ctx is done.
func (l *Log[T]) Subscribe(ctx context.Context, capacity int) <-chan T {
	ch := make(chan T, capacity)
	notifier, cancel := l.Notify()

	go func() {
		defer close(ch)
		defer cancel()

		cur := l.Cursor()
		send := func() bool {
			for v, ok := cur.Next(); ok; v, ok = cur.Next() {
				select {
				case ch <- v:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			// Closed is checked before the drain so that nothing appended
			// before Close can be missed.
			closed := l.Closed()
			if !send() || closed {
				return
			}

			select {
			case <-notifier:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Cursor reads a Log without blocking. A Cursor is not safe for concurrent use.
type Cursor[T any] struct {
	log  *Log[T]
	prev *node[T]
}

// Next returns the next value if one has been appended.
func (c *Cursor[T]) Next() (T, bool) {
	n := c.prev.next.Load()
	if n == nil {
		var zero T
		return zero, false
	}
	c.prev = n
	return n.value, true
}

// Drain returns every value appended since the previous call.
func (c *Cursor[T]) Drain() []T {
	var out []T
	for v, ok := c.Next(); ok; v, ok = c.Next() {
		out = append(out, v)
	}
	return out
}

// Done reports whether the journal is closed and fully consumed.
func (c *Cursor[T]) Done() bool {
	return c.log.Closed() && c.prev.next.Load() == nil
}
