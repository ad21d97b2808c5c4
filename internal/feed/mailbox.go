// Package feed provides the delivery primitives behind the store's change
// notifications and the upload service's event stream: an unbounded ordered
// mailbox and snapshot diffing into index-based change sets.
package feed

import (
	"sync"

	"github.com/eapache/channels"
)

// Mailbox is a typed view over an infinite channel. Push never blocks on the
// receiver, so a receiver may write back into the producer (for example the
// store) without deadlocking. Items are delivered in push order.
type Mailbox[T any] struct {
	mu     sync.Mutex
	ch     *channels.InfiniteChannel
	closed bool

	done chan struct{}
	out  chan T
	once sync.Once
}

func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		ch:   channels.NewInfiniteChannel(),
		done: make(chan struct{}),
		out:  make(chan T),
	}
	go m.run()
	return m
}

// C is closed after Close once the pump exits. Undelivered items are dropped.
func (m *Mailbox[T]) C() <-chan T {
	return m.out
}

// Push enqueues v. Returns false when the mailbox is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.ch.In() <- v
	return true
}

// Len returns the number of items buffered and not yet picked up by the pump.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0
	}
	return m.ch.Len()
}

func (m *Mailbox[T]) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.ch.Close()
		m.mu.Unlock()
		close(m.done)
	})
}

func (m *Mailbox[T]) run() {
	defer close(m.out)
	// the buffer goroutine only exits once Out is drained
	defer func() {
		go func() {
			for range m.ch.Out() {
			}
		}()
	}()

	for {
		select {
		case raw, ok := <-m.ch.Out():
			if !ok {
				return
			}
			v, _ := raw.(T)
			select {
			case m.out <- v:
			case <-m.done:
				return
			}
		case <-m.done:
			return
		}
	}
}
