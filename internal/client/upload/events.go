package upload

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/feed"
)

type EventKind int

const (
	EventStarted EventKind = iota
	EventState
	EventProgress
	EventSucceeded
	EventFailed
	EventReleased
	EventAssetsChanged
	EventStoreError
	EventReset
	// EventQueueStalled reports that queued items wait behind a failed one.
	EventQueueStalled
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventState:
		return "state"
	case EventProgress:
		return "progress"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventReleased:
		return "released"
	case EventAssetsChanged:
		return "assets_changed"
	case EventStoreError:
		return "store_error"
	case EventReset:
		return "reset"
	case EventQueueStalled:
		return "queue_stalled"
	default:
		return "unknown"
	}
}

// Event is a telemetry notification from the service. Fields not relevant to
// the kind are zero.
type Event struct {
	Kind      EventKind
	RequestID string
	Variant   models.Variant
	State     State
	// Task names the variant being uploaded, "<variant>-<file name>".
	Task    string
	Percent float64
	Note    string
	Err     error
	At      time.Time
}

// broadcaster fans events out to every subscriber without blocking the
// publisher.
type broadcaster struct {
	mu     sync.Mutex
	next   int
	subs   map[int]*feed.Mailbox[Event]
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: map[int]*feed.Mailbox[Event]{}}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	box := feed.NewMailbox[Event]()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		box.Close()
		return box.C(), func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = box
	b.mu.Unlock()

	var once sync.Once
	return box.C(), func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			box.Close()
		})
	}
}

func (b *broadcaster) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, box := range b.subs {
		box.Push(ev)
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = map[int]*feed.Mailbox[Event]{}
	b.closed = true
	b.mu.Unlock()

	for _, box := range subs {
		box.Close()
	}
}
