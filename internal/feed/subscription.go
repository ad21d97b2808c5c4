package feed

import "sync"

// Subscription is a handle on a stream of changes. Close stops delivery and
// runs the release hook registered by the producer exactly once.
type Subscription[T any] struct {
	box     *Mailbox[Change[T]]
	release func()
	once    sync.Once
}

func NewSubscription[T any](box *Mailbox[Change[T]], release func()) *Subscription[T] {
	return &Subscription[T]{box: box, release: release}
}

func (s *Subscription[T]) C() <-chan Change[T] {
	return s.box.C()
}

func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
		s.box.Close()
	})
}
