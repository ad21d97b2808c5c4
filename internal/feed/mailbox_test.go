package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, c <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-c:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for item")
	}
	var zero T
	return zero
}

func TestMailbox_DeliversInOrderWithoutBlockingPush(t *testing.T) {
	m := NewMailbox[int]()
	defer m.Close()

	// nobody is receiving yet; pushes must not block
	for i := 0; i < 1000; i++ {
		require.True(t, m.Push(i))
	}

	for i := 0; i < 1000; i++ {
		assert.Equal(t, i, recv(t, m.C()))
	}
}

func TestMailbox_ReceiverCanPushBack(t *testing.T) {
	m := NewMailbox[int]()
	defer m.Close()

	m.Push(1)
	got := []int{}
	for len(got) < 3 {
		v := recv(t, m.C())
		got = append(got, v)
		if v < 3 {
			m.Push(v + 1)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestMailbox_NilInterfaceValues(t *testing.T) {
	m := NewMailbox[error]()
	defer m.Close()

	boom := errors.New("boom")
	m.Push(nil)
	m.Push(boom)

	assert.NoError(t, recv(t, m.C()))
	assert.Equal(t, boom, recv(t, m.C()))
}

func TestMailbox_CloseStopsDelivery(t *testing.T) {
	m := NewMailbox[string]()
	m.Push("a")
	m.Close()
	m.Close()

	assert.False(t, m.Push("b"))
	assert.Equal(t, 0, m.Len())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-m.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed")
		}
	}
}

func TestSubscription_CloseRunsReleaseOnce(t *testing.T) {
	calls := 0
	s := NewSubscription(NewMailbox[Change[int]](), func() { calls++ })
	s.Close()
	s.Close()
	assert.Equal(t, 1, calls)
}
