package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/notify/broadcast"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
)

func newTestRegistry(opts ...Option) *Registry {
	return New(append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

func recv(t *testing.T, rx *Receiver) (event.Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return rx.Recv(ctx)
}

func message(id int64) event.Event {
	return event.NewMessage{Message: event.Message{ID: id, ChatID: 1, SenderID: 2, Content: "hi"}}
}

func TestGetOrCreate_SharesEndpoint(t *testing.T) {
	r := newTestRegistry()
	a := r.GetOrCreate(7)
	b := r.GetOrCreate(7)
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 2, r.Receivers())
	assert.True(t, r.Contains(7))
}

func TestGetOrCreate_ConcurrentCreatesOneEndpoint(t *testing.T) {
	r := newTestRegistry()
	const n = 64

	receivers := make([]*Receiver, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receivers[i] = r.GetOrCreate(42)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, r.Len())
	require.Equal(t, n, r.Receivers())

	// Every receiver is attached to the same endpoint.
	require.True(t, r.Publish(42, message(1)))
	for _, rx := range receivers {
		ev, err := recv(t, rx)
		require.NoError(t, err)
		assert.Equal(t, message(1), ev)
		rx.Close()
	}
}

func TestPublish_AbsentUserDropsWithoutCreating(t *testing.T) {
	r := newTestRegistry()

	assert.False(t, r.Publish(7, message(1)))
	assert.False(t, r.Contains(7))
	assert.Equal(t, 0, r.Len())

	// A later subscriber sees nothing from before it attached.
	rx := r.GetOrCreate(7)
	defer rx.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rx.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublish_PreservesOrderPerUser(t *testing.T) {
	r := newTestRegistry()
	rx := r.GetOrCreate(3)
	defer rx.Close()

	for i := int64(1); i <= 20; i++ {
		require.True(t, r.Publish(3, message(i)))
	}
	for i := int64(1); i <= 20; i++ {
		ev, err := recv(t, rx)
		require.NoError(t, err)
		assert.Equal(t, message(i), ev)
	}
}

func TestPublish_PresentWithoutReceiversIsNoop(t *testing.T) {
	r := newTestRegistry()
	rx := r.GetOrCreate(5)
	rx.Close()

	assert.True(t, r.Publish(5, message(1)))
	assert.True(t, r.Contains(5))
}

func TestRemove_IdempotentAndClosesEndpoint(t *testing.T) {
	r := newTestRegistry()
	rx := r.GetOrCreate(9)
	require.True(t, r.Publish(9, message(1)))

	r.Remove(9)
	r.Remove(9)
	r.Remove(12345)

	assert.False(t, r.Contains(9))

	// Buffered events drain before the close is reported.
	ev, err := recv(t, rx)
	require.NoError(t, err)
	assert.Equal(t, message(1), ev)
	_, err = recv(t, rx)
	assert.ErrorIs(t, err, broadcast.ErrClosed)
}

func TestShardsAreIndependent(t *testing.T) {
	r := newTestRegistry()
	// 1 and 1+ShardCount share a shard; 2 does not.
	ids := []uint64{1, 1 + ShardCount, 2}
	var rxs []*Receiver
	for _, id := range ids {
		rxs = append(rxs, r.GetOrCreate(id))
	}
	require.Equal(t, 3, r.Len())

	r.Remove(1)
	assert.False(t, r.Contains(1))
	assert.True(t, r.Contains(1+ShardCount))
	assert.True(t, r.Contains(2))

	for _, rx := range rxs {
		rx.Close()
	}
}

func TestAcquire_GuardReleasesOnce(t *testing.T) {
	r := newTestRegistry()
	rx, guard := r.Acquire(7)
	require.NotNil(t, rx)
	assert.Equal(t, uint64(7), guard.UserID())
	assert.False(t, guard.Released())

	guard.Release()
	assert.True(t, guard.Released())
	assert.False(t, r.Contains(7))

	// A second release must not remove an entry created since.
	other := r.GetOrCreate(7)
	defer other.Close()
	guard.Release()
	assert.True(t, r.Contains(7))
}

func TestGuard_ConcurrentRelease(t *testing.T) {
	r := newTestRegistry()
	_, guard := r.Acquire(11)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard.Release()
		}()
	}
	wg.Wait()

	assert.True(t, guard.Released())
	assert.False(t, r.Contains(11))
}

func TestGuard_UnconditionalRemovalEndsOtherSessions(t *testing.T) {
	r := newTestRegistry()
	_, first := r.Acquire(7)
	second, secondGuard := r.Acquire(7)
	defer secondGuard.Release()

	first.Release()
	assert.False(t, r.Contains(7))

	_, err := recv(t, second)
	assert.ErrorIs(t, err, broadcast.ErrClosed)
}

func TestChurn_NoLeakedEntries(t *testing.T) {
	r := newTestRegistry(WithCapacity(8))
	const users = 50
	const rounds = 20

	var wg sync.WaitGroup
	for u := uint64(0); u < users; u++ {
		wg.Add(1)
		go func(u uint64) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, guard := r.Acquire(u)
				r.Publish(u, message(int64(i)))
				guard.Release()
			}
		}(u)
	}
	// Concurrent publishers to the same users.
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds*users; i++ {
				r.Publish(uint64(i%users), message(int64(i)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

func TestClose(t *testing.T) {
	r := newTestRegistry()
	a := r.GetOrCreate(1)
	b := r.GetOrCreate(2)

	r.Close()
	r.Close()

	assert.True(t, r.Closed())
	assert.Equal(t, 0, r.Len())
	_, err := recv(t, a)
	assert.ErrorIs(t, err, broadcast.ErrClosed)
	_, err = recv(t, b)
	assert.ErrorIs(t, err, broadcast.ErrClosed)

	late := r.GetOrCreate(3)
	_, err = recv(t, late)
	assert.ErrorIs(t, err, broadcast.ErrClosed)
	assert.False(t, r.Contains(3))
}

func TestWithCapacity(t *testing.T) {
	assert.Equal(t, broadcast.DefaultCapacity, newTestRegistry().Capacity())
	assert.Equal(t, 4, newTestRegistry(WithCapacity(4)).Capacity())
	assert.Equal(t, broadcast.DefaultCapacity, newTestRegistry(WithCapacity(-1)).Capacity())
}
