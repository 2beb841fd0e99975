package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithin(t *testing.T, r *Receiver[int], d time.Duration) (int, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.Recv(ctx)
}

func TestNew_DefaultCapacity(t *testing.T) {
	s := New[int](0)
	assert.Equal(t, DefaultCapacity, s.Capacity())
}

func TestSend_NoReceiversIsNoop(t *testing.T) {
	s := New[int](4)
	assert.Equal(t, 0, s.Send(1))

	// A receiver attached afterwards does not see earlier values.
	r := s.Subscribe()
	defer r.Close()
	_, err := recvWithin(t, r, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecv_PreservesOrder(t *testing.T) {
	s := New[int](16)
	r := s.Subscribe()
	defer r.Close()

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, s.Send(i))
	}
	for i := 0; i < 10; i++ {
		v, err := recvWithin(t, r, time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestRecv_EveryReceiverGetsEveryValue(t *testing.T) {
	s := New[int](16)
	a := s.Subscribe()
	b := s.Subscribe()
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 2, s.Send(42))

	va, err := recvWithin(t, a, time.Second)
	require.NoError(t, err)
	vb, err := recvWithin(t, b, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42, va)
	assert.Equal(t, 42, vb)
}

func TestRecv_LaggedReceiverSkipsOldest(t *testing.T) {
	s := New[int](4)
	r := s.Subscribe()
	defer r.Close()

	for i := 0; i < 10; i++ {
		s.Send(i)
	}

	_, err := recvWithin(t, r, time.Second)
	var lagged *LaggedError
	require.True(t, errors.As(err, &lagged), "expected lagged error, got %v", err)
	assert.Equal(t, uint64(6), lagged.Skipped)
	assert.True(t, IsLagged(err))

	// Resumes from the oldest retained value.
	for want := 6; want < 10; want++ {
		v, err := recvWithin(t, r, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	s.Send(10)
	v, err := recvWithin(t, r, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestRecv_SlowReceiverDoesNotAffectOthers(t *testing.T) {
	s := New[int](2)
	slow := s.Subscribe()
	fast := s.Subscribe()
	defer slow.Close()
	defer fast.Close()

	for i := 0; i < 5; i++ {
		s.Send(i)
		v, err := recvWithin(t, fast, time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	_, err := recvWithin(t, slow, time.Second)
	assert.True(t, IsLagged(err))
}

func TestRecv_BlocksUntilSend(t *testing.T) {
	s := New[int](4)
	r := s.Subscribe()
	defer r.Close()

	done := make(chan int, 1)
	go func() {
		v, err := recvWithin(t, r, 2*time.Second)
		if err == nil {
			done <- v
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	s.Send(99)

	select {
	case v := <-done:
		assert.Equal(t, 99, v)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver was not woken by send")
	}
}

func TestRecv_ContextCancel(t *testing.T) {
	s := New[int](4)
	r := s.Subscribe()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSenderClose_DrainsThenClosed(t *testing.T) {
	s := New[int](4)
	r := s.Subscribe()

	s.Send(1)
	s.Close()
	s.Close()
	assert.True(t, s.Closed())
	assert.Equal(t, 0, s.Send(2))

	v, err := recvWithin(t, r, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = recvWithin(t, r, time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	late := s.Subscribe()
	_, err = recvWithin(t, late, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSenderClose_WakesBlockedReceiver(t *testing.T) {
	s := New[int](4)
	r := s.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := recvWithin(t, r, 2*time.Second)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver was not woken by close")
	}
}

func TestReceiverClose_Detaches(t *testing.T) {
	s := New[int](4)
	r := s.Subscribe()
	assert.Equal(t, 1, s.Receivers())

	r.Close()
	r.Close()
	assert.Equal(t, 0, s.Receivers())

	_, err := recvWithin(t, r, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentSendRecv(t *testing.T) {
	const (
		receivers = 8
		values    = 500
	)
	s := New[int](values)

	rs := make([]*Receiver[int], receivers)
	for i := range rs {
		rs[i] = s.Subscribe()
	}

	var wg sync.WaitGroup
	results := make([][]int, receivers)
	for i, r := range rs {
		wg.Add(1)
		go func(idx int, r *Receiver[int]) {
			defer wg.Done()
			defer r.Close()
			for {
				v, err := recvWithin(t, r, 2*time.Second)
				if err != nil {
					return
				}
				results[idx] = append(results[idx], v)
			}
		}(i, r)
	}

	for i := 0; i < values; i++ {
		s.Send(i)
	}
	s.Close()
	wg.Wait()

	for i := range results {
		require.Len(t, results[i], values, "receiver %d", i)
		for j, v := range results[i] {
			assert.Equal(t, j, v)
		}
	}
}
