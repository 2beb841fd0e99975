// Package broadcast provides a bounded multi-consumer channel.
//
// Every Receiver sees every value sent after it subscribed, in send order.
// The Sender keeps the last Capacity values in a ring; a Receiver that falls
// further behind loses the oldest values and is told how many it missed
// through a *LaggedError, after which it continues from the oldest value
// still retained. Sending never blocks, whatever the receivers are doing.
//
// # Usage
//
//	tx := broadcast.New[string](256)
//	rx := tx.Subscribe()
//	defer rx.Close()
//
//	tx.Send("hello")
//	v, err := rx.Recv(ctx)
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the ring size used when New is given a non-positive
// capacity.
const DefaultCapacity = 256

// ErrClosed is returned by Recv once the sender is closed and every retained
// value has been received, or after the receiver itself was closed.
var ErrClosed = errors.New("broadcast: channel closed")

// LaggedError reports that a receiver fell behind and Skipped values were
// overwritten before it could read them.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: receiver lagged, %d values skipped", e.Skipped)
}

// IsLagged reports whether err is a *LaggedError.
func IsLagged(err error) bool {
	var lagged *LaggedError
	return errors.As(err, &lagged)
}

// Sender is the producing side of a broadcast channel.
type Sender[T any] struct {
	mu        sync.Mutex
	buf       []T
	head      uint64 // sequence number of the next value to be written
	receivers int
	closed    bool
	wake      chan struct{} // closed and replaced on every send and on close
}

// New creates a Sender retaining up to capacity values per receiver.
func New[T any](capacity int) *Sender[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sender[T]{
		buf:  make([]T, capacity),
		wake: make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (s *Sender[T]) Capacity() int { return len(s.buf) }

// Receivers returns the number of attached receivers.
func (s *Sender[T]) Receivers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivers
}

// Send publishes v to every attached receiver and returns how many were
// attached. With no receivers the value is discarded. Send on a closed
// Sender is a no-op returning 0.
func (s *Sender[T]) Send(v T) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.receivers == 0 {
		return 0
	}

	s.buf[s.head%uint64(len(s.buf))] = v
	s.head++
	close(s.wake)
	s.wake = make(chan struct{})
	return s.receivers
}

// Subscribe attaches a new receiver positioned after the last sent value.
func (s *Sender[T]) Subscribe() *Receiver[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Receiver[T]{s: s, next: s.head}
	if s.closed {
		r.detached = true
		return r
	}
	s.receivers++
	return r
}

// Close wakes every receiver; they drain what is retained and then get
// ErrClosed. Close is idempotent.
func (s *Sender[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.wake)
}

// Closed reports whether Close was called.
func (s *Sender[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Receiver is one consumer of a Sender. A Receiver must not be used from
// more than one goroutine at a time.
type Receiver[T any] struct {
	s        *Sender[T]
	next     uint64
	detached bool
}

// Recv returns the next value. It blocks until a value is available, the
// sender is closed, or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		s := r.s
		s.mu.Lock()
		if r.detached {
			s.mu.Unlock()
			return zero, ErrClosed
		}

		retained := uint64(len(s.buf))
		if s.head < retained {
			retained = s.head
		}
		oldest := s.head - retained

		if r.next < oldest {
			skipped := oldest - r.next
			r.next = oldest
			s.mu.Unlock()
			return zero, &LaggedError{Skipped: skipped}
		}

		if r.next < s.head {
			v := s.buf[r.next%uint64(len(s.buf))]
			r.next++
			s.mu.Unlock()
			return v, nil
		}

		if s.closed {
			s.mu.Unlock()
			return zero, ErrClosed
		}

		wake := s.wake
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-wake:
		}
	}
}

// Pending returns how many sent values this receiver has not read yet,
// including values already overwritten.
func (r *Receiver[T]) Pending() uint64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.head - r.next
}

// Close detaches the receiver. Subsequent Recv calls return ErrClosed.
func (r *Receiver[T]) Close() {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.detached {
		return
	}
	r.detached = true
	if !r.s.closed {
		r.s.receivers--
	}
}
