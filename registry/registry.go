// Package registry maps connected users to their live event channels.
//
// Each user has at most one broadcast endpoint. Sessions attach receivers to
// it with Acquire and detach with the returned Guard; publishers push events
// with Publish, which never creates entries. The map is split into lock
// shards so traffic for different users does not contend on one mutex.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/kbukum/notify/broadcast"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
)

// ShardCount is the number of lock shards. A user lives in shard id % ShardCount.
const ShardCount = 32

// Receiver is a session's handle onto a user's channel.
type Receiver = broadcast.Receiver[event.Event]

type shard struct {
	mu      sync.RWMutex
	senders map[uint64]*broadcast.Sender[event.Event]
}

// Registry is a concurrency-safe map from user id to broadcast endpoint.
type Registry struct {
	shards   [ShardCount]shard
	capacity int
	closed   atomic.Bool
	log      *logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity sets the per-user buffer size. Defaults to
// broadcast.DefaultCapacity.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithLogger sets the logger used for entry lifecycle messages.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		capacity: broadcast.DefaultCapacity,
		log:      logger.WithComponent("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.shards {
		r.shards[i].senders = make(map[uint64]*broadcast.Sender[event.Event])
	}
	return r
}

func (r *Registry) shard(userID uint64) *shard {
	return &r.shards[userID%ShardCount]
}

// Capacity returns the per-user buffer size.
func (r *Registry) Capacity() int { return r.capacity }

// GetOrCreate returns a new receiver on the user's endpoint, creating the
// endpoint if absent. Concurrent calls for the same absent user all attach
// to a single endpoint. After Close it returns a receiver that reports
// broadcast.ErrClosed at once.
func (r *Registry) GetOrCreate(userID uint64) *Receiver {
	if r.closed.Load() {
		return closedReceiver()
	}

	sh := r.shard(userID)

	sh.mu.RLock()
	tx, ok := sh.senders[userID]
	if ok {
		rx := tx.Subscribe()
		sh.mu.RUnlock()
		return rx
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if r.closed.Load() {
		return closedReceiver()
	}
	if tx, ok = sh.senders[userID]; !ok {
		tx = broadcast.New[event.Event](r.capacity)
		sh.senders[userID] = tx
		r.log.Debug("channel created", logger.Fields(logger.FieldUserID, userID))
	}
	return tx.Subscribe()
}

// Acquire attaches a receiver for userID and returns the guard that
// releases it. Callers must Release the guard on every exit path.
func (r *Registry) Acquire(userID uint64) (*Receiver, *Guard) {
	rx := r.GetOrCreate(userID)
	return rx, &Guard{registry: r, userID: userID, rx: rx}
}

// Remove deletes the user's entry and closes its endpoint, so receivers
// still attached drain what is buffered and then see broadcast.ErrClosed.
// Removing an absent user is a no-op.
func (r *Registry) Remove(userID uint64) {
	sh := r.shard(userID)

	sh.mu.Lock()
	tx, ok := sh.senders[userID]
	if ok {
		delete(sh.senders, userID)
	}
	sh.mu.Unlock()

	if ok {
		tx.Close()
		r.log.Debug("channel removed", logger.Fields(logger.FieldUserID, userID))
	}
}

// Publish pushes ev onto the user's endpoint. It reports whether the user
// had an entry; absent users are skipped without creating one.
func (r *Registry) Publish(userID uint64, ev event.Event) bool {
	sh := r.shard(userID)

	sh.mu.RLock()
	tx, ok := sh.senders[userID]
	if ok {
		tx.Send(ev)
	}
	sh.mu.RUnlock()
	return ok
}

// Contains reports whether the user has an entry.
func (r *Registry) Contains(userID uint64) bool {
	sh := r.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.senders[userID]
	return ok
}

// Len returns the number of users with an entry.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		n += len(sh.senders)
		sh.mu.RUnlock()
	}
	return n
}

// Receivers returns the number of receivers attached across all users.
func (r *Registry) Receivers() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for _, tx := range sh.senders {
			n += tx.Receivers()
		}
		sh.mu.RUnlock()
	}
	return n
}

// Close removes every entry and closes every endpoint. Later calls to
// GetOrCreate return closed receivers. Close is idempotent.
func (r *Registry) Close() {
	if r.closed.Swap(true) {
		return
	}
	var senders []*broadcast.Sender[event.Event]
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for id, tx := range sh.senders {
			senders = append(senders, tx)
			delete(sh.senders, id)
		}
		sh.mu.Unlock()
	}
	for _, tx := range senders {
		tx.Close()
	}
	r.log.Info("registry closed", logger.Fields("channels", len(senders)))
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool { return r.closed.Load() }

func closedReceiver() *Receiver {
	tx := broadcast.New[event.Event](1)
	tx.Close()
	return tx.Subscribe()
}
