package registry

import (
	"sync"
	"sync/atomic"
)

// Guard ties a session's lifetime to its registry entry. Release detaches
// the session's receiver and removes the user's entry, exactly once, from
// whichever goroutine calls it first.
//
// Removal is unconditional: if the same user has another live session, that
// session's channel is removed too and its stream ends. There is no per-user
// reference count; one active session per user is the expected case.
type Guard struct {
	registry *Registry
	userID   uint64
	rx       *Receiver
	once     sync.Once
	released atomic.Bool
}

// UserID returns the user the guard was acquired for.
func (g *Guard) UserID() uint64 { return g.userID }

// Release detaches the receiver and removes the user's entry. Calls after
// the first are no-ops.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.rx.Close()
		g.registry.Remove(g.userID)
		g.released.Store(true)
	})
}

// Released reports whether Release has run.
func (g *Guard) Released() bool {
	return g.released.Load()
}
