package sse

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/notify/broadcast"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/registry"
)

// DefaultHeartbeat is the idle interval after which a heartbeat record is
// emitted.
const DefaultHeartbeat = 10 * time.Second

// Session is one client's subscription to its user's channel.
type Session struct {
	id        string
	userID    uint64
	rx        *registry.Receiver
	guard     *registry.Guard
	heartbeat time.Duration
	metrics   *observability.NotifyMetrics
	log       *logger.Logger
	opened    time.Time
	closeOnce sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithHeartbeat sets the idle interval between heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithMetrics records session activity on m.
func WithMetrics(m *observability.NotifyMetrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the session's base logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Subscribe attaches a new session to userID's channel, creating the
// channel if needed. The session must be closed, either by draining
// Records or by calling Close.
func Subscribe(reg *registry.Registry, userID uint64, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		userID:    userID,
		heartbeat: DefaultHeartbeat,
		log:       logger.WithComponent("sse"),
		opened:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logger.Fields(
		logger.FieldSessionID, s.id,
		logger.FieldUserID, userID,
	))

	s.rx, s.guard = reg.Acquire(userID)
	s.metrics.SessionOpened(context.Background())
	s.log.Debug("session opened")
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the subscribed user.
func (s *Session) UserID() uint64 { return s.userID }

// Heartbeat returns the idle interval between heartbeats.
func (s *Session) Heartbeat() time.Duration { return s.heartbeat }

// Close releases the session's registry entry. It is safe to call more
// than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.guard.Release()
		s.metrics.SessionClosed(context.Background())
		s.log.Debug("session closed", logger.DurationFields("session", time.Since(s.opened)))
	})
}

// Records returns the session's wire records: one per event in publish
// order, a heartbeat after every idle interval, and a final disconnect
// record once ctx is done or the channel is closed. Lagging and
// unencodable events are skipped. The session is closed when the sequence
// ends, including when the consumer stops ranging early.
func (s *Session) Records(ctx context.Context) iter.Seq[event.Record] {
	return func(yield func(event.Record) bool) {
		defer s.Close()

		last := time.Now()
		for {
			rctx, cancel := context.WithDeadline(ctx, last.Add(s.heartbeat))
			ev, err := s.rx.Recv(rctx)
			cancel()

			if err != nil {
				var lagged *broadcast.LaggedError
				switch {
				case ctx.Err() != nil:
					s.log.Debug("session ended", logger.Fields("reason", ctx.Err().Error()))
				case errors.Is(err, context.DeadlineExceeded):
					if !yield(event.Heartbeat()) {
						return
					}
					last = time.Now()
					continue
				case errors.As(err, &lagged):
					s.metrics.RecordLag(ctx, lagged.Skipped)
					s.log.Warn("session lagged, skipping events", logger.Fields("skipped", lagged.Skipped))
					continue
				case errors.Is(err, broadcast.ErrClosed):
					s.log.Debug("channel closed")
				default:
					s.log.Error("receive failed", logger.MergeWithError(nil, err))
				}
				yield(event.Disconnect())
				return
			}

			rec, err := event.Encode(ev)
			if err != nil {
				label := event.Label(ev)
				s.metrics.RecordEncodeError(ctx, label)
				s.log.Error("dropping event that failed to encode", logger.MergeWithError(
					logger.Fields(logger.FieldEvent, label), err))
				continue
			}
			if !yield(rec) {
				return
			}
			last = time.Now()
		}
	}
}
