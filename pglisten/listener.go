// Package pglisten turns Postgres LISTEN/NOTIFY traffic from the chat
// database into published notify events.
//
// Database triggers, installed from the embedded migrations, emit chat_updated on chat inserts,
// updates and deletes, and chat_message_created on new messages. The
// listener holds one dedicated connection, reconnects with backoff when it
// drops and hands each parsed notification to a notify.Broadcaster.
package pglisten

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/notify"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/resilience"
)

// Conn is the subset of *pgx.Conn the listener uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a listener connection.
type Dialer func(ctx context.Context) (Conn, error)

// Listener is a lifecycle-managed Postgres change feed.
type Listener struct {
	cfg         Config
	broadcaster notify.Broadcaster
	dial        Dialer
	migrate     Migrator
	log         *logger.Logger

	connected atomic.Bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

var (
	_ component.Component   = (*Listener)(nil)
	_ component.Describable = (*Listener)(nil)
)

// Option configures a Listener.
type Option func(*Listener)

// WithDialer replaces the pgx dialer.
func WithDialer(d Dialer) Option {
	return func(l *Listener) { l.dial = d }
}

// WithMigrator replaces the trigger installer run on start.
func WithMigrator(m Migrator) Option {
	return func(l *Listener) { l.migrate = m }
}

// WithLogger sets the listener's logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// New creates a listener publishing through b.
func New(cfg Config, b notify.Broadcaster, opts ...Option) *Listener {
	cfg.ApplyDefaults()
	l := &Listener{
		cfg:         cfg,
		broadcaster: b,
		log:         logger.WithComponent("pglisten"),
	}
	l.dial = l.dialPgx
	l.migrate = l.installTriggers
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Listener) connConfig() (*pgx.ConnConfig, error) {
	cc, err := pgx.ParseConfig(l.cfg.DSN)
	if err != nil {
		return nil, err
	}
	if l.cfg.TLS.Enabled {
		tlsConfig, err := l.cfg.TLS.Build()
		if err != nil {
			return nil, err
		}
		cc.TLSConfig = tlsConfig
		cc.Fallbacks = nil
	}
	return cc, nil
}

func (l *Listener) dialPgx(ctx context.Context) (Conn, error) {
	cc, err := l.connConfig()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancel()
	conn, err := pgx.ConnectConfig(ctx, cc)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (l *Listener) installTriggers(ctx context.Context) error {
	cc, err := l.connConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancel()
	return InstallTriggers(ctx, cc)
}

// Name returns the component name.
func (l *Listener) Name() string { return "pglisten" }

// Start opens the first connection, so a misconfigured database fails
// startup, then listens in the background.
func (l *Listener) Start(ctx context.Context) error {
	if l.cfg.InstallTriggers {
		if err := l.migrate(ctx); err != nil {
			return errors.ConnectionFailed("postgres", fmt.Errorf("install triggers: %w", err))
		}
		l.log.Info("notify triggers installed")
	}

	conn, err := l.connect(ctx)
	if err != nil {
		return errors.ConnectionFailed("postgres", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.cancel = cancel
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(runCtx, conn)
	return nil
}

// Stop ends the listener and closes its connection.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health is healthy while connected and degraded while reconnecting.
func (l *Listener) Health(_ context.Context) component.Health {
	l.mu.Lock()
	running := l.cancel != nil
	l.mu.Unlock()

	switch {
	case !running:
		return component.Health{Name: l.Name(), Status: component.StatusUnhealthy, Message: "not running"}
	case !l.connected.Load():
		return component.Health{Name: l.Name(), Status: component.StatusDegraded, Message: "reconnecting"}
	default:
		return component.Health{Name: l.Name(), Status: component.StatusHealthy}
	}
}

// Describe returns infrastructure summary info for the startup log.
func (l *Listener) Describe() component.Description {
	details := fmt.Sprintf("channels=%v", Channels())
	if cfg, err := pgx.ParseConfig(l.cfg.DSN); err == nil {
		details = fmt.Sprintf("%s:%d/%s %s", cfg.Host, cfg.Port, cfg.Database, details)
	}
	return component.Description{Name: "Postgres listener", Type: "postgres", Details: details}
}

// connect dials and issues LISTEN for every channel.
func (l *Listener) connect(ctx context.Context) (Conn, error) {
	conn, err := l.dial(ctx)
	if err != nil {
		return nil, err
	}
	for _, ch := range Channels() {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("listen %s: %w", ch, err)
		}
	}
	l.connected.Store(true)
	l.log.Info("listening for database notifications", logger.Fields("channels", Channels()))
	return conn, nil
}

// run consumes notifications until ctx is done, reconnecting with backoff
// whenever the connection fails.
func (l *Listener) run(ctx context.Context, conn Conn) {
	defer close(l.done)

	cfg := l.cfg.Reconnect.Reconnect()
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		l.log.Warn("database listener disconnected, reconnecting", logger.Fields(
			"attempt", attempt,
			"backoff", backoff.String(),
			logger.FieldError, err.Error(),
		))
	}

	err := resilience.RetryFunc(ctx, cfg, func() error {
		if conn == nil {
			var err error
			if conn, err = l.connect(ctx); err != nil {
				return err
			}
		}
		err := l.consume(ctx, conn)
		l.connected.Store(false)
		_ = conn.Close(context.Background())
		conn = nil
		return err
	})
	if err != nil && !stderrors.Is(err, context.Canceled) {
		l.log.Error("database listener stopped", logger.ErrorFields("listen", err))
	}
}

func (l *Listener) consume(ctx context.Context, conn Conn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		l.handle(ctx, n.Channel, n.Payload)
	}
}

// handle parses and publishes one notification. Malformed payloads are
// logged and skipped.
func (l *Listener) handle(ctx context.Context, channel, payload string) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPGNotify,
		trace.WithAttributes(attribute.String(observability.AttrChannel, channel)))
	defer span.End()

	n, err := Parse(channel, payload)
	if err != nil {
		observability.SetSpanError(ctx, err)
		l.log.Warn("skipping malformed notification", logger.Fields(
			observability.AttrChannel, channel,
			logger.FieldError, err.Error(),
		))
		return
	}
	if n == nil {
		return
	}

	span.SetAttributes(attribute.String(observability.AttrEvent, event.Label(n.Event)))
	if _, err := l.broadcaster.Publish(ctx, n.Event, n.Recipients); err != nil {
		observability.SetSpanError(ctx, err)
		l.log.Error("publish failed", logger.Fields(
			logger.FieldEvent, event.Label(n.Event),
			logger.FieldError, err.Error(),
		))
	}
}
