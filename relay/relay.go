// Package relay fans events out across server instances over Redis
// pub/sub. Every instance publishes through the relay and delivers what
// it receives on the channel to its own registry, so a user is reached
// whichever instance holds their stream.
package relay

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/notify"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/redis"
	"github.com/kbukum/notify/resilience"
)

// Relay publishes events to Redis and delivers relayed events locally.
// While Redis is unreachable it degrades to local delivery.
type Relay struct {
	redis   *redis.Component
	local   notify.Broadcaster
	breaker *resilience.CircuitBreaker
	backoff resilience.BackoffConfig
	id      string
	log     *logger.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	subscribed bool
}

var (
	_ notify.Broadcaster    = (*Relay)(nil)
	_ component.Component   = (*Relay)(nil)
	_ component.Describable = (*Relay)(nil)
)

// Option configures a Relay.
type Option func(*Relay)

// WithBackoff sets the resubscribe policy.
func WithBackoff(b resilience.BackoffConfig) Option {
	return func(r *Relay) { r.backoff = b }
}

// WithBreaker sets the circuit breaker guarding Redis publishes.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(r *Relay) { r.breaker = resilience.NewCircuitBreaker(cfg) }
}

// WithInstanceID sets the id stamped on published envelopes.
func WithInstanceID(id string) Option {
	return func(r *Relay) {
		if id != "" {
			r.id = id
		}
	}
}

// WithLogger sets the relay's logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a relay over conn that delivers to local.
func New(conn *redis.Component, local notify.Broadcaster, opts ...Option) *Relay {
	r := &Relay{
		redis: conn,
		local: local,
		id:    uuid.NewString(),
		log:   logger.WithComponent("relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.backoff.ApplyDefaults()
	if r.breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig("relay")
		cfg.Timeout = 10 * time.Second
		r.breaker = resilience.NewCircuitBreaker(cfg)
	}
	return r
}

// Name returns the component name.
func (r *Relay) Name() string { return "relay" }

// Start connects to Redis and subscribes to the relay channel. It returns
// once the first subscription is live.
func (r *Relay) Start(ctx context.Context) error {
	if err := r.redis.Start(ctx); err != nil {
		return err
	}
	client := r.redis.Client()

	ps, err := client.Subscribe(ctx, client.Channel())
	if err != nil {
		_ = r.redis.Stop(ctx)
		return errors.ConnectionFailed("redis", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	r.subscribed = true
	r.mu.Unlock()

	go r.run(runCtx, client, ps)

	r.log.Info("relay subscribed", logger.Fields(observability.AttrChannel, client.Channel(), "instance", r.id))
	return nil
}

// Stop ends the subscription and closes the Redis connection.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.redis.Stop(ctx)
}

// Health reports Redis health, degraded while the breaker is open or the
// subscription is being re-established.
func (r *Relay) Health(ctx context.Context) component.Health {
	h := r.redis.Health(ctx)
	h.Name = r.Name()
	if h.Status != component.StatusHealthy {
		return h
	}
	if state := r.breaker.State(); state != resilience.StateClosed {
		return component.Health{Name: h.Name, Status: component.StatusDegraded, Message: "publish circuit " + state.String()}
	}
	if !r.Subscribed() {
		return component.Health{Name: h.Name, Status: component.StatusDegraded, Message: "resubscribing"}
	}
	return h
}

// Describe returns infrastructure summary info for the startup log.
func (r *Relay) Describe() component.Description {
	d := r.redis.Describe()
	d.Name = "Redis relay"
	return d
}

// Subscribed reports whether the relay is currently subscribed.
func (r *Relay) Subscribed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribed
}

func (r *Relay) setSubscribed(v bool) {
	r.mu.Lock()
	r.subscribed = v
	r.mu.Unlock()
}

// Publish sends ev to every instance through Redis. When Redis is not
// available the event is delivered locally instead, reaching only users
// connected to this instance.
func (r *Relay) Publish(ctx context.Context, ev event.Event, recipients []uint64) (notify.Result, error) {
	label := event.Label(ev)
	if label == "" {
		return notify.Result{}, errors.MissingField("event")
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanRelayPublish,
		trace.WithAttributes(
			attribute.String(observability.AttrEvent, label),
			attribute.Int(observability.AttrRecipients, len(recipients)),
		))
	defer span.End()

	client := r.redis.Client()
	if client == nil {
		return r.fallback(ctx, ev, recipients, stderrors.New("relay not started"))
	}

	payload, err := Seal(r.id, ev, recipients)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return notify.Result{}, errors.Internal(err)
	}

	var instances int64
	err = r.breaker.Execute(func() error {
		var perr error
		instances, perr = client.Publish(ctx, client.Channel(), payload)
		return perr
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		return r.fallback(ctx, ev, recipients, err)
	}
	return notify.Result{Instances: int(instances)}, nil
}

func (r *Relay) fallback(ctx context.Context, ev event.Event, recipients []uint64, cause error) (notify.Result, error) {
	r.log.WithContext(ctx).Warn("relay unavailable, delivering locally", logger.Fields(
		logger.FieldEvent, event.Label(ev),
		logger.FieldError, cause.Error(),
	))
	return r.local.Publish(ctx, ev, recipients)
}

// run delivers relayed events until ctx is done, resubscribing with
// backoff whenever a receive fails. Health is degraded until the new
// subscription is confirmed.
func (r *Relay) run(ctx context.Context, client *redis.Client, ps *goredis.PubSub) {
	defer close(r.done)

	first := true
	err := resilience.RetryFunc(ctx, r.backoff.Reconnect(), func() error {
		if !first {
			var err error
			if ps, err = client.Subscribe(ctx, client.Channel()); err != nil {
				return err
			}
			r.setSubscribed(true)
			r.log.Info("relay resubscribed")
		}
		first = false
		err := r.consume(ctx, ps)
		r.setSubscribed(false)
		return err
	})
	if err != nil && !stderrors.Is(err, context.Canceled) {
		r.log.Error("relay stopped", logger.ErrorFields("subscribe", err))
	}
}

// consume delivers messages from ps until a receive fails or ctx is done.
// A failed receive ends this subscription; run opens a fresh one with
// backoff rather than leaving go-redis to reconnect the PubSub silently.
func (r *Relay) consume(ctx context.Context, ps *goredis.PubSub) error {
	defer ps.Close()
	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	defer stop()

	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("relay subscription lost", logger.Fields(logger.FieldError, err.Error()))
			return err
		}
		if m, ok := msg.(*goredis.Message); ok {
			r.deliver(ctx, []byte(m.Payload))
		}
	}
}

// deliver hands one relayed message to the local broadcaster. Malformed
// messages are logged and skipped.
func (r *Relay) deliver(ctx context.Context, payload []byte) {
	env, ev, err := Open(payload)
	if err != nil {
		r.log.Warn("dropping malformed relay message", logger.Fields(
			"origin", env.Origin,
			logger.FieldError, err.Error(),
		))
		return
	}
	if _, err := r.local.Publish(ctx, ev, env.Recipients); err != nil {
		r.log.Error("local delivery failed", logger.Fields(
			logger.FieldEvent, env.Label,
			logger.FieldError, err.Error(),
		))
	}
}
