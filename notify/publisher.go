// Package notify fans domain events out to the users they concern.
//
// Publishing is fire-and-forget: each recipient with a live channel gets
// the event pushed onto it, absent recipients are skipped, and slow
// consumers never block the caller.
package notify

import (
	"context"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/registry"
)

// Broadcaster delivers an event to a set of users. Event sources depend on
// this rather than on a concrete Publisher so a relay can stand in for the
// local registry.
type Broadcaster interface {
	Publish(ctx context.Context, ev event.Event, recipients []uint64) (Result, error)
}

// Result counts the outcome of one publish call.
type Result struct {
	// Delivered is the number of recipients that had a live channel.
	Delivered int `json:"delivered"`
	// Dropped is the number of recipients skipped because they had none.
	Dropped int `json:"dropped"`
	// Instances is the number of server instances an event was relayed
	// to; zero when delivery was local only.
	Instances int `json:"instances,omitempty"`
}

// Add returns the sum of two results.
func (r Result) Add(o Result) Result {
	return Result{
		Delivered: r.Delivered + o.Delivered,
		Dropped:   r.Dropped + o.Dropped,
		Instances: r.Instances + o.Instances,
	}
}

// Publisher pushes events into a registry.
type Publisher struct {
	registry *registry.Registry
	metrics  *observability.NotifyMetrics
	log      *logger.Logger
}

var _ Broadcaster = (*Publisher)(nil)

// Option configures a Publisher.
type Option func(*Publisher)

// WithMetrics records publish outcomes on m.
func WithMetrics(m *observability.NotifyMetrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithLogger sets the publisher's logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPublisher creates a publisher over reg.
func NewPublisher(reg *registry.Registry, opts ...Option) *Publisher {
	p := &Publisher{
		registry: reg,
		log:      logger.WithComponent("publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish delivers ev to every distinct recipient with a live channel.
// Recipients without one are counted as dropped; that is not an error.
func (p *Publisher) Publish(ctx context.Context, ev event.Event, recipients []uint64) (Result, error) {
	label := event.Label(ev)
	if label == "" {
		return Result{}, errors.MissingField("event")
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanPublish,
		trace.WithAttributes(
			attribute.String(observability.AttrEvent, label),
			attribute.Int(observability.AttrRecipients, len(recipients)),
		))
	defer span.End()

	var res Result
	for _, id := range lo.Uniq(recipients) {
		if p.registry.Publish(id, ev) {
			res.Delivered++
		} else {
			res.Dropped++
		}
	}

	span.SetAttributes(
		attribute.Int(observability.AttrDelivered, res.Delivered),
		attribute.Int(observability.AttrDropped, res.Dropped),
	)
	p.metrics.RecordPublish(ctx, label, res.Delivered, res.Dropped)

	p.log.WithContext(ctx).Debug("event published", logger.Fields(
		logger.FieldEvent, label,
		logger.FieldRecipients, len(recipients),
		"delivered", res.Delivered,
		"dropped", res.Dropped,
	))
	return res, nil
}

// PublishChat publishes a chat event to the chat's members.
func (p *Publisher) PublishChat(ctx context.Context, ev event.Event, chat event.Chat) (Result, error) {
	return p.Publish(ctx, ev, chat.MemberIDs())
}
