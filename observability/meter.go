package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/notify/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the global meter provider with an OTLP HTTP
// exporter and a periodic reader. The returned provider must be shut down
// on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// NotifyMetrics holds the instruments of the notification pipeline.
// All methods are no-ops on a nil receiver.
type NotifyMetrics struct {
	published    metric.Int64Counter
	dropped      metric.Int64Counter
	sessions     metric.Int64UpDownCounter
	lagged       metric.Int64Counter
	encodeErrors metric.Int64Counter
}

// NewNotifyMetrics creates the notification instruments on meter.
func NewNotifyMetrics(meter metric.Meter) (*NotifyMetrics, error) {
	published, err := meter.Int64Counter("notify.events.published",
		metric.WithDescription("Events handed to a connected user's channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notify.events.published counter: %w", err)
	}

	dropped, err := meter.Int64Counter("notify.events.dropped",
		metric.WithDescription("Events dropped because the recipient was not connected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notify.events.dropped counter: %w", err)
	}

	sessions, err := meter.Int64UpDownCounter("notify.sessions.active",
		metric.WithDescription("Number of open subscription sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notify.sessions.active gauge: %w", err)
	}

	lagged, err := meter.Int64Counter("notify.consumer.lagged",
		metric.WithDescription("Events skipped by sessions that fell behind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notify.consumer.lagged counter: %w", err)
	}

	encodeErrors, err := meter.Int64Counter("notify.events.encode_errors",
		metric.WithDescription("Events dropped because they could not be serialized"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notify.events.encode_errors counter: %w", err)
	}

	return &NotifyMetrics{
		published:    published,
		dropped:      dropped,
		sessions:     sessions,
		lagged:       lagged,
		encodeErrors: encodeErrors,
	}, nil
}

// RecordPublish records the outcome of one publish call.
func (m *NotifyMetrics) RecordPublish(ctx context.Context, label string, delivered, dropped int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event", label))
	if delivered > 0 {
		m.published.Add(ctx, int64(delivered), attrs)
	}
	if dropped > 0 {
		m.dropped.Add(ctx, int64(dropped), attrs)
	}
}

// SessionOpened increments the active session count.
func (m *NotifyMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1)
}

// SessionClosed decrements the active session count.
func (m *NotifyMetrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, -1)
}

// RecordLag records events a session skipped after falling behind.
func (m *NotifyMetrics) RecordLag(ctx context.Context, skipped uint64) {
	if m == nil || skipped == 0 {
		return
	}
	m.lagged.Add(ctx, int64(skipped))
}

// RecordEncodeError records an event that could not be serialized.
func (m *NotifyMetrics) RecordEncodeError(ctx context.Context, label string) {
	if m == nil {
		return
	}
	m.encodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("event", label)))
}
