// Package observability wires OpenTelemetry tracing and metrics for the
// notify service.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("notify-server"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanPublish)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("notify-server"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewNotifyMetrics(observability.Meter("notify"))
//	metrics.RecordPublish(ctx, "NewMessage", delivered, dropped)
//
// A nil *NotifyMetrics is valid and records nothing.
package observability
