// Command notify-server streams chat events to connected users over
// Server-Sent Events.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/notify/api"
	"github.com/kbukum/notify/auth"
	"github.com/kbukum/notify/bootstrap"
	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/config"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/notify"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/pglisten"
	"github.com/kbukum/notify/redis"
	"github.com/kbukum/notify/registry"
	"github.com/kbukum/notify/relay"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/sse"
)

const serviceName = "notify-server"

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg); err != nil {
		return err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	if cfg.Observability.Enabled {
		if err := initTelemetry(ctx, app); err != nil {
			return err
		}
	}
	metrics, err := observability.NewNotifyMetrics(observability.Meter(serviceName))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	verifier, err := auth.NewService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	reg := registry.New(
		registry.WithCapacity(cfg.Notify.Capacity),
		registry.WithLogger(logger.WithComponent("registry")),
	)
	var broadcaster notify.Broadcaster = notify.NewPublisher(reg,
		notify.WithMetrics(metrics),
		notify.WithLogger(logger.WithComponent("publisher")),
	)

	var rel *relay.Relay
	if cfg.Redis.Enabled {
		rel = relay.New(
			redis.NewComponent(cfg.Redis, logger.WithComponent("redis")),
			broadcaster,
			relay.WithBackoff(cfg.Redis.Reconnect),
			relay.WithLogger(logger.WithComponent("relay")),
		)
		broadcaster = rel
	}

	srv := server.New(cfg.Server, app.Logger)
	api.New(reg, broadcaster, verifier,
		api.WithInternalKey(cfg.Auth.InternalKey),
		api.WithMaxStreams(cfg.Notify.MaxStreams),
		api.WithSessionOptions(
			sse.WithHeartbeat(cfg.Notify.Heartbeat),
			sse.WithMetrics(metrics),
		),
	).Register(srv.Engine())
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll)

	// Stop runs in reverse: event sources first, then the registry so open
	// streams end with a disconnect, then the HTTP server.
	components := []component.Component{
		server.NewComponent(srv),
		sse.NewComponent(reg, api.PathEvents),
	}
	if rel != nil {
		components = append(components, rel)
	}
	if cfg.Postgres.Enabled {
		components = append(components, pglisten.New(cfg.Postgres, broadcaster))
	}
	for _, c := range components {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	return app.Run(ctx)
}

// initTelemetry installs the OTLP meter and tracer providers and flushes
// them on shutdown.
func initTelemetry(ctx context.Context, app *bootstrap.App[*Config]) error {
	cfg := app.Cfg
	mp, err := observability.InitMeter(ctx,
		cfg.Observability.MeterConfig(cfg.Name, cfg.Version, cfg.Environment))
	if err != nil {
		return fmt.Errorf("meter: %w", err)
	}
	tp, err := observability.InitTracer(ctx,
		cfg.Observability.TracerConfig(cfg.Name, cfg.Version, cfg.Environment))
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	app.OnStop(mp.Shutdown, tp.Shutdown)
	return nil
}
