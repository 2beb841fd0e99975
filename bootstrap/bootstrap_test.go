package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/config"
	"github.com/kbukum/notify/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type stubComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (s *stubComponent) Name() string { return s.name }
func (s *stubComponent) Start(ctx context.Context) error {
	s.started = true
	return s.startErr
}
func (s *stubComponent) Stop(ctx context.Context) error {
	s.stopped = true
	return s.stopErr
}
func (s *stubComponent) Health(ctx context.Context) component.Health { return s.health }

func newTestConfig(name string) *testConfig {
	return &testConfig{ServiceConfig: config.ServiceConfig{
		Name:        name,
		Version:     "1.0.0",
		Environment: "development",
	}}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	app, err := NewApp(newTestConfig("notify-test"), WithLogger(logger.Nop()), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func healthy(name string) *stubComponent {
	return &stubComponent{name: name, health: component.Health{Name: name, Status: component.StatusHealthy}}
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "notify-test" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %q %q", app.Name, app.Version)
	}
	if app.Components == nil || app.Logger == nil {
		t.Fatal("expected components and logger")
	}
	if app.Cfg.Logging.ServiceName != "notify-test" {
		t.Errorf("expected logging service name to follow config name, got %q", app.Cfg.Logging.ServiceName)
	}
	if app.gracefulTimeout != time.Second {
		t.Errorf("expected 1s graceful timeout, got %v", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	if _, err := NewApp(&testConfig{}); err == nil {
		t.Error("expected validation error for missing name")
	}
}

func TestDefaultGracefulTimeout(t *testing.T) {
	app, err := NewApp(newTestConfig("svc"), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	if app.gracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("expected %v, got %v", DefaultGracefulTimeout, app.gracefulTimeout)
	}
}

func TestRunLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := healthy("sse")
	if err := app.RegisterComponent(c); err != nil {
		t.Fatal(err)
	}

	var order []string
	app.OnStart(func(ctx context.Context) error { order = append(order, "start"); return nil })
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		order = append(order, "configure")
		return nil
	})
	app.OnReady(func(ctx context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(ctx context.Context) error { order = append(order, "stop"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !c.started || !c.stopped {
		t.Errorf("expected component started and stopped, got %v %v", c.started, c.stopped)
	}
	if fmt.Sprint(order) != "[start configure ready stop]" {
		t.Errorf("unexpected hook order %v", order)
	}
}

func TestRunStartFailureStopsStarted(t *testing.T) {
	app := newTestApp(t)
	first := healthy("sse")
	failing := &stubComponent{name: "pglisten", startErr: fmt.Errorf("connection refused")}
	_ = app.RegisterComponent(first)
	_ = app.RegisterComponent(failing)

	err := app.Run(context.Background())
	if err == nil {
		t.Fatal("expected startup error")
	}
	if !first.stopped {
		t.Error("expected the started component to be stopped")
	}
	if failing.stopped {
		t.Error("expected the failed component not to be stopped")
	}
}

func TestHookErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(a *App[*testConfig])
	}{
		{"start", func(a *App[*testConfig]) {
			a.OnStart(func(ctx context.Context) error { return fmt.Errorf("boom") })
		}},
		{"configure", func(a *App[*testConfig]) {
			a.OnConfigure(func(ctx context.Context, _ *App[*testConfig]) error { return fmt.Errorf("boom") })
		}},
		{"ready", func(a *App[*testConfig]) {
			a.OnReady(func(ctx context.Context) error { return fmt.Errorf("boom") })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			tt.setup(app)
			if err := app.Run(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStopHookErrorIsReturned(t *testing.T) {
	app := newTestApp(t)
	app.OnStop(func(ctx context.Context) error { return fmt.Errorf("drain failed") })
	if err := app.Shutdown(); err == nil {
		t.Error("expected stop hook error")
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	_ = app.RegisterComponent(healthy("sse"))
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}

	_ = app.RegisterComponent(&stubComponent{name: "redis", health: component.Health{
		Name: "redis", Status: component.StatusUnhealthy, Message: "timeout",
	}})
	if err := app.ReadyCheck(context.Background()); err == nil {
		t.Error("expected ready check error")
	}
}

func TestWaitForSignalContextCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if sig := app.WaitForSignal(ctx); sig != nil {
		t.Errorf("expected nil signal, got %v", sig)
	}
}
