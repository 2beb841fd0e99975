package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/resilience"
	"github.com/kbukum/notify/security"
	"github.com/kbukum/notify/security/tlstest"
)

func testConfig(t *testing.T) (Config, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return Config{Enabled: true, Addr: mr.Addr()}, mr
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Channel != DefaultChannel || cfg.PoolSize != 10 || cfg.MaxRetries != 3 || cfg.DialTimeout != "5s" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing addr", Config{Enabled: true}},
		{"bad timeout", Config{Enabled: true, Addr: "localhost:6379", ReadTimeout: "soon"}},
		{"tls cert without key", Config{Enabled: true, Addr: "localhost:6379", TLS: security.TLSConfig{Enabled: true, CertFile: "c.pem"}}},
		{"bad reconnect", Config{Enabled: true, Addr: "localhost:6379", Reconnect: resilience.BackoffConfig{Initial: time.Minute, Max: time.Second}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	if _, err := New(Config{}, logger.Nop()); err == nil {
		t.Fatal("expected error for disabled redis")
	}
}

func TestNew_TLS(t *testing.T) {
	files := tlstest.Generate(t)
	c, err := New(Config{
		Enabled: true,
		Addr:    "localhost:6379",
		TLS:     security.TLSConfig{Enabled: true, CAFile: files.CAFile},
	}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()
	if c.Unwrap().Options().TLSConfig == nil {
		t.Fatal("expected TLS config on the client")
	}

	_, err = New(Config{
		Enabled: true,
		Addr:    "localhost:6379",
		TLS:     security.TLSConfig{Enabled: true, CAFile: "/does/not/exist"},
	}, logger.Nop())
	if err == nil {
		t.Fatal("expected error for unreadable CA file")
	}
}

func TestClient_PublishSubscribe(t *testing.T) {
	cfg, _ := testConfig(t)
	client, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	ps, err := client.Subscribe(ctx, client.Channel())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer ps.Close()

	n, err := client.Publish(ctx, client.Channel(), []byte(`{"label":"NewChat"}`))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n != 1 {
		t.Errorf("receivers = %d, want 1", n)
	}

	select {
	case msg := <-ps.Channel():
		if msg.Payload != `{"label":"NewChat"}` {
			t.Errorf("payload = %s", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	cfg, mr := testConfig(t)
	comp := NewComponent(cfg, logger.Nop())
	ctx := context.Background()

	if comp.Client() != nil {
		t.Fatal("Client() should be nil before Start")
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}

	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health = %s: %s", h.Status, h.Message)
	}
	if d := comp.Describe(); d.Type != "redis" {
		t.Errorf("Describe() = %+v", d)
	}

	mr.Close()
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health with redis down = %s", h.Status)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if comp.Client() != nil {
		t.Error("Client() should be nil after Stop")
	}
}

func TestComponent_StartFailsWhenUnreachable(t *testing.T) {
	cfg, mr := testConfig(t)
	mr.Close()

	comp := NewComponent(cfg, logger.Nop())
	if err := comp.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
}
