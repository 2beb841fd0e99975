package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/notify/component"
)

// StopTimeout bounds the Stop call registered by Start.
const StopTimeout = 5 * time.Second

// Start starts c and stops it when the test and its subtests finish. A
// start failure fails the test immediately.
func Start(t testing.TB, c component.Component) {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start %s: %v", c.Name(), err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
		defer cancel()
		if err := c.Stop(ctx); err != nil {
			t.Errorf("stop %s: %v", c.Name(), err)
		}
	})
}

// WaitForStatus polls c until it reports want, failing the test after
// two seconds.
func WaitForStatus(t testing.TB, c component.Component, want component.HealthStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last component.Health
	for time.Now().Before(deadline) {
		last = c.Health(context.Background())
		if last.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s health = %s (%s), want %s", c.Name(), last.Status, last.Message, want)
}
