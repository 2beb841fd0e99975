package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/registry"
)

// Component exposes the subscription registry as a lifecycle-managed
// component. Stopping it closes every channel so live streams end with a
// disconnect record instead of hanging until the server times out.
type Component struct {
	registry *registry.Registry
	path     string
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps reg; path is the route clients subscribe on.
func NewComponent(reg *registry.Registry, path string) *Component {
	return &Component{registry: reg, path: path}
}

// Registry returns the wrapped registry.
func (c *Component) Registry() *registry.Registry { return c.registry }

// Name returns the component name.
func (c *Component) Name() string { return "sse" }

// Start is a no-op; the registry is ready on construction.
func (c *Component) Start(_ context.Context) error { return nil }

// Stop closes the registry.
func (c *Component) Stop(_ context.Context) error {
	c.registry.Close()
	return nil
}

// Health reports the number of connected users.
func (c *Component) Health(_ context.Context) component.Health {
	if c.registry.Closed() {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "registry closed"}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d users connected, %d sessions", c.registry.Len(), c.registry.Receivers()),
	}
}

// Describe reports the subscription route and buffer size.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "SSE Registry",
		Type:    "sse",
		Details: fmt.Sprintf("path=%s buffer=%d shards=%d", c.path, c.registry.Capacity(), registry.ShardCount),
	}
}
