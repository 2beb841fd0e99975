package main

import (
	"fmt"
	"time"

	"github.com/kbukum/notify/auth"
	"github.com/kbukum/notify/broadcast"
	"github.com/kbukum/notify/config"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/pglisten"
	"github.com/kbukum/notify/redis"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/sse"
)

// Config is the notify-server configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	Notify        NotifyConfig         `yaml:"notify" mapstructure:"notify"`
	Postgres      pglisten.Config      `yaml:"postgres" mapstructure:"postgres"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// NotifyConfig tunes the subscription layer.
type NotifyConfig struct {
	// Heartbeat is the idle interval between keep-alive comments.
	Heartbeat time.Duration `yaml:"heartbeat" mapstructure:"heartbeat"`
	// Capacity is the per-user buffer size.
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
	// MaxStreams caps concurrent event streams; zero means no cap.
	MaxStreams int `yaml:"max_streams" mapstructure:"max_streams"`
}

// ApplyDefaults fills unset fields of every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Postgres.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Observability.ApplyDefaults()
	if c.Notify.Heartbeat <= 0 {
		c.Notify.Heartbeat = sse.DefaultHeartbeat
	}
	if c.Notify.Capacity <= 0 {
		c.Notify.Capacity = broadcast.DefaultCapacity
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if c.Notify.MaxStreams < 0 {
		return fmt.Errorf("notify.max_streams must not be negative (got: %d)", c.Notify.MaxStreams)
	}
	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
