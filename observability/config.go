package observability

import (
	"fmt"
	"time"
)

// Config is the observability section of a service config.
type Config struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure       bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	MetricInterval string  `yaml:"metric_interval" mapstructure:"metric_interval"`
}

// ApplyDefaults sets defaults for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.MetricInterval == "" {
		c.MetricInterval = "15s"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0, 1] (got: %v)", c.SampleRate)
	}
	if _, err := time.ParseDuration(c.MetricInterval); err != nil {
		return fmt.Errorf("observability.metric_interval: %w", err)
	}
	return nil
}

// TracerConfig derives the tracer settings for a service.
func (c *Config) TracerConfig(serviceName, version, environment string) TracerConfig {
	tc := DefaultTracerConfig(serviceName)
	tc.ServiceVersion = version
	tc.Environment = environment
	tc.Endpoint = c.Endpoint
	tc.Insecure = c.Insecure
	tc.SampleRate = c.SampleRate
	return tc
}

// MeterConfig derives the meter settings for a service.
func (c *Config) MeterConfig(serviceName, version, environment string) MeterConfig {
	mc := DefaultMeterConfig(serviceName)
	mc.ServiceVersion = version
	mc.Environment = environment
	mc.Endpoint = c.Endpoint
	mc.Insecure = c.Insecure
	if d, err := time.ParseDuration(c.MetricInterval); err == nil {
		mc.Interval = d
	}
	return mc
}
