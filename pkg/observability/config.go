// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability wires OpenTelemetry tracing and Prometheus metrics
// for agents, retrieval, workflows and the HTTP surface.
package observability

import (
	"fmt"
	"time"
)

const (
	DefaultServiceName  = "legal-ai-vault"
	DefaultNamespace    = "vault"
	DefaultMetricsPath  = "/metrics"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)

type Config struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is "otlp" (gRPC) or "stdout".
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// SamplingRate is the fraction of traces sampled, 0.0 to 1.0.
	SamplingRate float64 `yaml:"sampling_rate"`

	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`

	// Insecure disables TLS for the OTLP connection. Defaults to true.
	Insecure *bool `yaml:"insecure"`

	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the HTTP path metrics are served on.
	Endpoint string `yaml:"endpoint"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`
}

func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = DefaultSamplingRate
	}
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOTLPEndpoint
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	switch c.Exporter {
	case "otlp":
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the otlp exporter")
		}
	case "stdout":
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout)", c.Exporter)
	}
	return nil
}

// IsInsecure returns whether to use an insecure connection.
func (c *TracingConfig) IsInsecure() bool {
	if c.Insecure == nil {
		return true
	}
	return *c.Insecure
}

func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultMetricsPath
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
}

func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}
