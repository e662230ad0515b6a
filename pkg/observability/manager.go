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

package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Manager owns the tracer and meter providers for the process.
type Manager struct {
	config Config

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *promclient.Registry
	metrics        *Metrics
}

func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{config: cfg}
}

// Initialize sets up tracing and metrics and installs both globally.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitGlobalTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	if !m.config.Metrics.Enabled {
		return nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	m.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	metrics, err := NewMetrics(m.meterProvider.Meter(instrumentationName), m.config.Metrics.Namespace)
	if err != nil {
		return err
	}

	m.registry = registry
	m.metrics = metrics
	SetGlobalMetrics(metrics)
	return nil
}

func (m *Manager) Metrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsPath returns the path metrics are served on, or "" when disabled.
func (m *Manager) MetricsPath() string {
	if !m.config.Metrics.Enabled {
		return ""
	}
	return m.config.Metrics.Endpoint
}

// Handler serves the Prometheus registry. It responds 404 when metrics are
// disabled.
func (m *Manager) Handler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if sdk, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, sdk.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		errs = append(errs, m.meterProvider.Shutdown(ctx))
	}
	SetGlobalMetrics(nil)
	return errors.Join(errs...)
}
