// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the orchestrator over a small JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/observability"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/orchestrator"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

// HealthCheck reports whether a collaborator is reachable.
type HealthCheck func(ctx context.Context) error

// Server serves the orchestrator API.
type Server struct {
	addr    string
	orch    *orchestrator.Orchestrator
	builder *workflow.Builder
	obs     *observability.Manager
	checks  map[string]HealthCheck
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithObservability serves /metrics from obs and traces requests.
func WithObservability(obs *observability.Manager) Option {
	return func(s *Server) { s.obs = obs }
}

// WithWorkflowBuilder serves the workflow builder routes under
// /api/workflows/builder.
func WithWorkflowBuilder(b *workflow.Builder) Option {
	return func(s *Server) { s.builder = b }
}

// WithHealthCheck adds a named collaborator check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		if check != nil {
			s.checks[name] = check
		}
	}
}

func New(addr string, orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{addr: addr, orch: orch, checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(loggingMiddleware)
	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Metrics()))
	}

	r.Get("/health", s.handleHealth)
	if s.obs != nil && s.obs.MetricsPath() != "" {
		r.Handle(s.obs.MetricsPath(), s.obs.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/agents", s.handleListAgents)
		r.Post("/agents/{agent}", s.handleExecuteAgent)
		r.Get("/workflows", s.handleListWorkflows)
		if s.builder != nil {
			r.Route("/workflows/builder", func(r chi.Router) {
				r.Get("/", s.handleListDefinitions)
				r.Post("/", s.handleCreateDefinition)
				r.Get("/{id}", s.handleGetDefinition)
				r.Put("/{id}", s.handleUpdateDefinition)
				r.Delete("/{id}", s.handleDeleteDefinition)
			})
		}
		r.Post("/workflows/{workflow}", s.handleExecuteWorkflow)
		r.Get("/workflows/{workflow}/schema", s.handleWorkflowSchema)
		r.Get("/executions", s.handleHistory)
		r.Get("/statistics", s.handleStatistics)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
