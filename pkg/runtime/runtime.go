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

// Package runtime assembles the vault from a Config: the language model,
// retrieval stack, document store, agents, workflows and orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/embedder"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/ingest"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/orchestrator"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/registry"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/vector"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

// Runtime owns every long-lived collaborator.
type Runtime struct {
	cfg *config.Config

	llm       model.LLM
	embedder  embedder.Embedder
	index     vector.Provider
	store     documents.Store
	retriever retrieval.Retriever
	redis     redis.UniversalClient
	dbPool    *config.DBPool

	agents    *registry.Agents
	workflows *workflow.Registry
	builder   *workflow.Builder
	orch      *orchestrator.Orchestrator

	closers []func() error
}

// Option overrides a collaborator normally built from the config.
type Option func(*Runtime)

func WithLLM(llm model.LLM) Option {
	return func(r *Runtime) { r.llm = llm }
}

func WithEmbedder(e embedder.Embedder) Option {
	return func(r *Runtime) { r.embedder = e }
}

func WithVectorProvider(p vector.Provider) Option {
	return func(r *Runtime) { r.index = p }
}

func WithStore(s documents.Store) Option {
	return func(r *Runtime) { r.store = s }
}

// WithRetriever replaces the retrieval service used by the agents.
func WithRetriever(rt retrieval.Retriever) Option {
	return func(r *Runtime) { r.retriever = rt }
}

func WithRedis(client redis.UniversalClient) Option {
	return func(r *Runtime) { r.redis = client }
}

// New builds a Runtime. cfg must already have defaults applied.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	r := &Runtime{cfg: cfg, dbPool: config.NewDBPool()}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.init(ctx); err != nil {
		if closeErr := r.Close(); closeErr != nil {
			slog.Warn("Cleanup after failed start", "error", closeErr)
		}
		return nil, err
	}
	return r, nil
}

func (r *Runtime) init(ctx context.Context) error {
	cfg := r.cfg

	if r.redis == nil && cfg.Redis.Enabled() {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r.redis = client
		r.closers = append(r.closers, client.Close)
	}

	if r.llm == nil {
		llm, err := NewLLM(ctx, cfg.LLM)
		if err != nil {
			return fmt.Errorf("failed to create language model: %w", err)
		}
		r.llm = llm
		r.closers = append(r.closers, llm.Close)
	}

	if r.store == nil {
		store, err := r.openStore(ctx)
		if err != nil {
			return err
		}
		r.store = store
	}

	if r.embedder == nil {
		emb, err := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			Model:     cfg.Embedder.Model,
			BaseURL:   cfg.Embedder.BaseURL,
			Dimension: cfg.Embedder.Dimension,
			Timeout:   cfg.Embedder.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
		r.embedder = emb
		if r.redis != nil {
			r.embedder = embedder.NewCachedEmbedder(emb, r.redis, cfg.Embedder.CacheTTL)
		}
	}

	if r.index == nil {
		index, err := vector.NewProvider(ctx, cfg.Vector)
		if err != nil {
			return fmt.Errorf("failed to create vector provider: %w", err)
		}
		r.index = index
		r.closers = append(r.closers, index.Close)
	}

	if r.retriever == nil {
		enrich := cfg.Retrieval.Enrich == nil || *cfg.Retrieval.Enrich
		svc, err := retrieval.NewService(r.embedder, r.index, r.store, retrieval.Options{
			Collection: cfg.Retrieval.Collection,
			Policy:     cfg.Retrieval.Retry,
			Enrich:     enrich,
		})
		if err != nil {
			return fmt.Errorf("failed to create retrieval service: %w", err)
		}
		r.retriever = svc
	}

	r.agents = registry.NewAgents()
	if err := registerAgents(r.agents, cfg, agentDeps{llm: r.llm, retriever: r.retriever, store: r.store}); err != nil {
		return err
	}

	r.workflows = workflow.NewRegistry()
	if err := workflow.RegisterBuiltins(r.workflows); err != nil {
		return fmt.Errorf("failed to register workflows: %w", err)
	}
	if err := r.registerConfigured(); err != nil {
		return err
	}

	defs, ok := r.store.(documents.WorkflowStore)
	if !ok {
		defs = documents.NewMemoryStore()
	}
	r.builder = workflow.NewBuilder(r.workflows, defs, r.agents.Has)
	if _, err := r.builder.Load(ctx); err != nil {
		return fmt.Errorf("failed to load stored workflows: %w", err)
	}

	history, err := r.newHistory()
	if err != nil {
		return err
	}
	r.orch = orchestrator.New(r.agents, r.workflows, orchestrator.WithHistory(history))

	slog.Info("Runtime ready",
		"llm", r.llm.Name(),
		"vector", r.index.Name(),
		"agents", len(r.agents.Names()),
		"workflows", r.workflows.Count(),
	)
	return nil
}

// registerConfigured compiles the workflows section of the config.
func (r *Runtime) registerConfigured() error {
	for _, def := range r.cfg.Workflows {
		if !def.IsActive() {
			continue
		}
		w, err := workflow.Compile(def)
		if err != nil {
			return fmt.Errorf("workflow %s: %w", def.ID, err)
		}
		for _, name := range w.Agents() {
			if !r.agents.Has(name) {
				return fmt.Errorf("workflow %s: unknown agent %q", def.ID, name)
			}
		}
		if err := r.workflows.Register(w); err != nil {
			return fmt.Errorf("workflow %s: %w", def.ID, err)
		}
	}
	return nil
}

func (r *Runtime) openStore(ctx context.Context) (documents.Store, error) {
	if r.cfg.Database.IsMemory() {
		return documents.NewMemoryStore(), nil
	}
	db, err := r.dbPool.Get(ctx, &r.cfg.Database)
	if err != nil {
		return nil, err
	}
	store, err := documents.NewSQLStore(ctx, db, &r.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	return store, nil
}

func (r *Runtime) newHistory() (orchestrator.History, error) {
	oc := r.cfg.Orchestrator
	if oc.HistoryStore != "redis" {
		return orchestrator.NewMemoryHistory(oc.HistorySize), nil
	}
	if r.redis == nil {
		return nil, fmt.Errorf("history_store redis requires redis.addr")
	}
	return orchestrator.NewRedisHistory(r.redis, oc.HistoryKey, oc.HistorySize), nil
}

func (r *Runtime) Config() *config.Config                   { return r.cfg }
func (r *Runtime) LLM() model.LLM                           { return r.llm }
func (r *Runtime) Store() documents.Store                   { return r.store }
func (r *Runtime) Retriever() retrieval.Retriever           { return r.retriever }
func (r *Runtime) Agents() *registry.Agents                 { return r.agents }
func (r *Runtime) Workflows() *workflow.Registry            { return r.workflows }
func (r *Runtime) Builder() *workflow.Builder               { return r.builder }
func (r *Runtime) Orchestrator() *orchestrator.Orchestrator { return r.orch }

// Ingester returns an ingester writing to the runtime's store and index.
func (r *Runtime) Ingester(maxTokens int) (*ingest.Ingester, error) {
	splitter, err := ingest.NewSplitter("", maxTokens)
	if err != nil {
		return nil, err
	}
	return ingest.New(ingest.Config{
		Parsers:    ingest.NewParsers(splitter),
		Store:      r.store,
		Index:      r.index,
		Embedder:   r.embedder,
		Collection: r.cfg.Retrieval.Collection,
	})
}

// HealthChecks returns the readiness checks of the collaborators that
// support one, keyed by name.
func (r *Runtime) HealthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if hc, ok := r.llm.(model.HealthChecker); ok {
		checks["model"] = hc.Health
	}
	if r.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return r.redis.Ping(ctx).Err()
		}
	}
	if !r.cfg.Database.IsMemory() {
		checks["database"] = func(ctx context.Context) error {
			db, err := r.dbPool.Get(ctx, &r.cfg.Database)
			if err != nil {
				return err
			}
			return db.PingContext(ctx)
		}
	}
	return checks
}

// Close releases every collaborator in reverse order of creation.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if r.dbPool != nil {
		if err := r.dbPool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
