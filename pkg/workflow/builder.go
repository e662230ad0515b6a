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


package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Builder manages user-defined workflows: it persists definitions and
// keeps the registry in step with them. Built-in and configured workflows
// share the registry but cannot be changed through the Builder.
type Builder struct {
	mu       sync.Mutex
	registry *Registry
	store    documents.WorkflowStore
	hasAgent func(string) bool
}

// NewBuilder returns a Builder. hasAgent, when non-nil, rejects steps
// naming an unknown agent.
func NewBuilder(r *Registry, store documents.WorkflowStore, hasAgent func(string) bool) *Builder {
	return &Builder{registry: r, store: store, hasAgent: hasAgent}
}

// Load registers every active stored definition. Definitions that no
// longer compile, or whose ID is taken, are logged and skipped.
func (b *Builder) Load(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	defs, err := b.store.ListWorkflows(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, def := range defs {
		if !def.IsActive() {
			continue
		}
		w, err := b.compile(def.WorkflowConfig)
		if err == nil {
			err = b.registry.Register(w)
		}
		if err != nil {
			slog.Warn("Skipping stored workflow", "workflow", def.ID, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Create stores def and registers it when active.
func (b *Builder) Create(ctx context.Context, def config.WorkflowConfig) (*documents.WorkflowDefinition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	def = normalize(def)
	w, err := b.compile(def)
	if err != nil {
		return nil, err
	}
	if _, exists := b.registry.Get(def.ID); exists {
		return nil, alreadyExists(def.ID)
	}

	stored := &documents.WorkflowDefinition{WorkflowConfig: def}
	if err := b.store.CreateWorkflow(ctx, stored); err != nil {
		if errors.Is(err, documents.ErrAlreadyExists) {
			return nil, alreadyExists(def.ID)
		}
		return nil, err
	}
	if def.IsActive() {
		if err := b.registry.Register(w); err != nil {
			if delErr := b.store.DeleteWorkflow(ctx, def.ID); delErr != nil {
				slog.Error("Failed to roll back workflow", "workflow", def.ID, "error", delErr)
			}
			return nil, err
		}
	}

	slog.Info("Workflow created", "workflow", def.ID, "steps", len(def.Steps), "active", def.IsActive())
	return stored, nil
}

// Update applies change to the stored definition of id and re-registers
// the result. Deactivating a workflow removes it from the registry.
// Executions already running are unaffected.
func (b *Builder) Update(ctx context.Context, id string, change func(*config.WorkflowConfig) error) (*documents.WorkflowDefinition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored, err := b.load(ctx, id, "modify")
	if err != nil {
		return nil, err
	}

	def := stored.WorkflowConfig.Clone()
	if err := change(&def); err != nil {
		return nil, err
	}
	if def.ID != id {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "workflow_id cannot be changed (%q -> %q)", id, def.ID)
	}
	def = normalize(def)
	w, err := b.compile(def)
	if err != nil {
		return nil, err
	}

	stored.WorkflowConfig = def
	if err := b.store.UpdateWorkflow(ctx, stored); err != nil {
		return nil, err
	}
	if def.IsActive() {
		if err := b.registry.Replace(w); err != nil {
			return nil, err
		}
	} else {
		b.registry.Remove(id)
	}

	slog.Info("Workflow updated", "workflow", id, "active", def.IsActive())
	return stored, nil
}

// Delete removes a user-defined workflow.
func (b *Builder) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.load(ctx, id, "delete"); err != nil {
		return err
	}
	if err := b.store.DeleteWorkflow(ctx, id); err != nil {
		return err
	}
	b.registry.Remove(id)

	slog.Info("Workflow deleted", "workflow", id)
	return nil
}

// Get returns the stored definition of a user-defined workflow.
func (b *Builder) Get(ctx context.Context, id string) (*documents.WorkflowDefinition, error) {
	def, err := b.store.GetWorkflow(ctx, id)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, notFound(id)
	}
	return def, err
}

// List returns the user-defined workflows, optionally limited to one
// category.
func (b *Builder) List(ctx context.Context, category string) ([]documents.WorkflowDefinition, error) {
	defs, err := b.store.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return defs, nil
	}
	out := defs[:0]
	for _, def := range defs {
		if def.Category == category {
			out = append(out, def)
		}
	}
	return out, nil
}

// load fetches a definition the Builder owns. Registered workflows that
// are not stored are built-in or configured and cannot be changed.
func (b *Builder) load(ctx context.Context, id, action string) (*documents.WorkflowDefinition, error) {
	def, err := b.store.GetWorkflow(ctx, id)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, documents.ErrNotFound) {
		return nil, err
	}
	if _, registered := b.registry.Get(id); registered {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "cannot "+action+" workflow "+id+": not user-defined",
			xerrors.WithMetadata("workflow", id))
	}
	return nil, notFound(id)
}

func (b *Builder) compile(def config.WorkflowConfig) (*Workflow, error) {
	w, err := Compile(def)
	if err != nil {
		return nil, err
	}
	if b.hasAgent == nil {
		return w, nil
	}
	for _, s := range w.Steps {
		if !b.hasAgent(s.Agent) {
			return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "workflow %q: step %q: unknown agent %q", w.Name, s.Name, s.Agent)
		}
	}
	return w, nil
}

func normalize(def config.WorkflowConfig) config.WorkflowConfig {
	def = def.Clone()
	def.SetDefaults()
	return def
}

func notFound(id string) error {
	return xerrors.New(xerrors.CodeWorkflowNotFound, "workflow not found: "+id, xerrors.WithMetadata("workflow", id))
}

func alreadyExists(id string) error {
	return xerrors.New(xerrors.CodeAlreadyExists, "workflow already exists: "+id, xerrors.WithMetadata("workflow", id))
}
