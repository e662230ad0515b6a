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

package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Factory builds an agent on first use.
type Factory func() (agent.Agent, error)

type agentEntry struct {
	mu       sync.Mutex
	factory  Factory
	instance agent.Agent
}

// resolve builds the agent once. A failed build is not cached, so the next
// lookup tries again.
func (e *agentEntry) resolve(name string) (agent.Agent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.instance != nil {
		return e.instance, nil
	}
	a, err := e.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to build agent %q: %w", name, err)
	}
	if a == nil {
		return nil, fmt.Errorf("failed to build agent %q: factory returned nil", name)
	}
	if a.Name() != name {
		slog.Warn("Agent registered under a different name", "registered", name, "agent", a.Name())
	}
	e.instance = a
	slog.Debug("Built agent", "agent", name)
	return a, nil
}

func (e *agentEntry) loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instance != nil
}

// Agents maps names to agents. Agents are registered either as instances or
// as factories that run on the first Get.
type Agents struct {
	entries *BaseRegistry[*agentEntry]
}

func NewAgents() *Agents {
	return &Agents{entries: NewBaseRegistry[*agentEntry]()}
}

// Register adds a built agent under its own name.
func (r *Agents) Register(a agent.Agent) error {
	if a == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "agent cannot be nil")
	}
	return r.entries.Register(a.Name(), &agentEntry{instance: a})
}

// RegisterFactory adds an agent built on first use.
func (r *Agents) RegisterFactory(name string, factory Factory) error {
	if factory == nil {
		return xerrors.Newf(xerrors.CodeInvalidArgument, "agent %q: factory cannot be nil", name)
	}
	return r.entries.Register(name, &agentEntry{factory: factory})
}

// Get returns the named agent, building it if needed. Concurrent callers
// share a single build.
func (r *Agents) Get(name string) (agent.Agent, error) {
	e, ok := r.entries.Get(name)
	if !ok {
		return nil, xerrors.New(xerrors.CodeAgentNotFound, fmt.Sprintf("agent not found: %s", name),
			xerrors.WithMetadata("agent", name))
	}
	return e.resolve(name)
}

func (r *Agents) Has(name string) bool {
	_, ok := r.entries.Get(name)
	return ok
}

// Loaded reports whether the named agent has been built.
func (r *Agents) Loaded(name string) bool {
	e, ok := r.entries.Get(name)
	return ok && e.loaded()
}

// Names returns the registered agent names in sorted order.
func (r *Agents) Names() []string {
	return r.entries.Names()
}

// Capabilities builds every agent and describes those that can report
// capabilities. Agents that fail to build are logged and skipped.
func (r *Agents) Capabilities() []agent.Capabilities {
	var out []agent.Capabilities
	for _, name := range r.Names() {
		a, err := r.Get(name)
		if err != nil {
			slog.Warn("Skipping agent", "agent", name, "error", err)
			continue
		}
		if d, ok := a.(agent.Describer); ok {
			out = append(out, d.Capabilities())
		} else {
			out = append(out, agent.Capabilities{Name: a.Name(), Description: a.Description()})
		}
	}
	return out
}
