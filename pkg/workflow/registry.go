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
	"fmt"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/registry"
)

// Registry holds the workflows known to the process, one per name.
type Registry struct {
	*registry.BaseRegistry[*Workflow]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[*Workflow]()}
}

// Register validates w and adds it.
func (r *Registry) Register(w *Workflow) error {
	if w == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "workflow cannot be nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	return r.BaseRegistry.Register(w.Name, w)
}

// Replace validates w and registers it, overwriting a workflow of the same
// name. Executions already running keep the workflow they started with.
func (r *Registry) Replace(w *Workflow) error {
	if w == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "workflow cannot be nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	return r.BaseRegistry.Replace(w.Name, w)
}

// Lookup returns the named workflow or xerrors.ErrWorkflowNotFound.
func (r *Registry) Lookup(name string) (*Workflow, error) {
	w, ok := r.Get(name)
	if !ok {
		return nil, xerrors.New(xerrors.CodeWorkflowNotFound, fmt.Sprintf("workflow not found: %s", name),
			xerrors.WithMetadata("workflow", name))
	}
	return w, nil
}

// Infos describes every workflow, ordered by name.
func (r *Registry) Infos() []Info {
	list := r.List()
	out := make([]Info, len(list))
	for i, w := range list {
		out[i] = w.Info()
	}
	return out
}
