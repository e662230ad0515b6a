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

package agent

import (
	"context"
	"fmt"
)

// Tool is a named capability an agent may call while computing a result.
// The orchestrator never calls tools directly.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// SchemaTool is implemented by tools that describe their arguments.
type SchemaTool interface {
	Tool
	Schema() map[string]any
}

type functionTool[Args any] struct {
	name        string
	description string
	fn          func(context.Context, Args) (map[string]any, error)
	schema      map[string]any
	defaults    Args
}

// NewTool builds a Tool from a typed function. Args is a struct whose json
// and jsonschema tags describe the parameters, as for task structs.
func NewTool[Args any](name, description string, fn func(context.Context, Args) (map[string]any, error)) (Tool, error) {
	var zero Args
	return NewToolWithDefaults(name, description, zero, fn)
}

// NewToolWithDefaults is NewTool with call arguments decoded over
// defaults, so omitted keys keep their default and explicit zeros are
// kept as given.
func NewToolWithDefaults[Args any](name, description string, defaults Args, fn func(context.Context, Args) (map[string]any, error)) (Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %q: function is required", name)
	}
	return &functionTool[Args]{
		name:        name,
		description: description,
		fn:          fn,
		schema:      TaskSchema[Args](),
		defaults:    defaults,
	}, nil
}

// MustTool is NewTool for statically known tools.
func MustTool[Args any](name, description string, fn func(context.Context, Args) (map[string]any, error)) Tool {
	t, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *functionTool[Args]) Name() string           { return t.name }
func (t *functionTool[Args]) Description() string    { return t.description }
func (t *functionTool[Args]) Schema() map[string]any { return t.schema }

func (t *functionTool[Args]) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	typed := t.defaults
	if err := DecodeTask(Task(args), &typed); err != nil {
		return nil, fmt.Errorf("tool %q: %w", t.name, err)
	}
	return t.fn(ctx, typed)
}
