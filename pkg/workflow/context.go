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
	"sync"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Context holds the results of the steps run so far in one execution.
// Each step name is written once; results are copied on the way in and on
// the way out, so no reader can change what a later step sees.
type Context struct {
	mu      sync.RWMutex
	results map[string]agent.Result
	order   []string
}

func NewContext() *Context {
	return &Context{results: make(map[string]agent.Result)}
}

// Set stores the result of step. A step name can be written only once.
func (c *Context) Set(step string, r agent.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.results[step]; exists {
		return xerrors.Newf(xerrors.CodeAlreadyExists, "result for step %q already recorded", step)
	}
	c.results[step] = cloneResult(r)
	c.order = append(c.order, step)
	return nil
}

// Has reports whether step has a result.
func (c *Context) Has(step string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.results[step]
	return ok
}

// Result returns a copy of the result of step.
func (c *Context) Result(step string) (agent.Result, error) {
	c.mu.RLock()
	r, ok := c.results[step]
	c.mu.RUnlock()
	if !ok {
		return agent.Result{}, unresolved(step, "", "step has not run")
	}
	return cloneResult(r), nil
}

// Field returns a copy of a payload field of step's result, or an
// unresolved reference error when the step has not run or the field is
// absent.
func (c *Context) Field(step, key string) (any, error) {
	r, err := c.Result(step)
	if err != nil {
		return nil, unresolved(step, key, "step has not run")
	}
	v, ok := r.Field(key)
	if !ok {
		reason := "field not present"
		if !r.Completed() {
			reason = fmt.Sprintf("step failed: %s", r.Error)
		}
		return nil, unresolved(step, key, reason)
	}
	return v, nil
}

// FieldOr is Field with a default for an absent field. A step that has not
// run is still an unresolved reference.
func (c *Context) FieldOr(step, key string, def any) (any, error) {
	r, err := c.Result(step)
	if err != nil {
		return nil, unresolved(step, key, "step has not run")
	}
	if v, ok := r.Field(key); ok {
		return v, nil
	}
	return def, nil
}

// String returns a payload field rendered as text.
func (c *Context) String(step, key string) (string, error) {
	v, err := c.Field(step, key)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return agent.FormatData(v), nil
}

// Text renders the whole payload of step as text.
func (c *Context) Text(step string) (string, error) {
	r, err := c.Result(step)
	if err != nil {
		return "", err
	}
	if !r.Completed() {
		return "Step failed: " + r.Error, nil
	}
	return agent.FormatData(r.Output), nil
}

// Steps returns the recorded step names in write order.
func (c *Context) Steps() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Snapshot returns a copy of every recorded result.
func (c *Context) Snapshot() map[string]agent.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]agent.Result, len(c.results))
	for k, r := range c.results {
		out[k] = cloneResult(r)
	}
	return out
}

func unresolved(step, key, reason string) error {
	ref := step
	if key != "" {
		ref = step + "." + key
	}
	return xerrors.New(xerrors.CodeUnresolvedReference,
		fmt.Sprintf("unresolved reference %q: %s", ref, reason),
		xerrors.WithMetadata("step", step))
}

func cloneResult(r agent.Result) agent.Result {
	out := r
	if r.Output != nil {
		out.Output = cloneMap(r.Output)
	}
	if r.Sources != nil {
		out.Sources = make([]agent.Source, len(r.Sources))
		for i, s := range r.Sources {
			s.Metadata = cloneMap(s.Metadata)
			out.Sources[i] = s
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the container types agents put in payloads.
// Other values are treated as immutable.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			out[i] = cloneMap(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case []agent.Source:
		return cloneResult(agent.Result{Sources: t}).Sources
	default:
		return v
	}
}
