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
	"strings"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Input is the caller's input to a workflow run.
type Input map[string]any

// Get returns the raw value of key.
func (in Input) Get(key string) (any, bool) {
	v, ok := in[key]
	return v, ok
}

// String returns key as a string, or def when it is absent or empty.
func (in Input) String(key, def string) string {
	v, ok := in[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Require returns key as a non-empty string or a missing-field error.
func (in Input) Require(key string) (string, error) {
	s := in.String(key, "")
	if s == "" {
		return "", xerrors.New(xerrors.CodeMissingField, "missing required input: "+key,
			xerrors.WithMetadata("field", key))
	}
	return s, nil
}

// Strings returns key as a string list. A single string becomes a list of
// one.
func (in Input) Strings(key string) []string {
	switch v := in[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (in Input) Clone() Input {
	out := make(Input, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

// Task returns the input as an agent task.
func (in Input) Task() agent.Task {
	return agent.Task(in.Clone())
}
