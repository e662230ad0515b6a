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
	"sort"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Compile turns a declarative definition into a runnable workflow. def is
// not modified. Step mappings resolve through Context.Field, so a reference
// to a step that has not run, or that failed without the field, stops the
// run with xerrors.ErrUnresolvedReference unless the mapping has a default.
func Compile(def config.WorkflowConfig) (*Workflow, error) {
	def = def.Clone()
	def.SetDefaults()
	if err := def.Validate(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid workflow definition",
			xerrors.WithMetadata("workflow", def.ID))
	}

	w := &Workflow{
		Name:              def.ID,
		Title:             def.Name,
		Description:       def.Description,
		ContinueOnFailure: def.ContinueOnFailure,
		Output:            OutputSelector{Step: def.OutputStep, Field: def.OutputField},
		InputSchema:       def.InputSchema,
		Steps:             make([]Step, len(def.Steps)),
	}
	if len(w.InputSchema) == 0 {
		w.InputSchema = deriveInputSchema(def.Steps)
	}
	for i, s := range def.Steps {
		w.Steps[i] = Step{
			Name:        s.Name,
			Agent:       s.Agent,
			Description: s.Description,
			Build:       mappedTask(s.Task),
		}
	}
	return w, w.Validate()
}

// mappedTask builds a task from static fields, then input mappings applied
// in field order. A mapping overwrites a static field of the same name.
func mappedTask(tc config.TaskConfig) TaskBuilder {
	fields := make([]string, 0, len(tc.InputMappings))
	for f := range tc.InputMappings {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	return func(c *Context, in Input) (agent.Task, error) {
		task := agent.Task(cloneMap(tc.StaticFields))
		if task == nil {
			task = agent.Task{}
		}

		for _, f := range fields {
			m := tc.InputMappings[f]
			switch m.Source {
			case config.MappingSourceInput:
				if v, ok := in.Get(m.Field); ok && v != nil {
					task[f] = cloneValue(v)
				} else if m.Default != nil {
					task[f] = cloneValue(m.Default)
				}
			case config.MappingSourceStep:
				var (
					v   any
					err error
				)
				if m.Default != nil {
					v, err = c.FieldOr(m.StepName, m.Field, cloneValue(m.Default))
				} else {
					v, err = c.Field(m.StepName, m.Field)
				}
				if err != nil {
					return nil, err
				}
				task[f] = v
			case config.MappingSourceStatic:
				task[f] = cloneValue(m.Value)
			}
		}
		return task, nil
	}
}

// deriveInputSchema lists every input field the steps read. A field is
// required unless each mapping of it carries a default.
func deriveInputSchema(steps []config.WorkflowStepConfig) map[string]any {
	required := make(map[string]bool)
	for _, s := range steps {
		for _, m := range s.Task.InputMappings {
			if m.Source != config.MappingSourceInput {
				continue
			}
			r, seen := required[m.Field]
			required[m.Field] = (seen && r) || m.Default == nil
		}
	}

	out := make(map[string]any, len(required))
	for name, r := range required {
		out[name] = map[string]any{"required": r}
	}
	return out
}
