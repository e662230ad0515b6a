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

package config

import (
	"fmt"
	"regexp"
)

// Mapping sources for a workflow step's task fields.
const (
	MappingSourceInput  = "input"
	MappingSourceStep   = "step"
	MappingSourceStatic = "static"

	// DefaultStepField is the step result field read when a step mapping
	// names none.
	DefaultStepField = "answer"
)

var workflowIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedWorkflowIDs collide with HTTP routes under /api/workflows.
var reservedWorkflowIDs = map[string]bool{"builder": true}

// WorkflowConfig declares a user-defined workflow. Definitions come from the
// workflows section of the configuration file or from the workflow builder
// API, and are compiled into runnable workflows by package workflow.
type WorkflowConfig struct {
	ID          string   `yaml:"workflow_id" json:"workflow_id" jsonschema:"title=Workflow ID,pattern=^[A-Za-z0-9_-]+$,minLength=1"`
	Name        string   `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Display Name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty" jsonschema:"default=general"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	Steps []WorkflowStepConfig `yaml:"steps" json:"steps" jsonschema:"minItems=1"`

	// InputSchema describes the expected input fields. When empty, one is
	// derived from the input mappings.
	InputSchema map[string]any `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`

	ContinueOnFailure bool   `yaml:"continue_on_failure,omitempty" json:"continue_on_failure,omitempty"`
	OutputStep        string `yaml:"output_step,omitempty" json:"output_step,omitempty"`
	OutputField       string `yaml:"output_field,omitempty" json:"output_field,omitempty"`

	// Active defaults to true. Inactive definitions are kept but not run.
	Active *bool `yaml:"is_active,omitempty" json:"is_active,omitempty" jsonschema:"default=true"`
}

// WorkflowStepConfig declares one step.
type WorkflowStepConfig struct {
	Name        string     `yaml:"name" json:"name" jsonschema:"required"`
	Agent       string     `yaml:"agent_name" json:"agent_name" jsonschema:"required"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Task        TaskConfig `yaml:"task_config,omitempty" json:"task_config,omitempty"`
}

// TaskConfig builds a step's task: static fields first, then mappings.
type TaskConfig struct {
	InputMappings map[string]InputMapping `yaml:"input_mappings,omitempty" json:"input_mappings,omitempty"`
	StaticFields  map[string]any          `yaml:"static_fields,omitempty" json:"static_fields,omitempty"`
}

// InputMapping fills one task field.
//
//	question: {source: input, field: compliance_question}
//	context:  {source: step, step_name: research, field: answer}
//	mode:     {source: static, value: strict}
type InputMapping struct {
	Source   string `yaml:"source" json:"source" jsonschema:"enum=input,enum=step,enum=static"`
	Field    string `yaml:"field,omitempty" json:"field,omitempty"`
	StepName string `yaml:"step_name,omitempty" json:"step_name,omitempty"`
	Value    any    `yaml:"value,omitempty" json:"value,omitempty"`
	Default  any    `yaml:"default,omitempty" json:"default,omitempty"`
}

func (c *WorkflowConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.Category == "" {
		c.Category = "general"
	}
	if c.Active == nil {
		active := true
		c.Active = &active
	}
	for i := range c.Steps {
		for field, m := range c.Steps[i].Task.InputMappings {
			if m.Source == MappingSourceStep && m.Field == "" {
				m.Field = DefaultStepField
				c.Steps[i].Task.InputMappings[field] = m
			}
		}
	}
}

// Validate checks the definition. Step mappings may only reference steps
// declared before the step that uses them.
func (c *WorkflowConfig) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("workflow_id is required")
	case !workflowIDPattern.MatchString(c.ID):
		return fmt.Errorf("workflow_id %q may contain only letters, numbers, underscores and hyphens", c.ID)
	case reservedWorkflowIDs[c.ID]:
		return fmt.Errorf("workflow_id %q is reserved", c.ID)
	case len(c.Steps) == 0:
		return fmt.Errorf("workflow %q has no steps", c.ID)
	}

	earlier := make(map[string]bool, len(c.Steps))
	for i, s := range c.Steps {
		switch {
		case s.Name == "":
			return fmt.Errorf("workflow %q: step %d has no name", c.ID, i+1)
		case earlier[s.Name]:
			return fmt.Errorf("workflow %q: duplicate step name %q", c.ID, s.Name)
		case s.Agent == "":
			return fmt.Errorf("workflow %q: step %q has no agent_name", c.ID, s.Name)
		}
		for field, m := range s.Task.InputMappings {
			if err := m.validate(earlier); err != nil {
				return fmt.Errorf("workflow %q: step %q: mapping %q: %w", c.ID, s.Name, field, err)
			}
		}
		earlier[s.Name] = true
	}

	if c.OutputStep != "" && !earlier[c.OutputStep] {
		return fmt.Errorf("workflow %q: output_step %q does not exist", c.ID, c.OutputStep)
	}
	return nil
}

// Clone returns a copy whose steps and mapping tables can be changed
// without touching c. Literal values are shared.
func (c *WorkflowConfig) Clone() WorkflowConfig {
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	if c.InputSchema != nil {
		out.InputSchema = make(map[string]any, len(c.InputSchema))
		for k, v := range c.InputSchema {
			out.InputSchema[k] = v
		}
	}
	if c.Active != nil {
		active := *c.Active
		out.Active = &active
	}
	out.Steps = make([]WorkflowStepConfig, len(c.Steps))
	for i, s := range c.Steps {
		if s.Task.InputMappings != nil {
			mappings := make(map[string]InputMapping, len(s.Task.InputMappings))
			for k, m := range s.Task.InputMappings {
				mappings[k] = m
			}
			s.Task.InputMappings = mappings
		}
		if s.Task.StaticFields != nil {
			static := make(map[string]any, len(s.Task.StaticFields))
			for k, v := range s.Task.StaticFields {
				static[k] = v
			}
			s.Task.StaticFields = static
		}
		out.Steps[i] = s
	}
	return out
}

// IsActive reports whether the workflow should be registered.
func (c *WorkflowConfig) IsActive() bool {
	return c.Active == nil || *c.Active
}

func (m InputMapping) validate(earlier map[string]bool) error {
	switch m.Source {
	case MappingSourceInput:
		if m.Field == "" {
			return fmt.Errorf("input mapping requires field")
		}
	case MappingSourceStep:
		if m.StepName == "" {
			return fmt.Errorf("step mapping requires step_name")
		}
		if !earlier[m.StepName] {
			return fmt.Errorf("step_name %q does not name an earlier step", m.StepName)
		}
	case MappingSourceStatic:
	default:
		return fmt.Errorf("invalid source %q (valid: input, step, static)", m.Source)
	}
	return nil
}
