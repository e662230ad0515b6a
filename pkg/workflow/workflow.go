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

// Package workflow defines workflows, their steps and the per-run execution
// context that steps read earlier results from.
//
// A step's task is produced by a TaskBuilder, a plain function over the
// execution context and the caller's input. Builders must not mutate the
// context; references to steps that have not run fail with
// xerrors.ErrUnresolvedReference before the step's agent is called.
package workflow

import (
	"fmt"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// TaskBuilder builds a step's task from earlier results and the caller input.
type TaskBuilder func(c *Context, in Input) (agent.Task, error)

// Step is one agent invocation within a workflow.
type Step struct {
	Name        string
	Agent       string
	Description string
	Build       TaskBuilder
}

// OutputSelector picks the workflow's final output. An empty Step selects
// the last step; an empty Field selects the whole result.
type OutputSelector struct {
	Step  string
	Field string
}

// Workflow is an ordered list of steps. It must not be modified after it
// is registered.
type Workflow struct {
	Name string
	// Title is a display name. Defaults to Name in listings.
	Title       string
	Description string
	Steps       []Step
	// ContinueOnFailure records a failed step in the context and runs the
	// remaining steps instead of aborting.
	ContinueOnFailure bool
	Output            OutputSelector
	// InputSchema describes the input fields, keyed by field name.
	InputSchema map[string]any
}

// Validate checks the definition.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "workflow name is required")
	}
	if len(w.Steps) == 0 {
		return xerrors.Newf(xerrors.CodeInvalidArgument, "workflow %q has no steps", w.Name)
	}

	seen := make(map[string]bool, len(w.Steps))
	for i, s := range w.Steps {
		switch {
		case s.Name == "":
			return xerrors.Newf(xerrors.CodeInvalidArgument, "workflow %q: step %d has no name", w.Name, i+1)
		case seen[s.Name]:
			return xerrors.Newf(xerrors.CodeInvalidArgument, "workflow %q: duplicate step name %q", w.Name, s.Name)
		case s.Agent == "":
			return xerrors.Newf(xerrors.CodeInvalidArgument, "workflow %q: step %q has no agent", w.Name, s.Name)
		case s.Build == nil:
			return xerrors.Newf(xerrors.CodeInvalidArgument, "workflow %q: step %q has no task builder", w.Name, s.Name)
		}
		seen[s.Name] = true
	}

	if w.Output.Step != "" && !seen[w.Output.Step] {
		return xerrors.Newf(xerrors.CodeInvalidArgument, "workflow %q: output step %q does not exist", w.Name, w.Output.Step)
	}
	return nil
}

// OutputStep returns the name of the step whose result is the final output.
func (w *Workflow) OutputStep() string {
	if w.Output.Step != "" {
		return w.Output.Step
	}
	return w.Steps[len(w.Steps)-1].Name
}

// StepInfo describes a step for listings.
type StepInfo struct {
	Name        string `json:"name"`
	Agent       string `json:"agent"`
	Description string `json:"description,omitempty"`
}

// Info describes a workflow for listings.
type Info struct {
	Name              string     `json:"name"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Steps             []StepInfo `json:"steps"`
	ContinueOnFailure bool       `json:"continue_on_failure"`
	Output            string     `json:"output"`
}

func (w *Workflow) Info() Info {
	steps := make([]StepInfo, len(w.Steps))
	for i, s := range w.Steps {
		steps[i] = StepInfo{Name: s.Name, Agent: s.Agent, Description: s.Description}
	}
	output := w.OutputStep()
	if w.Output.Field != "" {
		output = fmt.Sprintf("%s.%s", output, w.Output.Field)
	}
	title := w.Title
	if title == "" {
		title = w.Name
	}
	return Info{
		Name:              w.Name,
		Title:             title,
		Description:       w.Description,
		Steps:             steps,
		ContinueOnFailure: w.ContinueOnFailure,
		Output:            output,
	}
}

// Agents returns the agent names used by the workflow, in step order and
// without repeats.
func (w *Workflow) Agents() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range w.Steps {
		if !seen[s.Agent] {
			seen[s.Agent] = true
			out = append(out, s.Agent)
		}
	}
	return out
}
