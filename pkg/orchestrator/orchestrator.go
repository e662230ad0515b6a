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

// Package orchestrator runs workflows and single agents.
//
// A workflow run is strictly sequential. Each step's task is built from the
// caller input and the results of earlier steps, the step's agent is looked
// up in the agent registry, and its result is recorded in a write-once
// execution context. Definition errors (an unresolved reference, a missing
// input key, an unknown agent) always abort the run before any agent is
// called for that step. Agent failures abort the run unless the workflow
// sets ContinueOnFailure.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/observability"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/registry"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

// Orchestrator executes workflows against an agent registry. It is safe
// for concurrent use; every run gets its own execution context.
type Orchestrator struct {
	agents    *registry.Agents
	workflows *workflow.Registry
	history   History
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHistory sets the execution history store. The default keeps the
// last DefaultHistorySize runs in memory.
func WithHistory(h History) Option {
	return func(o *Orchestrator) {
		if h != nil {
			o.history = h
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator.
func New(agents *registry.Agents, workflows *workflow.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agents:    agents,
		workflows: workflows,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.history == nil {
		o.history = NewMemoryHistory(DefaultHistorySize)
	}
	return o
}

func (o *Orchestrator) Agents() *registry.Agents { return o.agents }

func (o *Orchestrator) Workflows() *workflow.Registry { return o.workflows }

// ExecuteAgent runs a single agent. Only an unknown agent is returned as an
// error; execution failures are reported in the result.
func (o *Orchestrator) ExecuteAgent(ctx context.Context, name string, task agent.Task) (agent.Result, error) {
	a, err := o.agents.Get(name)
	if err != nil {
		return agent.Result{}, err
	}
	if task == nil {
		task = agent.Task{}
	}
	if err := ctx.Err(); err != nil {
		return agent.Failed(name, cancelled(err), 0), nil
	}
	return a.Execute(ctx, task), nil
}

// ExecuteWorkflow runs the named workflow. An unknown workflow is returned
// as an error; every other failure is reported in the Execution, which is
// also appended to the history.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, name string, input workflow.Input) (*Execution, error) {
	wf, err := o.workflows.Lookup(name)
	if err != nil {
		return nil, err
	}

	exec := &Execution{
		ID:        uuid.NewString(),
		Workflow:  wf.Name,
		Status:    StatusRunning,
		StartedAt: o.now(),
		Trace:     make([]StepTrace, 0, len(wf.Steps)),
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanWorkflowRun,
		attribute.String(observability.AttrWorkflowName, wf.Name),
		attribute.String(observability.AttrWorkflowRunID, exec.ID),
	)
	log := slog.With("workflow", wf.Name, "run_id", exec.ID)
	log.Info("Workflow started", "steps", len(wf.Steps))

	runErr := o.run(ctx, wf, input.Clone(), exec)

	exec.Duration = o.now().Sub(exec.StartedAt)
	observability.EndSpan(span, runErr)
	observability.GlobalMetrics().RecordWorkflow(ctx, wf.Name, string(exec.Status), exec.Duration)

	if runErr != nil {
		log.Warn("Workflow aborted", "error", runErr, "steps_run", len(exec.Trace))
	} else {
		log.Info("Workflow completed", "duration", exec.Duration, "failed_steps", len(exec.FailedSteps()))
	}

	if err := o.history.Append(context.WithoutCancel(ctx), exec.Record()); err != nil {
		log.Warn("Failed to record execution history", "error", err)
	}
	return exec, nil
}

// run executes the steps of wf and fills exec. It returns the error that
// aborted the run, if any.
func (o *Orchestrator) run(ctx context.Context, wf *workflow.Workflow, input workflow.Input, exec *Execution) error {
	wctx := workflow.NewContext()

	for i, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			return exec.abort(cancelled(err))
		}

		st, abortErr := o.runStep(ctx, wctx, step, input)
		exec.Trace = append(exec.Trace, st)
		if err := wctx.Set(step.Name, st.Result); err != nil {
			return exec.abort(err)
		}

		switch {
		case ctx.Err() != nil:
			return exec.abort(cancelled(ctx.Err()))
		case abortErr != nil:
			return exec.abort(abortErr)
		case st.Status == agent.StatusFailed && !wf.ContinueOnFailure:
			return exec.abort(st.Result.Err())
		case st.Status == agent.StatusFailed:
			slog.Warn("Step failed, continuing", "workflow", wf.Name, "step", step.Name,
				"index", i, "error", st.Error)
		}
	}

	exec.Status = StatusCompleted
	exec.FinalOutput = finalOutput(wctx, wf)
	return nil
}

// runStep builds the step's task, resolves its agent and executes it. A
// non-nil error means the step could not start and the run must abort.
func (o *Orchestrator) runStep(ctx context.Context, wctx *workflow.Context, step workflow.Step, input workflow.Input) (StepTrace, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanWorkflowStep,
		attribute.String(observability.AttrStepName, step.Name),
		attribute.String(observability.AttrAgentName, step.Agent),
	)
	start := o.now()

	fail := func(err error) (StepTrace, error) {
		observability.EndSpan(span, err)
		res := agent.Failed(step.Agent, err, o.now().Sub(start))
		return newStepTrace(step, res), err
	}

	task, err := step.Build(wctx, input)
	if err != nil {
		return fail(err)
	}
	a, err := o.agents.Get(step.Agent)
	if err != nil {
		return fail(err)
	}

	slog.Debug("Executing step", "step", step.Name, "agent", step.Agent)
	res := a.Execute(ctx, task)
	if res.ExecutionTime == 0 {
		res.ExecutionTime = o.now().Sub(start)
	}
	observability.EndSpan(span, res.Err())
	return newStepTrace(step, res), nil
}

// finalOutput resolves the workflow's output selector. A selector that no
// longer resolves, such as a failed output step under ContinueOnFailure,
// yields nil.
func finalOutput(wctx *workflow.Context, wf *workflow.Workflow) any {
	step := wf.OutputStep()
	if wf.Output.Field == "" {
		r, err := wctx.Result(step)
		if err != nil {
			return nil
		}
		return r
	}
	v, err := wctx.Field(step, wf.Output.Field)
	if err != nil {
		slog.Warn("Workflow output did not resolve", "workflow", wf.Name, "error", err)
		return nil
	}
	return v
}

func cancelled(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.CodeTimeout, err, "workflow deadline exceeded", xerrors.WithRetryable(false))
	}
	return xerrors.Wrap(xerrors.CodeCancelled, err, "workflow cancelled")
}

// History returns up to limit recent executions, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]Record, error) {
	return o.history.Recent(ctx, limit)
}

// Statistics summarises the retained execution history.
func (o *Orchestrator) Statistics(ctx context.Context) (Statistics, error) {
	records, err := o.history.Recent(ctx, 0)
	if err != nil {
		return Statistics{}, err
	}
	return ComputeStatistics(records), nil
}
