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

package orchestrator

import (
	"time"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

// Status is the state of a workflow run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// StepTrace records one step of a run.
type StepTrace struct {
	Step          string        `json:"step"`
	Agent         string        `json:"agent"`
	Status        agent.Status  `json:"status"`
	Result        agent.Result  `json:"result"`
	ExecutionTime time.Duration `json:"execution_time"`
	Error         string        `json:"error,omitempty"`
	ErrorCode     xerrors.Code  `json:"error_code,omitempty"`
}

func newStepTrace(step workflow.Step, res agent.Result) StepTrace {
	return StepTrace{
		Step:          step.Name,
		Agent:         step.Agent,
		Status:        res.Status,
		Result:        res,
		ExecutionTime: res.ExecutionTime,
		Error:         res.Error,
		ErrorCode:     res.ErrorCode,
	}
}

// Execution is the outcome of one workflow run. Trace holds exactly the
// steps that ran, in order.
type Execution struct {
	ID          string        `json:"id"`
	Workflow    string        `json:"workflow"`
	Status      Status        `json:"status"`
	FinalOutput any           `json:"final_output,omitempty"`
	Trace       []StepTrace   `json:"trace"`
	Error       string        `json:"error,omitempty"`
	ErrorCode   xerrors.Code  `json:"error_code,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

func (e *Execution) abort(err error) error {
	e.Status = StatusAborted
	e.FinalOutput = nil
	if err == nil {
		err = xerrors.New(xerrors.CodeUnknown, "")
	}
	e.Error = err.Error()
	e.ErrorCode = xerrors.CodeOf(err)
	return err
}

// Completed reports whether every step ran.
func (e *Execution) Completed() bool {
	return e.Status == StatusCompleted
}

// Err rebuilds the error that aborted the run.
func (e *Execution) Err() error {
	if e.Status != StatusAborted {
		return nil
	}
	return xerrors.New(e.ErrorCode, e.Error)
}

// Step returns the trace entry of the named step.
func (e *Execution) Step(name string) (StepTrace, bool) {
	for _, st := range e.Trace {
		if st.Step == name {
			return st, true
		}
	}
	return StepTrace{}, false
}

// FailedSteps returns the names of the steps that failed.
func (e *Execution) FailedSteps() []string {
	var out []string
	for _, st := range e.Trace {
		if st.Status == agent.StatusFailed {
			out = append(out, st.Step)
		}
	}
	return out
}

// Record summarises the execution for the history store.
func (e *Execution) Record() Record {
	return Record{
		ID:          e.ID,
		Workflow:    e.Workflow,
		Status:      e.Status,
		StepsRun:    len(e.Trace),
		FailedSteps: e.FailedSteps(),
		Error:       e.Error,
		ErrorCode:   e.ErrorCode,
		StartedAt:   e.StartedAt,
		Duration:    e.Duration,
	}
}
