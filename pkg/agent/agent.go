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

// Package agent defines the agent execution contract shared by every
// variant: a task goes in, a Result comes out.
//
// Agents never return Go errors from Execute. Input, collaborator and
// domain failures all surface as a Result with StatusFailed, a
// human-readable Error and the coded ErrorCode, so workflows can record
// them in the trace and decide whether to continue.
//
// Variants embed *Base, which supplies the language-model call (Think),
// named tools (UseTool), the bounded memory log and per-agent statistics.
// Task decoding is schema driven: each variant declares a typed task
// struct, and Execute validates required keys before any collaborator call.
package agent

import (
	"context"
	"time"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Task is the open key/value payload handed to an agent.
type Task map[string]any

// Status is the terminal state of an agent call.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Confidence is the self-assessed quality tier of a result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Source is a cited passage attached to a retrieval-backed result.
type Source struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Citation string         `json:"citation"`
	Score    float64        `json:"score"`
	Query    string         `json:"query,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is produced by every Execute call. A failed result carries no
// payload, sources or confidence; a completed result carries no error.
type Result struct {
	Agent         string         `json:"agent"`
	Status        Status         `json:"status"`
	Output        map[string]any `json:"output,omitempty"`
	Sources       []Source       `json:"sources,omitempty"`
	Confidence    Confidence     `json:"confidence,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
	Error         string         `json:"error,omitempty"`
	ErrorCode     xerrors.Code   `json:"error_code,omitempty"`
}

// Completed reports whether the call succeeded.
func (r Result) Completed() bool {
	return r.Status == StatusCompleted
}

// Field returns a payload value. The keys agent, status, confidence and
// sources address the envelope.
func (r Result) Field(key string) (any, bool) {
	switch key {
	case "agent":
		return r.Agent, true
	case "status":
		return string(r.Status), true
	case "confidence":
		return string(r.Confidence), r.Confidence != ""
	case "sources":
		return r.Sources, r.Sources != nil
	case "error":
		return r.Error, r.Error != ""
	}
	v, ok := r.Output[key]
	return v, ok
}

// Err rebuilds the coded error of a failed result.
func (r Result) Err() error {
	if r.Status != StatusFailed {
		return nil
	}
	code := r.ErrorCode
	if code == "" {
		code = xerrors.CodeUnknown
	}
	return xerrors.New(code, r.Error)
}

// Agent is the execution contract.
type Agent interface {
	Name() string
	Description() string
	Execute(ctx context.Context, task Task) Result
}

// Describer is implemented by agents that can report their capabilities.
type Describer interface {
	Capabilities() Capabilities
}

// Capabilities describes an agent for listings and the schema command.
type Capabilities struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tools       []ToolInfo     `json:"tools"`
	TaskSchema  map[string]any `json:"task_schema,omitempty"`
	MemoryItems int            `json:"memory_items"`
	Statistics  Statistics     `json:"statistics"`
}

// ToolInfo names a registered tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// Failed builds a failed result from err.
func Failed(name string, err error, elapsed time.Duration) Result {
	code := xerrors.CodeOf(err)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Agent:         name,
		Status:        StatusFailed,
		ExecutionTime: elapsed,
		Error:         msg,
		ErrorCode:     code,
	}
}
