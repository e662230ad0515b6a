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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/observability"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
)

// Config configures a Base.
type Config struct {
	Name        string
	Description string
	LLM         model.LLM
	// Policy bounds every Think call.
	Policy         retry.Policy
	Tools          []Tool
	MemoryCapacity int
}

// Base implements the parts of the contract common to every variant.
// Memory and statistics are scoped to the agent instance and shared by all
// executions that use it.
type Base struct {
	name        string
	description string
	llm         model.LLM
	policy      retry.Policy

	toolsMu sync.RWMutex
	tools   map[string]Tool
	order   []string

	memory *Memory
	stats  statsRecorder
	schema map[string]any
}

// NewBase validates cfg and registers its tools.
func NewBase(cfg Config) (*Base, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("agent %q: language model is required", cfg.Name)
	}
	cfg.Policy.SetDefaults()

	b := &Base{
		name:        cfg.Name,
		description: cfg.Description,
		llm:         cfg.LLM,
		policy:      cfg.Policy,
		tools:       make(map[string]Tool),
		memory:      NewMemory(cfg.MemoryCapacity),
	}
	for _, t := range cfg.Tools {
		if err := b.AddTool(t); err != nil {
			return nil, err
		}
	}

	slog.Debug("Initialized agent", "agent", b.name, "tools", len(b.order))
	return b, nil
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Description() string { return b.description }
func (b *Base) LLM() model.LLM      { return b.llm }
func (b *Base) Memory() *Memory     { return b.memory }

// Statistics returns a snapshot of the agent's call statistics.
func (b *Base) Statistics() Statistics {
	return b.stats.snapshot()
}

// SetTaskSchema records the task schema reported by Capabilities.
func (b *Base) SetTaskSchema(schema map[string]any) {
	b.schema = schema
}

// AddTool registers a tool. Names are unique per agent.
func (b *Base) AddTool(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("agent %q: tool name is required", b.name)
	}

	b.toolsMu.Lock()
	defer b.toolsMu.Unlock()

	if _, exists := b.tools[t.Name()]; exists {
		return xerrors.Newf(xerrors.CodeAlreadyExists, "agent %q: tool %q already registered", b.name, t.Name())
	}
	b.tools[t.Name()] = t
	b.order = append(b.order, t.Name())
	return nil
}

// UseTool dispatches to a registered tool.
func (b *Base) UseTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	b.toolsMu.RLock()
	t, ok := b.tools[name]
	b.toolsMu.RUnlock()
	if !ok {
		return nil, xerrors.New(xerrors.CodeToolNotFound,
			fmt.Sprintf("tool %q not found in agent %q", name, b.name),
			xerrors.WithMetadata("tool", name))
	}

	out, err := t.Call(ctx, args)
	if err != nil {
		slog.Warn("Tool call failed", "agent", b.name, "tool", name, "error", err)
		return nil, err
	}
	return out, nil
}

// Tools lists the registered tools in registration order.
func (b *Base) Tools() []ToolInfo {
	b.toolsMu.RLock()
	defer b.toolsMu.RUnlock()

	out := make([]ToolInfo, 0, len(b.order))
	for _, name := range b.order {
		t := b.tools[name]
		info := ToolInfo{Name: name, Description: t.Description()}
		if st, ok := t.(SchemaTool); ok {
			info.Schema = st.Schema()
		}
		out = append(out, info)
	}
	return out
}

func (b *Base) Capabilities() Capabilities {
	return Capabilities{
		Name:        b.name,
		Description: b.description,
		Tools:       b.Tools(),
		TaskSchema:  b.schema,
		MemoryItems: b.memory.Len(),
		Statistics:  b.Statistics(),
	}
}

// ThinkOption adjusts a single language-model request.
type ThinkOption func(*model.Request)

func WithSystem(system string) ThinkOption {
	return func(r *model.Request) { r.System = system }
}

func WithTemperature(t float64) ThinkOption {
	return func(r *model.Request) { r.Temperature = model.Float64(t) }
}

func WithMaxTokens(n int) ThinkOption {
	return func(r *model.Request) { r.MaxTokens = model.Int(n) }
}

// WithJSON asks the model for a JSON object.
func WithJSON() ThinkOption {
	return func(r *model.Request) { r.JSON = true }
}

// Think calls the language model under the agent's retry policy and returns
// the trimmed completion. An empty completion is a model failure.
func (b *Base) Think(ctx context.Context, prompt string, opts ...ThinkOption) (text string, err error) {
	req := &model.Request{Prompt: prompt}
	for _, opt := range opts {
		opt(req)
	}

	provider := string(b.llm.Provider())
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanLLMRequest,
		attribute.String(observability.AttrAgentName, b.name),
		attribute.String(observability.AttrLLMProvider, provider),
		attribute.String(observability.AttrLLMModel, b.llm.Name()))
	defer func() {
		observability.EndSpan(span, err)
		observability.GlobalMetrics().RecordLLMCall(ctx, provider, b.llm.Name(), time.Since(start), err)
	}()

	resp, err := retry.Do(ctx, b.policy, b.name+".think", func(ctx context.Context) (*model.Response, error) {
		resp, err := b.llm.Generate(ctx, req)
		if err != nil && ctx.Err() == nil {
			if _, ok := xerrors.From(err); !ok {
				err = xerrors.Wrap(xerrors.CodeModelFailure, err, "model call failed")
			}
		}
		return resp, err
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(resp.Text)
	if text == "" {
		return "", xerrors.New(xerrors.CodeModelFailure, "model returned an empty response", xerrors.WithRetryable(false))
	}
	return text, nil
}

// Outcome is what a variant computes for a decoded task.
type Outcome struct {
	Output     map[string]any
	Sources    []Source
	Confidence Confidence
	// Remember is appended to the agent's memory.
	Remember map[string]any
}

// Run decodes task over defaults, calls fn and wraps the outcome in a
// Result. It owns timing, tracing, metrics, statistics and memory, so
// variants only compute the payload. An outcome without a confidence is
// graded low.
func Run[T any](ctx context.Context, b *Base, task Task, defaults T, fn func(context.Context, T) (*Outcome, error)) Result {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanAgentExecute,
		attribute.String(observability.AttrAgentName, b.name))

	params := defaults
	var (
		outcome *Outcome
		err     error
	)
	if err = DecodeTask(task, &params); err == nil {
		outcome, err = fn(ctx, params)
	}
	if err == nil && outcome == nil {
		err = xerrors.New(xerrors.CodeDomainFailure, "")
	}
	if err != nil && ctx.Err() != nil && !errors.Is(err, xerrors.ErrCancelled) {
		err = xerrors.Wrap(xerrors.CodeCancelled, err, "agent "+b.name+" cancelled")
	}

	elapsed := time.Since(start)
	var res Result
	if err != nil {
		res = Failed(b.name, err, elapsed)
		slog.Warn("Agent execution failed", "agent", b.name, "code", res.ErrorCode, "error", res.Error)
	} else {
		res = Result{
			Agent:         b.name,
			Status:        StatusCompleted,
			Output:        outcome.Output,
			Sources:       outcome.Sources,
			Confidence:    outcome.Confidence,
			ExecutionTime: elapsed,
		}
		if res.Confidence == "" {
			res.Confidence = ConfidenceLow
		}
		slog.Info("Agent execution completed", "agent", b.name,
			"confidence", res.Confidence, "sources", len(res.Sources), "duration", elapsed)
	}

	record := map[string]any{"status": string(res.Status)}
	if outcome != nil {
		for k, v := range outcome.Remember {
			record[k] = v
		}
	}
	if res.Completed() {
		record["confidence"] = string(res.Confidence)
		record["sources_count"] = len(res.Sources)
	} else {
		record["error"] = res.Error
	}
	b.memory.Add("task_execution", record)
	b.stats.record(res)

	span.SetAttributes(
		attribute.String(observability.AttrAgentStatus, string(res.Status)),
		attribute.String(observability.AttrConfidence, string(res.Confidence)))
	if res.ErrorCode != "" {
		span.SetAttributes(attribute.String(observability.AttrErrorCode, string(res.ErrorCode)))
	}
	observability.EndSpan(span, err)
	observability.GlobalMetrics().RecordAgentExecution(ctx, b.name, string(res.Status), string(res.Confidence), elapsed)

	return res
}
