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

// Package model defines the language model interface used by agents.
//
// Implementations live in subpackages: ollama (local, default), anthropic
// and gemini. All of them are single-shot and non-streaming; retries and
// per-call timeouts are applied by callers through pkg/retry.
package model

import (
	"context"
)

// Provider names a model backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// LLM generates a completion for a single prompt.
//
// Transport and service failures are returned as CodeModelFailure errors
// from pkg/errors. Implementations must be safe for concurrent use.
type LLM interface {
	Name() string
	Provider() Provider
	Generate(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// HealthChecker is implemented by backends that can report readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Request is a single completion request. Nil overrides use the model's
// configured defaults.
type Request struct {
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   *int
	// JSON asks the backend to constrain output to a JSON object where
	// supported.
	JSON bool
}

// Response is the completion and its token usage.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Config holds the generation defaults shared by every backend.
type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// Resolve returns the temperature and token limit for req, falling back to
// the configured defaults.
func (c Config) Resolve(req *Request) (float64, int) {
	temperature := c.Temperature
	maxTokens := c.MaxTokens
	if req != nil && req.Temperature != nil {
		temperature = *req.Temperature
	}
	if req != nil && req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	return temperature, maxTokens
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
