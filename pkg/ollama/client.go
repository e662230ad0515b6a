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

// Package ollama is a minimal client for the Ollama HTTP API: non-streaming
// chat, embeddings and the model list used for health checks.
package ollama

import (
	"context"
	"fmt"
	"sync"
	"time"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/httpclient"
)

const DefaultBaseURL = "http://localhost:11434"

// embedMu serializes embedding requests. Ollama's runner aborts when it
// receives concurrent embedding batches for the same model.
var embedMu sync.Mutex

type Client struct {
	http *httpclient.Client
}

type Option = httpclient.Option

// NewClient creates a client for baseURL. Transport failures are reported
// with failureCode so callers can tell model and retrieval outages apart.
func NewClient(baseURL string, timeout time.Duration, failureCode xerrors.Code, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]Option{
		httpclient.WithTimeout(timeout),
		httpclient.WithFailureCode(failureCode),
	}, opts...)
	return &Client{http: httpclient.New(baseURL, opts...)}
}

func (c *Client) BaseURL() string {
	return c.http.BaseURL()
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ChatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Format   string      `json:"format,omitempty"`
	Options  ChatOptions `json:"options"`
}

type ChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	TotalDuration   int64   `json:"total_duration"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Chat sends a non-streaming chat request.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false

	var resp ChatResponse
	if err := c.http.PostJSON(ctx, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	embedMu.Lock()
	defer embedMu.Unlock()

	var resp embedResponse
	if err := c.http.PostJSON(ctx, "/api/embeddings", embedRequest{Model: model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from Ollama for model %s", model)
	}
	return resp.Embedding, nil
}

type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Tags lists locally available models.
func (c *Client) Tags(ctx context.Context) ([]ModelInfo, error) {
	var resp struct {
		Models []ModelInfo `json:"models"`
	}
	if err := c.http.GetJSON(ctx, "/api/tags", &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// HasModel reports whether name (with or without the ":latest" tag) is
// available.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.Tags(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name || m.Name == name+":latest" {
			return true, nil
		}
	}
	return false, nil
}
