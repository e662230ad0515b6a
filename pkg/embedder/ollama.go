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

package embedder

import (
	"context"
	"fmt"
	"time"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/ollama"
)

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	Model     string
	BaseURL   string
	Dimension int
	Timeout   time.Duration
}

// OllamaEmbedder embeds text with a local Ollama model.
//
// Failures are reported as retrieval-unavailable errors: the embedder is only
// ever called on the retrieval path.
type OllamaEmbedder struct {
	client    *ollama.Client
	model     string
	dimension int
}

var _ Embedder = (*OllamaEmbedder)(nil)

func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	return &OllamaEmbedder{
		client:    ollama.NewClient(cfg.BaseURL, cfg.Timeout, xerrors.CodeRetrievalUnavailable),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		if _, ok := xerrors.From(err); ok || ctx.Err() != nil {
			return nil, err
		}
		return nil, xerrors.Wrap(xerrors.CodeRetrievalUnavailable, err, "embedding failed", xerrors.WithRetryable(false))
	}
	if len(vec) != e.dimension {
		return nil, xerrors.Newf(xerrors.CodeRetrievalUnavailable,
			"embedding dimension mismatch: model %s returned %d, expected %d", e.model, len(vec), e.dimension)
	}
	return vec, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Model() string { return e.model }

func (e *OllamaEmbedder) Close() error { return nil }
