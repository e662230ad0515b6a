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

// Package anthropic implements model.LLM with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/httpclient"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
)

type Config struct {
	model.Config
	Timeout time.Duration
}

type Model struct {
	cfg    Config
	client anthropic.Client
}

var _ model.LLM = (*Model)(nil)

func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	// Retries are handled by the caller's retry policy.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	return &Model{cfg: cfg, client: anthropic.NewClient(opts...)}, nil
}

func (m *Model) Name() string { return m.cfg.Model }

func (m *Model) Provider() model.Provider { return model.ProviderAnthropic }

func (m *Model) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	temperature, maxTokens := m.cfg.Resolve(req)

	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.cfg.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	return &model.Response{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (m *Model) Close() error { return nil }

// classify maps SDK errors onto model failures, using the HTTP status to
// decide whether a retry may help.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		strategy := httpclient.DefaultRetryStrategy(apiErr.StatusCode)
		// 529 is Anthropic's "overloaded" status.
		if apiErr.StatusCode == 529 {
			strategy = httpclient.SmartRetry
		}
		return xerrors.Wrap(xerrors.CodeModelFailure, err, "anthropic request failed",
			xerrors.WithRetryable(strategy != httpclient.NoRetry),
			xerrors.WithMetadata("status", fmt.Sprint(apiErr.StatusCode)))
	}
	return xerrors.Wrap(xerrors.CodeModelFailure, err, "anthropic request failed")
}
