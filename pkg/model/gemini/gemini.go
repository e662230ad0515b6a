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

// Package gemini implements model.LLM with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

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
	client *genai.Client
}

var _ model.LLM = (*Model)(nil)

func New(ctx context.Context, cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Model{cfg: cfg, client: client}, nil
}

func (m *Model) Name() string { return m.cfg.Model }

func (m *Model) Provider() model.Provider { return model.ProviderGemini }

func (m *Model) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	temperature, maxTokens := m.cfg.Resolve(req)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.cfg.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, classify(ctx, err)
	}

	out := &model.Response{Text: resp.Text(), Model: m.cfg.Model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (m *Model) Close() error { return nil }

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		strategy := httpclient.DefaultRetryStrategy(apiErr.Code)
		return xerrors.Wrap(xerrors.CodeModelFailure, err, "gemini request failed",
			xerrors.WithRetryable(strategy != httpclient.NoRetry),
			xerrors.WithMetadata("status", fmt.Sprint(apiErr.Code)))
	}
	return xerrors.Wrap(xerrors.CodeModelFailure, err, "gemini request failed")
}
