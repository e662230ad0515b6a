// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ollama implements model.LLM over a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"time"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/httpclient"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	ollamaapi "github.com/wongivan852/legal-ai-vault-sub000/pkg/ollama"
)

type Config struct {
	model.Config
	Timeout time.Duration
	TLS     *httpclient.TLSConfig
}

type Model struct {
	cfg    Config
	client *ollamaapi.Client
}

var _ model.LLM = (*Model)(nil)
var _ model.HealthChecker = (*Model)(nil)

func New(cfg Config) (*Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	var opts []ollamaapi.Option
	if cfg.TLS != nil {
		opts = append(opts, httpclient.WithTLSConfig(cfg.TLS))
	}
	return &Model{
		cfg:    cfg,
		client: ollamaapi.NewClient(cfg.BaseURL, cfg.Timeout, xerrors.CodeModelFailure, opts...),
	}, nil
}

func (m *Model) Name() string { return m.cfg.Model }

func (m *Model) Provider() model.Provider { return model.ProviderOllama }

func (m *Model) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	temperature, maxTokens := m.cfg.Resolve(req)

	messages := make([]ollamaapi.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, ollamaapi.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaapi.Message{Role: "user", Content: req.Prompt})

	chat := ollamaapi.ChatRequest{
		Model:    m.cfg.Model,
		Messages: messages,
		Options:  ollamaapi.ChatOptions{Temperature: temperature, NumPredict: maxTokens},
	}
	if req.JSON {
		chat.Format = "json"
	}

	resp, err := m.client.Chat(ctx, chat)
	if err != nil {
		return nil, err
	}
	return &model.Response{
		Text:         resp.Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}

// Health reports an error when the server is unreachable or the model has
// not been pulled.
func (m *Model) Health(ctx context.Context) error {
	ok, err := m.client.HasModel(ctx, m.cfg.Model)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.Newf(xerrors.CodeModelFailure, "model %s is not available on %s", m.cfg.Model, m.client.BaseURL())
	}
	return nil
}

func (m *Model) Close() error { return nil }
