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

package runtime

import (
	"context"
	"fmt"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/domainagent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/enhanced"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/genericagent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model/anthropic"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model/gemini"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model/ollama"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/registry"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
)

// NewLLM creates the language model selected by cfg.
func NewLLM(ctx context.Context, cfg config.LLMConfig) (model.LLM, error) {
	base := model.Config{
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	switch cfg.Provider {
	case config.LLMProviderOllama:
		return ollama.New(ollama.Config{Config: base, Timeout: cfg.Timeout, TLS: cfg.TLS})
	case config.LLMProviderAnthropic:
		return anthropic.New(anthropic.Config{Config: base, Timeout: cfg.Timeout})
	case config.LLMProviderGemini:
		return gemini.New(ctx, gemini.Config{Config: base, Timeout: cfg.Timeout})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

type agentDeps struct {
	llm       model.LLM
	retriever retrieval.Retriever
	store     documents.Store
}

// registerAgents registers a lazy factory for every agent not disabled in
// cfg. Agents are built on first lookup.
func registerAgents(reg *registry.Agents, cfg *config.Config, deps agentDeps) error {
	ac := cfg.Agents

	domain := domainagent.Deps{
		LLM:             deps.llm,
		Retriever:       deps.retriever,
		Store:           deps.store,
		Policy:          ac.Retry,
		MemoryCapacity:  ac.MemoryCapacity,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		TopK:            cfg.Retrieval.TopK,
		MinScore:        cfg.Retrieval.MinScore,
	}
	generic := genericagent.Deps{
		LLM:            deps.llm,
		Policy:         ac.Retry,
		MemoryCapacity: ac.MemoryCapacity,
	}
	fanOut := enhanced.Deps{
		LLM:            deps.llm,
		Retriever:      deps.retriever,
		Policy:         ac.Retry,
		MemoryCapacity: ac.MemoryCapacity,
		MaxConcurrency: ac.Enhanced.MaxConcurrency,
		TopKPerQuery:   ac.Enhanced.TopKPerQuery,
		MinScore:       ac.Enhanced.MinScore,
	}

	factories := []struct {
		name  string
		build registry.Factory
	}{
		{domainagent.NameLegal, func() (agent.Agent, error) { return domainagent.NewLegal(domain) }},
		{domainagent.NameHRPolicy, func() (agent.Agent, error) { return domainagent.NewHRPolicy(domain) }},
		{domainagent.NameCSDocument, func() (agent.Agent, error) { return domainagent.NewCSDocument(domain) }},
		{genericagent.NameAnalysis, func() (agent.Agent, error) { return genericagent.NewAnalysis(generic) }},
		{genericagent.NameSynthesis, func() (agent.Agent, error) { return genericagent.NewSynthesis(generic) }},
		{genericagent.NameValidation, func() (agent.Agent, error) { return genericagent.NewValidation(generic) }},
		{enhanced.Name, func() (agent.Agent, error) { return enhanced.New(fanOut) }},
	}

	for _, f := range factories {
		if ac.IsDisabled(f.name) {
			continue
		}
		if err := reg.RegisterFactory(f.name, f.build); err != nil {
			return fmt.Errorf("failed to register agent %s: %w", f.name, err)
		}
	}
	return nil
}
