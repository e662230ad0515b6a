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

package domainagent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
)

type legalTask struct {
	Question         string  `json:"question" jsonschema:"required,description=Legal question to answer"`
	TopK             int     `json:"top_k,omitempty" jsonschema:"description=Passages to retrieve,default=5,minimum=1"`
	MinScore         float64 `json:"min_score,omitempty" jsonschema:"description=Similarity floor,default=0.3,minimum=0,maximum=1"`
	IncludeReasoning bool    `json:"include_reasoning,omitempty" jsonschema:"description=Explain source relevance and gaps"`
}

const legalSystemPrompt = `You are a Hong Kong legal research assistant. Answer only from the ordinance
extracts provided. Cite the chapter and section for every statement. If the
extracts do not answer the question, say so plainly.`

// Legal answers questions about Hong Kong ordinances from retrieved
// sections. A question with no passage above the floor fails with "no
// relevant passages found" rather than asking the model to guess.
type Legal struct {
	*agent.Base
	deps Deps
}

var _ agent.Agent = (*Legal)(nil)

func NewLegal(deps Deps) (*Legal, error) {
	b, err := deps.base(NameLegal, "Hong Kong legal ordinance research grounded in retrieved sections")
	if err != nil {
		return nil, err
	}
	a := &Legal{Base: b, deps: deps}
	b.SetTaskSchema(agent.TaskSchema[legalTask]())

	search, err := searchTool("search_ordinances", "Search Hong Kong ordinances by keyword or question", deps)
	if err != nil {
		return nil, err
	}
	if err := b.AddTool(search); err != nil {
		return nil, err
	}
	if deps.Store != nil {
		if err := b.AddTool(documentTool(deps.Store)); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Legal) Execute(ctx context.Context, task agent.Task) agent.Result {
	topK, minScore := a.deps.searchDefaults()
	return agent.Run(ctx, a.Base, task, legalTask{TopK: topK, MinScore: minScore}, a.execute)
}

func (a *Legal) execute(ctx context.Context, task legalTask) (*agent.Outcome, error) {
	passages, sources, err := agent.Retrieve(ctx, a.deps.Retriever, task.Question, task.TopK, task.MinScore)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, xerrors.New(xerrors.CodeNoRelevantPassages, "")
	}

	prompt := fmt.Sprintf("Legal extracts:\n\n%s\n\nQuestion: %s\n\nAnswer with citations:",
		retrieval.FormatContext(passages, a.deps.contextChars()), task.Question)
	answer, err := a.Think(ctx, prompt, agent.WithSystem(legalSystemPrompt), agent.WithTemperature(0.2))
	if err != nil {
		return nil, err
	}

	confidence := agent.ScoreConfidence(sources)
	output := map[string]any{
		"answer":          answer,
		"citations":       citations(sources),
		"retrieved_count": len(sources),
	}

	if task.IncludeReasoning {
		reasoning, err := a.Think(ctx, reasoningPrompt(task.Question, len(sources), confidence),
			agent.WithSystem("You are a legal research analyst."))
		if err != nil {
			slog.Warn("Reasoning unavailable", "agent", a.Name(), "error", err)
			reasoning = "Reasoning unavailable"
		}
		output["reasoning"] = reasoning
	}

	return &agent.Outcome{
		Output:     output,
		Sources:    sources,
		Confidence: confidence,
		Remember:   map[string]any{"question": agent.Truncate(task.Question, 100)},
	}, nil
}

func reasoningPrompt(question string, sources int, confidence agent.Confidence) string {
	return fmt.Sprintf(`A legal research query was answered from %d retrieved sections (confidence: %s).

Question: %s

In two or three sentences explain why the sources are relevant and what
limitations or gaps remain.`, sources, confidence, question)
}
