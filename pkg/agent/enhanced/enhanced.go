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

// Package enhanced implements the retrieval-augmented synthesis agent. It
// fans one intent out into several index searches, merges the passages
// without duplicates and hands the result to the synthesis behaviour of
// genericagent in a single model call.
package enhanced

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/genericagent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
)

const (
	Name = "enhanced_synthesis"

	DefaultTopKPerQuery   = 5
	DefaultMinScore       = 0.6
	DefaultMaxConcurrency = 4
)

type synthesisTask struct {
	Queries       []string `json:"queries,omitempty" jsonschema:"description=Search queries. Falls back to question"`
	Question      string   `json:"question,omitempty" jsonschema:"description=Original question, used as the only query when queries is empty"`
	Sources       []any    `json:"sources,omitempty" jsonschema:"description=Manual sources used when neither queries nor question is given"`
	TopKPerQuery  int      `json:"top_k_per_query,omitempty" jsonschema:"default=5,minimum=1"`
	MinScore      float64  `json:"min_score,omitempty" jsonschema:"default=0.6,minimum=0,maximum=1"`
	Focus         string   `json:"focus,omitempty" jsonschema:"default=comprehensive"`
	SynthesisType string   `json:"synthesis_type,omitempty" jsonschema:"default=merge,enum=merge,enum=reconcile,enum=report,enum=summary"`
	Format        string   `json:"format,omitempty" jsonschema:"default=text"`
}

// Deps are the collaborators of the agent.
type Deps struct {
	LLM            model.LLM
	Retriever      retrieval.Retriever
	Policy         retry.Policy
	MemoryCapacity int
	// MaxConcurrency bounds the searches in flight for one task.
	MaxConcurrency int
	// TopKPerQuery and MinScore override the task defaults when set. A
	// non-nil MinScore of zero disables the floor.
	TopKPerQuery int
	MinScore     *float64
}

// Agent is the enhanced synthesis agent.
type Agent struct {
	*genericagent.Synthesis
	retriever   retrieval.Retriever
	concurrency int
	defaults    synthesisTask
}

var _ agent.Agent = (*Agent)(nil)

func New(deps Deps) (*Agent, error) {
	if deps.Retriever == nil {
		return nil, fmt.Errorf("agent %q: retriever is required", Name)
	}
	b, err := agent.NewBase(agent.Config{
		Name:           Name,
		Description:    "Synthesis over passages retrieved for several queries, deduplicated by section",
		LLM:            deps.LLM,
		Policy:         deps.Policy,
		MemoryCapacity: deps.MemoryCapacity,
	})
	if err != nil {
		return nil, err
	}
	synthesis, err := genericagent.NewSynthesisWithBase(b)
	if err != nil {
		return nil, err
	}
	b.SetTaskSchema(agent.TaskSchema[synthesisTask]())

	a := &Agent{
		Synthesis:   synthesis,
		retriever:   deps.Retriever,
		concurrency: deps.MaxConcurrency,
		defaults: synthesisTask{
			TopKPerQuery:  DefaultTopKPerQuery,
			MinScore:      DefaultMinScore,
			Focus:         "comprehensive",
			SynthesisType: "merge",
			Format:        "text",
		},
	}
	if a.concurrency <= 0 {
		a.concurrency = DefaultMaxConcurrency
	}
	if deps.TopKPerQuery > 0 {
		a.defaults.TopKPerQuery = deps.TopKPerQuery
	}
	if deps.MinScore != nil {
		a.defaults.MinScore = *deps.MinScore
	}
	return a, nil
}

func (a *Agent) Execute(ctx context.Context, task agent.Task) agent.Result {
	return agent.Run(ctx, a.Base, task, a.defaults, a.execute)
}

func (a *Agent) execute(ctx context.Context, task synthesisTask) (*agent.Outcome, error) {
	queries := task.Queries
	if len(queries) == 0 && task.Question != "" {
		queries = []string{task.Question}
	}
	if len(queries) == 0 {
		if len(task.Sources) > 0 {
			return a.manual(ctx, task)
		}
		return nil, xerrors.New(xerrors.CodeMissingField, "missing required field: queries",
			xerrors.WithMetadata("field", "queries"))
	}

	results, err := a.fanOut(ctx, queries, task.TopKPerQuery, task.MinScore)
	if err != nil {
		return nil, err
	}
	hits := Merge(queries, results)
	total := 0
	for _, r := range results {
		total += len(r)
	}
	slog.Debug("Merged retrieval results", "agent", a.Name(), "queries", len(queries), "retrieved", total, "unique", len(hits))

	if len(hits) == 0 {
		return nil, xerrors.New(xerrors.CodeNoRelevantPassages, "")
	}

	sources := make([]agent.Source, len(hits))
	texts := make([]genericagent.SourceText, len(hits))
	for i, h := range hits {
		sources[i] = agent.SourceFromPassage(h.Passage, h.Query)
		texts[i] = genericagent.SourceText{
			Title:   fmt.Sprintf("%s (%s)", sources[i].Title, sources[i].Citation),
			Content: h.Passage.Text,
		}
	}

	out, err := a.Synthesize(ctx, genericagent.SynthesisRequest{
		Type:     task.SynthesisType,
		Sources:  texts,
		Focus:    task.Focus,
		Format:   task.Format,
		Question: task.Question,
	})
	if err != nil {
		return nil, err
	}

	output := out.Payload(len(hits))
	output["answer"] = out.Text
	output["synthesis_type"] = task.SynthesisType
	output["queries"] = queries
	output["retrieved_count"] = len(hits)
	output["duplicates_removed"] = total - len(hits)

	return &agent.Outcome{
		Output:     output,
		Sources:    sources,
		Confidence: agent.ScoreConfidence(sources),
		Remember: map[string]any{
			"synthesis_type": task.SynthesisType,
			"queries":        len(queries),
			"sources_count":  len(hits),
		},
	}, nil
}

// manual synthesises caller-supplied sources without searching.
func (a *Agent) manual(ctx context.Context, task synthesisTask) (*agent.Outcome, error) {
	out, err := a.Synthesize(ctx, genericagent.SynthesisRequest{
		Type:     task.SynthesisType,
		Sources:  genericagent.ToSourceTexts(task.Sources),
		Focus:    task.Focus,
		Format:   task.Format,
		Question: task.Question,
	})
	if err != nil {
		return nil, err
	}
	output := out.Payload(len(task.Sources))
	output["answer"] = out.Text
	output["synthesis_type"] = task.SynthesisType
	return &agent.Outcome{
		Output:     output,
		Confidence: out.Quality,
		Remember:   map[string]any{"synthesis_type": task.SynthesisType, "sources_count": len(task.Sources)},
	}, nil
}

// fanOut runs one search per query with bounded concurrency. Results are
// stored by query index, so completion order does not affect the merge.
// The first failure cancels the remaining searches.
func (a *Agent) fanOut(ctx context.Context, queries []string, topK int, minScore float64) ([][]retrieval.Passage, error) {
	results := make([][]retrieval.Passage, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, query := range queries {
		g.Go(func() error {
			passages, _, err := agent.Retrieve(gctx, a.retriever, query, topK, minScore)
			if err != nil {
				return fmt.Errorf("query %d: %w", i+1, err)
			}
			results[i] = passages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Hit is a merged passage and the query that first returned it.
type Hit struct {
	Passage retrieval.Passage
	Query   string
}

// Merge flattens per-query results in query order, then rank order,
// keeping the first occurrence of each (source, sub-section) key.
func Merge(queries []string, results [][]retrieval.Passage) []Hit {
	seen := make(map[retrieval.PassageKey]bool)
	var hits []Hit
	for i, passages := range results {
		query := ""
		if i < len(queries) {
			query = queries[i]
		}
		for _, p := range passages {
			key := p.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, Hit{Passage: p, Query: query})
		}
	}
	return hits
}
