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

// Package domainagent implements the retrieval-backed agents: legal
// research, HR policy and customer-service documents. Each one searches
// the vector index, answers from the retrieved context and grades its
// confidence with agent.ScoreConfidence.
package domainagent

import (
	"context"
	"fmt"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
)

const (
	NameLegal      = "legal"
	NameHRPolicy   = "hr_policy"
	NameCSDocument = "cs_document"

	DefaultTopK     = 5
	DefaultMinScore = 0.3

	defaultMaxContextChars = 4000
)

// Deps are the collaborators shared by the domain agents.
type Deps struct {
	LLM       model.LLM
	Retriever retrieval.Retriever
	// Store enables the get_document tool. Optional.
	Store          documents.Store
	Policy         retry.Policy
	MemoryCapacity int
	// MaxContextChars caps the retrieved context placed in a prompt.
	MaxContextChars int
	// TopK and MinScore are the search defaults for tasks and the search
	// tool. Zero TopK and nil MinScore use DefaultTopK and DefaultMinScore.
	TopK     int
	MinScore *float64
}

func (d Deps) validate(name string) error {
	if d.Retriever == nil {
		return fmt.Errorf("agent %q: retriever is required", name)
	}
	return nil
}

func (d Deps) base(name, description string) (*agent.Base, error) {
	if err := d.validate(name); err != nil {
		return nil, err
	}
	return agent.NewBase(agent.Config{
		Name:           name,
		Description:    description,
		LLM:            d.LLM,
		Policy:         d.Policy,
		MemoryCapacity: d.MemoryCapacity,
	})
}

func (d Deps) searchDefaults() (int, float64) {
	topK, minScore := DefaultTopK, DefaultMinScore
	if d.TopK > 0 {
		topK = d.TopK
	}
	if d.MinScore != nil {
		minScore = *d.MinScore
	}
	return topK, minScore
}

func (d Deps) contextChars() int {
	if d.MaxContextChars > 0 {
		return d.MaxContextChars
	}
	return defaultMaxContextChars
}

type searchArgs struct {
	Query    string  `json:"query" jsonschema:"required,description=Search query"`
	TopK     int     `json:"top_k,omitempty" jsonschema:"description=Maximum passages,default=5,minimum=1"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"description=Similarity floor,default=0.3,minimum=0,maximum=1"`
}

// searchTool exposes the retriever to the owning agent. Omitted arguments
// take the agent's search defaults.
func searchTool(name, description string, d Deps) (agent.Tool, error) {
	topK, minScore := d.searchDefaults()
	defaults := searchArgs{TopK: topK, MinScore: minScore}
	return agent.NewToolWithDefaults(name, description, defaults, func(ctx context.Context, args searchArgs) (map[string]any, error) {
		_, sources, err := agent.Retrieve(ctx, d.Retriever, args.Query, args.TopK, args.MinScore)
		if err != nil {
			return nil, err
		}
		return map[string]any{"sources": sources, "count": len(sources)}, nil
	})
}

type documentArgs struct {
	DocNumber string `json:"doc_number" jsonschema:"required,description=Document number such as Cap. 57"`
}

func documentTool(store documents.Store) agent.Tool {
	return agent.MustTool("get_document", "Retrieve a legal document by its number",
		func(ctx context.Context, args documentArgs) (map[string]any, error) {
			doc, err := store.DocumentByNumber(ctx, args.DocNumber)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"doc_number":     doc.DocNumber,
				"doc_name":       doc.DocName,
				"title":          doc.Title,
				"status":         doc.Status,
				"total_sections": doc.TotalSections,
			}, nil
		})
}

func citations(sources []agent.Source) []string {
	out := make([]string, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s.Citation == "" || seen[s.Citation] {
			continue
		}
		seen[s.Citation] = true
		out = append(out, s.Citation)
	}
	return out
}
