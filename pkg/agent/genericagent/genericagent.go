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

// Package genericagent implements the analysis, synthesis and validation
// agents. They work only on the text and structured data handed to them in
// the task and never search the index.
//
// Each variant grades its own confidence from the structure of the model's
// reply; the rule is documented on the variant.
package genericagent

import (
	"fmt"
	"strings"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
)

const (
	NameAnalysis   = "analysis"
	NameSynthesis  = "synthesis"
	NameValidation = "validation"

	maxDataChars    = 3000
	maxSourcesChars = 4000
	maxContentChars = 2500
)

// Deps are the collaborators of the generic agents.
type Deps struct {
	LLM            model.LLM
	Policy         retry.Policy
	MemoryCapacity int
}

func (d Deps) base(name, description string) (*agent.Base, error) {
	return agent.NewBase(agent.Config{
		Name:           name,
		Description:    description,
		LLM:            d.LLM,
		Policy:         d.Policy,
		MemoryCapacity: d.MemoryCapacity,
	})
}

// SourceText is one titled input of a synthesis.
type SourceText struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// contentKeys are the payload fields read, in order, when a prior agent
// result is handed over as a source or as content to validate.
var contentKeys = []string{"content", "answer", "synthesized_output", "analysis", "result"}

// ToSourceTexts normalises task sources: {title, content} pairs, prior
// agent results or plain values.
func ToSourceTexts(items []any) []SourceText {
	out := make([]SourceText, 0, len(items))
	for i, item := range items {
		fallback := fmt.Sprintf("Source %d", i+1)
		switch v := item.(type) {
		case SourceText:
			out = append(out, v)
		case map[string]any:
			title := firstString(v, "title", "agent", "source")
			if title == "" {
				title = fallback
			}
			out = append(out, SourceText{Title: title, Content: contentOf(v)})
		default:
			out = append(out, SourceText{Title: fallback, Content: agent.FormatData(v)})
		}
	}
	return out
}

func contentOf(v map[string]any) string {
	for _, key := range contentKeys {
		if c, ok := v[key]; ok && c != nil {
			return agent.FormatData(c)
		}
	}
	return agent.FormatData(v)
}

func firstString(v map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := v[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func formatSources(sources []SourceText, maxChars int) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = "## " + s.Title + "\n\n" + s.Content
	}
	return agent.Truncate(strings.Join(parts, "\n\n---\n\n"), maxChars)
}
