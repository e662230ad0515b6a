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

package agent

import (
	"context"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
)

// SourceFromPassage converts a retrieved passage into a cited source.
// query records the search that surfaced it and may be empty.
func SourceFromPassage(p retrieval.Passage, query string) Source {
	metadata := make(map[string]any, len(p.Metadata)+2)
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	metadata["source_id"] = p.SourceID
	if p.SubSectionID != "" {
		metadata["sub_section_id"] = p.SubSectionID
	}

	title := p.Title()
	if heading, _ := p.Metadata["section_heading"].(string); heading != "" {
		title = title + " - " + heading
	}
	return Source{
		Title:    title,
		Content:  p.Text,
		Citation: p.Citation(),
		Score:    p.Score,
		Query:    query,
		Metadata: metadata,
	}
}

// Retrieve searches r and converts the passages to sources. Uncoded
// failures are reported as retrieval unavailable.
func Retrieve(ctx context.Context, r retrieval.Retriever, query string, topK int, minScore float64) ([]retrieval.Passage, []Source, error) {
	passages, err := r.Search(ctx, query, topK, minScore)
	if err != nil {
		if _, ok := xerrors.From(err); !ok && ctx.Err() == nil {
			err = xerrors.Wrap(xerrors.CodeRetrievalUnavailable, err, "search failed")
		}
		return nil, nil, err
	}

	sources := make([]Source, len(passages))
	for i, p := range passages {
		sources[i] = SourceFromPassage(p, "")
	}
	return passages, sources, nil
}
