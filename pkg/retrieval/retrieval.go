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

// Package retrieval finds the passages most relevant to a query: embed the
// query, search the vector index, drop hits under the score floor, order by
// descending score and enrich each hit from the document store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/embedder"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/observability"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/vector"
)

// Passage is a retrieved unit of text.
type Passage struct {
	SourceID     string         `json:"source_id"`
	SubSectionID string         `json:"sub_section_id,omitempty"`
	Text         string         `json:"text"`
	Score        float64        `json:"score"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// PassageKey is the (source, sub-section) pair identifying a passage.
type PassageKey struct {
	SourceID     string
	SubSectionID string
}

// Key identifies a passage for deduplication.
func (p Passage) Key() PassageKey {
	return PassageKey{SourceID: p.SourceID, SubSectionID: p.SubSectionID}
}

// Title is the display title from metadata, falling back to the source ID.
func (p Passage) Title() string {
	name, _ := p.Metadata["doc_name"].(string)
	title, _ := p.Metadata["doc_title"].(string)
	switch {
	case name != "" && title != "" && name != title:
		return name + ": " + title
	case title != "":
		return title
	case name != "":
		return name
	default:
		return p.SourceID
	}
}

// Citation renders "Cap. 57, Section 10", or the source ID alone.
func (p Passage) Citation() string {
	if p.SubSectionID == "" {
		return p.SourceID
	}
	return fmt.Sprintf("%s, Section %s", p.SourceID, p.SubSectionID)
}

// Retriever searches for passages. Results are ordered by descending score
// (ties keep index order), hold at most topK entries and never score below
// minScore. An empty result is not an error; an unreachable index or
// embedder is reported as xerrors.ErrRetrievalUnavailable.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, minScore float64) ([]Passage, error)
}

// Func adapts a function to Retriever.
type Func func(ctx context.Context, query string, topK int, minScore float64) ([]Passage, error)

func (f Func) Search(ctx context.Context, query string, topK int, minScore float64) ([]Passage, error) {
	return f(ctx, query, topK, minScore)
}

// Options configures a Service.
type Options struct {
	Collection string
	Policy     retry.Policy
	// Enrich looks up db_id hits in the document store.
	Enrich bool
}

// Service is the vector-backed Retriever.
type Service struct {
	embedder embedder.Embedder
	index    vector.Provider
	store    documents.Store
	opts     Options
}

var _ Retriever = (*Service)(nil)

// NewService creates a Service. store may be nil, which disables enrichment.
func NewService(emb embedder.Embedder, index vector.Provider, store documents.Store, opts Options) (*Service, error) {
	if emb == nil || index == nil {
		return nil, fmt.Errorf("embedder and vector provider are required")
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	opts.Policy.SetDefaults()
	return &Service{embedder: emb, index: index, store: store, opts: opts}, nil
}

func (s *Service) Search(ctx context.Context, query string, topK int, minScore float64) (passages []Passage, err error) {
	if query == "" {
		return nil, xerrors.New(xerrors.CodeMissingField, "query is required")
	}
	if topK <= 0 {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "top_k must be positive, got %d", topK)
	}
	if minScore < 0 || minScore > 1 {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "min_score must be within [0, 1], got %g", minScore)
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanRetrievalSearch,
		attribute.String(observability.AttrQuery, query),
		attribute.Int(observability.AttrTopK, topK),
		attribute.Float64(observability.AttrMinScore, minScore))
	defer func() {
		span.SetAttributes(attribute.Int(observability.AttrPassages, len(passages)))
		observability.EndSpan(span, err)
		observability.GlobalMetrics().RecordRetrieval(ctx, time.Since(start), len(passages), err)
	}()

	results, err := retry.Do(ctx, s.opts.Policy, "retrieval.search", func(ctx context.Context) ([]vector.Result, error) {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, unavailable(ctx, err, "failed to embed query")
		}
		results, err := s.index.Search(ctx, vector.Query{
			Collection: s.opts.Collection,
			Vector:     vec,
			TopK:       topK,
			MinScore:   float32(minScore),
		})
		if err != nil {
			return nil, unavailable(ctx, err, "vector search failed")
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}

	passages = make([]Passage, 0, len(results))
	for _, r := range results {
		if float64(r.Score) < minScore {
			continue
		}
		passages = append(passages, s.toPassage(ctx, r))
	}
	passages = Rank(passages, topK, minScore)

	slog.Debug("Retrieved passages", "query", query, "hits", len(results), "passages", len(passages))
	return passages, nil
}

// unavailable classifies a collaborator failure, keeping coded errors and
// cancellations untouched.
func unavailable(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return err
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	return xerrors.Wrap(xerrors.CodeRetrievalUnavailable, err, msg)
}

func (s *Service) toPassage(ctx context.Context, r vector.Result) Passage {
	metadata := make(map[string]any, len(r.Metadata)+4)
	for k, v := range r.Metadata {
		metadata[k] = v
	}

	p := Passage{
		SourceID:     stringField(metadata, "doc_number"),
		SubSectionID: stringField(metadata, "section_number"),
		Text:         r.Content,
		Score:        float64(r.Score),
		Metadata:     metadata,
	}

	if s.opts.Enrich && s.store != nil {
		if id, ok := intField(metadata, "db_id"); ok {
			s.enrich(ctx, &p, id)
		}
	}

	if p.SourceID == "" {
		p.SourceID = r.ID
	}
	return p
}

func (s *Service) enrich(ctx context.Context, p *Passage, sectionID int64) {
	ref, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		if !errors.Is(err, documents.ErrNotFound) {
			slog.Warn("Failed to enrich passage", "db_id", sectionID, "error", err)
		}
		return
	}

	p.SourceID = ref.DocNumber
	p.SubSectionID = ref.SectionNumber
	if p.Text == "" {
		p.Text = ref.Content
	}
	p.Metadata["doc_number"] = ref.DocNumber
	p.Metadata["doc_name"] = ref.DocName
	p.Metadata["doc_title"] = ref.DocTitle
	p.Metadata["section_number"] = ref.SectionNumber
	p.Metadata["section_heading"] = ref.Heading
}

// Rank drops passages under minScore, stable-sorts the rest by descending
// score and keeps the first topK.
func Rank(passages []Passage, topK int, minScore float64) []Passage {
	out := make([]Passage, 0, len(passages))
	for _, p := range passages {
		if p.Score >= minScore {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intField(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
