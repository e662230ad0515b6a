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

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/embedder"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/vector"
)

const (
	// maxEmbedChars bounds the text embedded for one section.
	maxEmbedChars = 8000
	// previewChars bounds the section text stored in the vector payload.
	previewChars = 2000
	defaultBatch = 32
)

// Ingester stores parsed documents and indexes their sections.
type Ingester struct {
	parsers    *Parsers
	store      documents.Store
	index      vector.Provider
	embedder   embedder.Embedder
	collection string
	batchSize  int
}

// Config holds the collaborators of an Ingester.
type Config struct {
	Parsers    *Parsers
	Store      documents.Store
	Index      vector.Provider
	Embedder   embedder.Embedder
	Collection string
	BatchSize  int
}

func New(cfg Config) (*Ingester, error) {
	switch {
	case cfg.Parsers == nil:
		return nil, fmt.Errorf("parsers are required")
	case cfg.Store == nil:
		return nil, fmt.Errorf("document store is required")
	case cfg.Index == nil:
		return nil, fmt.Errorf("vector index is required")
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	case cfg.Collection == "":
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatch
	}
	return &Ingester{
		parsers:    cfg.Parsers,
		store:      cfg.Store,
		index:      cfg.Index,
		embedder:   cfg.Embedder,
		collection: cfg.Collection,
		batchSize:  cfg.BatchSize,
	}, nil
}

// FileResult reports the outcome for one file.
type FileResult struct {
	Path       string `json:"path"`
	DocNumber  string `json:"doc_number,omitempty"`
	DocumentID int64  `json:"document_id,omitempty"`
	Sections   int    `json:"sections"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report summarises a directory ingestion.
type Report struct {
	Files    []FileResult `json:"files"`
	Ingested int          `json:"ingested"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Sections int          `json:"sections"`
}

// IngestFile parses path, stores the document and indexes its sections.
// A document whose number is already stored is skipped.
func (i *Ingester) IngestFile(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Path: path}

	parsed, err := i.parsers.Parse(ctx, path)
	if err != nil {
		return res, err
	}
	doc := parsed.Document
	res.DocNumber = doc.DocNumber

	existing, err := i.store.DocumentByNumber(ctx, doc.DocNumber)
	switch {
	case err == nil:
		res.DocumentID = existing.ID
		res.Skipped = true
		slog.Info("Document already ingested", "doc_number", doc.DocNumber, "path", path)
		return res, nil
	case !errors.Is(err, documents.ErrNotFound):
		return res, fmt.Errorf("failed to look up %s: %w", doc.DocNumber, err)
	}

	sections := parsed.Sections
	if err := i.store.CreateDocument(ctx, &doc, sections); err != nil {
		return res, fmt.Errorf("failed to store %s: %w", doc.DocNumber, err)
	}
	res.DocumentID = doc.ID

	if err := i.index.EnsureCollection(ctx, i.collection, i.embedder.Dimension()); err != nil {
		return res, fmt.Errorf("failed to prepare collection %s: %w", i.collection, err)
	}

	for start := 0; start < len(sections); start += i.batchSize {
		batch := sections[start:min(start+i.batchSize, len(sections))]
		if err := i.indexBatch(ctx, doc, batch); err != nil {
			// Keep the store and the index consistent.
			if delErr := i.store.DeleteDocument(ctx, doc.ID); delErr != nil {
				slog.Warn("Failed to roll back document", "doc_number", doc.DocNumber, "error", delErr)
			}
			if delErr := i.index.DeleteByFilter(ctx, i.collection, map[string]any{"document_id": doc.ID}); delErr != nil {
				slog.Warn("Failed to roll back vectors", "doc_number", doc.DocNumber, "error", delErr)
			}
			return res, err
		}
		res.Sections += len(batch)
	}

	slog.Info("Ingested document", "doc_number", doc.DocNumber, "name", doc.DocName, "sections", res.Sections)
	return res, nil
}

func (i *Ingester) indexBatch(ctx context.Context, doc documents.Document, sections []documents.Section) error {
	texts := make([]string, len(sections))
	for n, s := range sections {
		texts[n] = truncate(s.Heading+" "+s.Content, maxEmbedChars)
	}

	vectors, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed sections of %s: %w", doc.DocNumber, err)
	}

	records := make([]vector.Record, len(sections))
	for n, s := range sections {
		records[n] = vector.Record{
			ID:      uuid.NewString(),
			Vector:  vectors[n],
			Content: truncate(s.Content, previewChars),
			Metadata: map[string]any{
				"db_id":           s.ID,
				"document_id":     doc.ID,
				"doc_number":      doc.DocNumber,
				"doc_name":        doc.DocName,
				"section_number":  s.SectionNumber,
				"section_heading": s.Heading,
			},
		}
	}

	if err := i.index.Upsert(ctx, i.collection, records...); err != nil {
		return fmt.Errorf("failed to index sections of %s: %w", doc.DocNumber, err)
	}
	return nil
}

// IngestDir ingests every supported file under dir in lexical order, up to
// limit files when limit is positive. Per-file failures are reported and
// do not stop the walk.
func (i *Ingester) IngestDir(ctx context.Context, dir string, limit int) (*Report, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && i.parsers.Supports(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	report := &Report{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := i.IngestFile(ctx, path)
		switch {
		case err != nil:
			res.Error = err.Error()
			report.Failed++
			slog.Warn("Failed to ingest file", "path", path, "error", err)
		case res.Skipped:
			report.Skipped++
		default:
			report.Ingested++
			report.Sections += res.Sections
		}
		report.Files = append(report.Files, res)
	}
	return report, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
