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

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded provider.
type ChromemConfig struct {
	// PersistPath is a directory. Empty keeps the index in memory.
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`
}

// ChromemProvider implements Provider with chromem-go. Vectors are always
// computed by the embedder; the collection's embedding func is never used.
type ChromemProvider struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

var _ Provider = (*ChromemProvider)(nil)

func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	db := chromem.NewDB()
	if cfg.PersistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database at %s: %w", cfg.PersistPath, err)
		}
		slog.Info("Opened persistent vector database", "path", cfg.PersistPath)
	} else {
		slog.Debug("Created in-memory vector database")
	}

	return &ChromemProvider{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func precomputed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("vectors must be precomputed")
}

func (p *ChromemProvider) collection(name string) (*chromem.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if col, ok := p.collections[name]; ok {
		return col, nil
	}
	col, err := p.db.GetOrCreateCollection(name, nil, precomputed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", name, err)
	}
	p.collections[name] = col
	return col, nil
}

func (p *ChromemProvider) Name() string { return string(ProviderChromem) }

func (p *ChromemProvider) EnsureCollection(_ context.Context, collection string, _ int) error {
	_, err := p.collection(collection)
	return err
}

func (p *ChromemProvider) Upsert(ctx context.Context, collection string, records ...Record) error {
	col, err := p.collection(collection)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		metadata := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = fmt.Sprint(v)
		}
		docs = append(docs, chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  metadata,
			Embedding: r.Vector,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert %d records: %w", len(docs), err)
	}
	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	col, err := p.collection(q.Collection)
	if err != nil {
		return nil, err
	}

	n := q.TopK
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	var where map[string]string
	if len(q.Filter) > 0 {
		where = make(map[string]string, len(q.Filter))
		for k, v := range q.Filter {
			where[k] = fmt.Sprint(v)
		}
	}

	matches, err := col.QueryEmbedding(ctx, q.Vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < q.MinScore {
			continue
		}
		metadata := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			metadata[k] = v
		}
		out = append(out, Result{
			ID:       m.ID,
			Content:  m.Content,
			Metadata: metadata,
			Score:    m.Similarity,
		})
	}
	return out, nil
}

func (p *ChromemProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("filter is required")
	}
	col, err := p.collection(collection)
	if err != nil {
		return err
	}

	where := make(map[string]string, len(filter))
	for k, v := range filter {
		where[k] = fmt.Sprint(v)
	}
	if err := col.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// Close is a no-op; persistent databases write through on every change.
func (p *ChromemProvider) Close() error { return nil }
