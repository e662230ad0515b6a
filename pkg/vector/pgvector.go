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

package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// PgvectorConfig configures the PostgreSQL pgvector provider. Each
// collection is a table named after it.
type PgvectorConfig struct {
	DSN string `yaml:"dsn"`
}

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// PgvectorProvider implements Provider on PostgreSQL with the vector
// extension, using cosine distance.
type PgvectorProvider struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	ensured map[string]bool
}

var _ Provider = (*PgvectorProvider)(nil)

func NewPgvectorProvider(ctx context.Context, cfg PgvectorConfig) (*PgvectorProvider, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid pgvector dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to enable vector extension: %w", err)
	}
	return &PgvectorProvider{pool: pool, ensured: make(map[string]bool)}, nil
}

func (p *PgvectorProvider) Name() string { return string(ProviderPgvector) }

func tableName(collection string) (string, error) {
	if !collectionName.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return pgx.Identifier{collection}.Sanitize(), nil
}

func (p *PgvectorProvider) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured[collection] {
		return nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb
)`, table, dimension)
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table for %q: %w", collection, err)
	}
	p.ensured[collection] = true
	return nil
}

func (p *PgvectorProvider) Upsert(ctx context.Context, collection string, records ...Record) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, content, metadata) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, content = EXCLUDED.content, metadata = EXCLUDED.metadata`, table)

	batch := &pgx.Batch{}
	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("invalid metadata for record %s: %w", r.ID, err)
		}
		batch.Queue(query, r.ID, pgvector.NewVector(r.Vector), r.Content, metadata)
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert %d records: %w", len(records), err)
	}
	return nil
}

// searchSQL builds the similarity query. Score is cosine similarity.
func searchSQL(table string, filtered bool) string {
	where := ""
	if filtered {
		where = "WHERE metadata @> $3::jsonb "
	}
	return fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1) AS score FROM %s %sORDER BY embedding <=> $1 LIMIT $2`, table, where)
}

func (p *PgvectorProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	table, err := tableName(q.Collection)
	if err != nil {
		return nil, err
	}

	args := []any{pgvector.NewVector(q.Vector), q.TopK}
	if len(q.Filter) > 0 {
		filter, err := json.Marshal(q.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		args = append(args, filter)
	}

	rows, err := p.pool.Query(ctx, searchSQL(table, len(q.Filter) > 0), args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector query failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r        Result
			metadata []byte
			score    float64
		)
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata for %s: %w", r.ID, err)
		}
		r.Score = float32(score)
		if r.Score < q.MinScore {
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (p *PgvectorProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("filter is required")
	}
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE metadata @> $1::jsonb", table), raw); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

func (p *PgvectorProvider) Close() error {
	p.pool.Close()
	return nil
}
