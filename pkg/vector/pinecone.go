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
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone provider. Collections map onto
// index names; indexes must be created ahead of time.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// PineconeProvider implements Provider using Pinecone.
type PineconeProvider struct {
	client    *pinecone.Client
	namespace string

	mu    sync.Mutex
	conns map[string]*pinecone.IndexConnection
}

var _ Provider = (*PineconeProvider)(nil)

func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}

	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	return &PineconeProvider{
		client:    client,
		namespace: cfg.Namespace,
		conns:     make(map[string]*pinecone.IndexConnection),
	}, nil
}

func (p *PineconeProvider) Name() string { return string(ProviderPinecone) }

// index returns a cached connection to the named index.
func (p *PineconeProvider) index(ctx context.Context, name string) (*pinecone.IndexConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[name]; ok {
		return conn, nil
	}

	desc, err := p.client.DescribeIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", name, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: desc.Host, Namespace: p.namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", name, err)
	}
	p.conns[name] = conn
	return conn, nil
}

// EnsureCollection verifies the index exists.
func (p *PineconeProvider) EnsureCollection(ctx context.Context, collection string, _ int) error {
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == collection {
			return nil
		}
	}
	return fmt.Errorf("pinecone index %s does not exist", collection)
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection string, records ...Record) error {
	conn, err := p.index(ctx, collection)
	if err != nil {
		return err
	}

	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, r := range records {
		raw := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			raw[k] = v
		}
		if r.Content != "" {
			raw["content"] = r.Content
		}
		metadata, err := structpb.NewStruct(raw)
		if err != nil {
			return fmt.Errorf("invalid metadata for record %s: %w", r.ID, err)
		}
		vectors = append(vectors, &pinecone.Vector{Id: r.ID, Values: r.Vector, Metadata: metadata})
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to upsert %d vectors: %w", len(vectors), err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	conn, err := p.index(ctx, q.Collection)
	if err != nil {
		return nil, err
	}

	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          q.Vector,
		TopK:            uint32(q.TopK),
		IncludeMetadata: true,
	}
	if len(q.Filter) > 0 {
		filter, err := structpb.NewStruct(q.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		req.MetadataFilter = filter
	}

	resp, err := conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		if match.Vector == nil {
			continue
		}
		metadata := map[string]any{}
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}
		content := metadataString(metadata, "content")
		delete(metadata, "content")

		results = append(results, Result{
			ID:       match.Vector.Id,
			Content:  content,
			Metadata: metadata,
			Score:    match.Score,
		})
	}
	return results, nil
}

func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("filter is required")
	}
	conn, err := p.index(ctx, collection)
	if err != nil {
		return err
	}
	metadataFilter, err := structpb.NewStruct(filter)
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	if err := conn.DeleteVectorsByFilter(ctx, metadataFilter); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

func (p *PineconeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, name)
	}
	return firstErr
}
