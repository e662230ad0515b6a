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

// Package vector stores section embeddings and answers nearest-neighbour
// queries. Providers: chromem (embedded, default), qdrant, pinecone and
// pgvector.
package vector

import (
	"context"
)

// Record is a vector with the section text and payload it was built from.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// Query is a similarity search request. Providers that support a native
// score threshold apply MinScore server side; callers still filter.
type Query struct {
	Collection string
	Vector     []float32
	TopK       int
	MinScore   float32
	Filter     map[string]any
}

// Result is a scored match, most similar first.
type Result struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float32
}

// Provider is a vector index.
type Provider interface {
	Name() string

	// EnsureCollection creates collection with the given dimension if it
	// does not exist.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	Upsert(ctx context.Context, collection string, records ...Record) error
	Search(ctx context.Context, q Query) ([]Result, error)

	// DeleteByFilter removes every record whose metadata matches filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	Close() error
}

// metadataString returns metadata[key] as a string, or "".
func metadataString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
