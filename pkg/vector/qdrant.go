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
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDKey holds the caller's record ID. Qdrant only accepts UUIDs and
// integers as point IDs.
const payloadIDKey = "record_id"

// QdrantConfig configures the Qdrant provider (gRPC).
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

// QdrantProvider implements Provider using Qdrant.
type QdrantProvider struct {
	client *qdrant.Client
}

var _ Provider = (*QdrantProvider)(nil)

func NewQdrantProvider(cfg QdrantConfig) (*QdrantProvider, error) {
	cfg.SetDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantProvider{client: client}, nil
}

func (p *QdrantProvider) Name() string { return string(ProviderQdrant) }

func (p *QdrantProvider) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", collection, err)
	}
	if exists {
		return nil
	}

	err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection %q: %w", collection, err)
	}
	return nil
}

func (p *QdrantProvider) Upsert(ctx context.Context, collection string, records ...Record) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload, err := qdrantPayload(r)
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: payload,
		})
	}

	wait := true
	if _, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func (p *QdrantProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	limit := uint64(q.TopK)
	req := &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Query:          qdrant.NewQueryDense(q.Vector),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if q.MinScore > 0 {
		req.ScoreThreshold = qdrant.PtrOf(q.MinScore)
	}
	if len(q.Filter) > 0 {
		req.Filter = qdrantFilter(q.Filter)
	}

	points, err := p.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}
	return convertQdrantPoints(points), nil
}

func (p *QdrantProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("filter is required")
	}
	if _, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(qdrantFilter(filter)),
	}); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

func (p *QdrantProvider) Close() error {
	return p.client.Close()
}

// pointID maps id onto a UUID, deterministically for non-UUID ids.
func pointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func qdrantPayload(r Record) (map[string]*qdrant.Value, error) {
	raw := make(map[string]any, len(r.Metadata)+2)
	for k, v := range r.Metadata {
		raw[k] = v
	}
	raw[payloadIDKey] = r.ID
	if r.Content != "" {
		raw["content"] = r.Content
	}
	payload, err := qdrant.TryValueMap(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid payload for record %s: %w", r.ID, err)
	}
	return payload, nil
}

func qdrantFilter(filter map[string]any) *qdrant.Filter {
	must := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		switch v := value.(type) {
		case int:
			must = append(must, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(key, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(key, v))
		default:
			must = append(must, qdrant.NewMatch(key, fmt.Sprint(v)))
		}
	}
	return &qdrant.Filter{Must: must}
}

func convertQdrantPoints(points []*qdrant.ScoredPoint) []Result {
	results := make([]Result, 0, len(points))
	for _, point := range points {
		metadata := make(map[string]any, len(point.GetPayload()))
		for key, value := range point.GetPayload() {
			metadata[key] = qdrantValue(value)
		}

		id := metadataString(metadata, payloadIDKey)
		if id == "" {
			id = qdrantPointID(point.GetId())
		}
		delete(metadata, payloadIDKey)

		content := metadataString(metadata, "content")
		delete(metadata, "content")

		results = append(results, Result{
			ID:       id,
			Content:  content,
			Metadata: metadata,
			Score:    point.GetScore(),
		})
	}
	return results
}

func qdrantPointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func qdrantValue(value *qdrant.Value) any {
	switch v := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(v.ListValue.GetValues()))
		for _, item := range v.ListValue.GetValues() {
			list = append(list, qdrantValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(v.StructValue.GetFields()))
		for k, item := range v.StructValue.GetFields() {
			m[k] = qdrantValue(item)
		}
		return m
	default:
		return nil
	}
}
