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

package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "vault:embed:"

// CachedEmbedder stores embeddings in Redis keyed by model and text hash.
// Cache failures are logged and fall through to the wrapped embedder.
type CachedEmbedder struct {
	next   Embedder
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(next Embedder, client redis.UniversalClient, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, client: client, ttl: ttl}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.next.Model() + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, decErr := decodeVector(raw); decErr == nil && len(vec) == c.next.Dimension() {
			return vec, nil
		}
	case !errors.Is(err, redis.Nil):
		slog.Debug("Embedding cache read failed", "error", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		slog.Debug("Embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *CachedEmbedder) Model() string { return c.next.Model() }

// Close closes the wrapped embedder. The Redis client is owned by the caller.
func (c *CachedEmbedder) Close() error { return c.next.Close() }

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid vector encoding length %d", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
