package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

func newOllamaServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32(len(req.Prompt)) / float32(i+1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var calls atomic.Int32
	server := newOllamaServer(t, 4, &calls)

	e, err := NewOllamaEmbedder(OllamaConfig{Model: "nomic-embed-text", BaseURL: server.URL, Dimension: 4, Timeout: time.Second})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "abcd"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(4), vecs[1][0])
	assert.EqualValues(t, 2, calls.Load())
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	var calls atomic.Int32
	server := newOllamaServer(t, 3, &calls)

	e, err := NewOllamaEmbedder(OllamaConfig{Model: "nomic-embed-text", BaseURL: server.URL, Dimension: 768, Timeout: time.Second})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrRetrievalUnavailable))
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	e, err := NewOllamaEmbedder(OllamaConfig{Model: "m", BaseURL: url, Dimension: 4, Timeout: time.Second})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	assert.True(t, errors.Is(err, xerrors.ErrRetrievalUnavailable))
	assert.True(t, xerrors.IsRetryable(err))
}

func TestCachedEmbedder_HitsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls atomic.Int32
	server := newOllamaServer(t, 4, &calls)
	inner, err := NewOllamaEmbedder(OllamaConfig{Model: "nomic-embed-text", BaseURL: server.URL, Dimension: 4, Timeout: time.Second})
	require.NoError(t, err)

	cached := NewCachedEmbedder(inner, client, time.Hour)

	first, err := cached.Embed(context.Background(), "tenancy")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "tenancy")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())
	assert.Len(t, mr.Keys(), 1)
}

func TestCachedEmbedder_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	var calls atomic.Int32
	server := newOllamaServer(t, 4, &calls)
	inner, err := NewOllamaEmbedder(OllamaConfig{Model: "nomic-embed-text", BaseURL: server.URL, Dimension: 4, Timeout: time.Second})
	require.NoError(t, err)

	vec, err := NewCachedEmbedder(inner, client, time.Hour).Embed(context.Background(), "tenancy")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0.5, -1.25, 3}
	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
