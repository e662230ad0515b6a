package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
)

func TestModel_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.3:70b","message":{"role":"assistant","content":"Cap. 7 s. 6"},"done":true,"prompt_eval_count":12,"eval_count":5}`))
	}))
	defer server.Close()

	m, err := New(Config{
		Config:  model.Config{Model: "llama3.3:70b", BaseURL: server.URL, Temperature: 0.3, MaxTokens: 4096},
		Timeout: time.Second,
	})
	require.NoError(t, err)

	resp, err := m.Generate(context.Background(), &model.Request{
		System:      "You are a legal assistant.",
		Prompt:      "What is a tenancy?",
		Temperature: model.Float64(0.1),
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Cap. 7 s. 6", resp.Text)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)

	assert.Equal(t, false, got["stream"])
	assert.Equal(t, "json", got["format"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	options := got["options"].(map[string]any)
	assert.InDelta(t, 0.1, options["temperature"], 1e-9)
	assert.EqualValues(t, 4096, options["num_predict"])
}

func TestModel_ServerErrorIsModelFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m, err := New(Config{Config: model.Config{Model: "llama3.3:70b", BaseURL: server.URL}, Timeout: time.Second})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), &model.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrModelFailure))
	assert.True(t, xerrors.IsRetryable(err))
}

func TestModel_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.3:70b"}]}`))
	}))
	defer server.Close()

	m, err := New(Config{Config: model.Config{Model: "llama3.3:70b", BaseURL: server.URL}, Timeout: time.Second})
	require.NoError(t, err)
	assert.NoError(t, m.Health(context.Background()))

	missing, err := New(Config{Config: model.Config{Model: "mistral", BaseURL: server.URL}, Timeout: time.Second})
	require.NoError(t, err)
	assert.Error(t, missing.Health(context.Background()))
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
