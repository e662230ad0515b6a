package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
)

func newModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m, err := New(Config{
		Config:  model.Config{Model: "claude-sonnet-4-5", BaseURL: server.URL, APIKey: "test-key", Temperature: 0.3, MaxTokens: 1024},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return m
}

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	m := newModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Section 6 applies."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 42, "output_tokens": 7}
		}`))
	})

	resp, err := m.Generate(context.Background(), &model.Request{System: "Be precise.", Prompt: "Which section?"})
	require.NoError(t, err)

	assert.Equal(t, "Section 6 applies.", resp.Text)
	assert.Equal(t, 42, resp.InputTokens)
	assert.Equal(t, 7, resp.OutputTokens)
	assert.Equal(t, "claude-sonnet-4-5", body["model"])
	assert.EqualValues(t, 1024, body["max_tokens"])
	system := body["system"].([]any)
	assert.Equal(t, "Be precise.", system[0].(map[string]any)["text"])
}

func TestModel_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"overloaded", 529, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`))
			})

			_, err := m.Generate(context.Background(), &model.Request{Prompt: "hi"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, xerrors.ErrModelFailure))
			assert.Equal(t, tt.retryable, xerrors.IsRetryable(err))
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Config: model.Config{Model: "claude-sonnet-4-5"}})
	assert.Error(t, err)

	_, err = New(Config{Config: model.Config{APIKey: "k"}})
	assert.Error(t, err)
}
