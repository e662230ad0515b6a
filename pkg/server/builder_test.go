package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/orchestrator"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

const chainDefinition = `{
  "workflow_id": "chain",
  "name": "Echo chain",
  "category": "general",
  "output_field": "answer",
  "steps": [
    {"name": "first", "agent_name": "echo",
     "task_config": {"input_mappings": {"question": {"source": "input", "field": "question"}}}},
    {"name": "second", "agent_name": "echo",
     "task_config": {"input_mappings": {"question": {"source": "step", "step_name": "first"}}}}
  ]
}`

func newBuilderServer(t *testing.T) http.Handler {
	t.Helper()
	agents, wfs := testRegistries(t)
	b := workflow.NewBuilder(wfs, documents.NewMemoryStore(), agents.Has)
	return New(":0", orchestrator.New(agents, wfs), WithWorkflowBuilder(b)).Handler()
}

func TestWorkflowBuilder_CreateAndRun(t *testing.T) {
	h := newBuilderServer(t)

	rec, body := do(t, h, http.MethodPost, "/api/workflows/builder", chainDefinition)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "chain", body["workflow_id"])
	assert.NotEmpty(t, body["created_at"])

	rec, _ = do(t, h, http.MethodPost, "/api/workflows/builder", chainDefinition)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = do(t, h, http.MethodPost, "/api/workflows/chain", `{"question":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "echo: echo: hi", body["final_output"])

	rec, body = do(t, h, http.MethodGet, "/api/workflows/chain/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"question": map[string]any{"required": true}}, body["input_schema"])

	rec, body = do(t, h, http.MethodGet, "/api/workflows/builder?category=general", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	rec, body = do(t, h, http.MethodGet, "/api/workflows/builder?category=legal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"])
}

func TestWorkflowBuilder_RejectsBadDefinitions(t *testing.T) {
	h := newBuilderServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"typo in step_name", `{"workflow_id":"w","steps":[{"name":"a","agent_name":"echo"},
			{"name":"b","agent_name":"echo","task_config":{"input_mappings":{"q":{"source":"step","step_name":"aa"}}}}]}`, http.StatusBadRequest},
		{"unknown agent", `{"workflow_id":"w","steps":[{"name":"a","agent_name":"ecko"}]}`, http.StatusBadRequest},
		{"no steps", `{"workflow_id":"w","steps":[]}`, http.StatusBadRequest},
		{"builtin id", `{"workflow_id":"ask","steps":[{"name":"a","agent_name":"echo"}]}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPost, "/api/workflows/builder", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestWorkflowBuilder_UpdateAndDelete(t *testing.T) {
	h := newBuilderServer(t)
	rec, _ := do(t, h, http.MethodPost, "/api/workflows/builder", chainDefinition)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := do(t, h, http.MethodPut, "/api/workflows/builder/chain", `{"description":"updated","output_step":"first"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "updated", body["description"])
	assert.Equal(t, "Echo chain", body["name"])
	assert.Len(t, body["steps"], 2)

	rec, body = do(t, h, http.MethodPost, "/api/workflows/chain", `{"question":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: hi", body["final_output"])

	rec, body = do(t, h, http.MethodPut, "/api/workflows/builder/chain",
		`{"output_step":"","steps":[{"name":"only","agent_name":"echo","task_config":{"input_mappings":{"question":{"source":"input","field":"question"}}}}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["steps"], 1)

	rec, _ = do(t, h, http.MethodPut, "/api/workflows/builder/chain", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/api/workflows/chain", `{"question":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/api/workflows/builder/ask", `{"description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, h, http.MethodDelete, "/api/workflows/builder/ask", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/workflows/builder/chain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/workflows/builder/chain", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowSchema_Builtin(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/workflows/ask/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ask", body["workflow_id"])
	assert.Equal(t, map[string]any{}, body["input_schema"])

	rec, _ = do(t, h, http.MethodGet, "/api/workflows/nope/schema", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/workflows/builder", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
