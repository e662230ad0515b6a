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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string       `json:"error"`
	Code  xerrors.Code `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{Error: err.Error(), Code: xerrors.CodeOf(err)})
}

// statusOf maps an error's code to an HTTP status.
func statusOf(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeAgentNotFound, xerrors.CodeWorkflowNotFound, xerrors.CodeToolNotFound:
		return http.StatusNotFound
	case xerrors.CodeAlreadyExists:
		return http.StatusConflict
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeCancelled:
		return http.StatusServiceUnavailable
	}
	switch xerrors.CategoryOf(err) {
	case xerrors.CategoryInput:
		return http.StatusBadRequest
	case xerrors.CategoryCollaborator:
		return http.StatusBadGateway
	case xerrors.CategoryDomain:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeObject reads a JSON object body. An empty body is an empty object.
func decodeObject(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid JSON body")
	}
	return body, nil
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := healthBody{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			body.Checks[name] = err.Error()
			body.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body.Checks[name] = "ok"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.orch.Agents().Capabilities()})
}

func (s *Server) handleExecuteAgent(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.orch.ExecuteAgent(r.Context(), chi.URLParam(r, "agent"), agent.Task(body))
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !res.Completed() {
		status = statusOf(res.Err())
	}
	writeJSON(w, status, res)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"workflows": s.orch.Workflows().Infos()})
}

// handleExecuteWorkflow runs a workflow. The body is the workflow input,
// optionally wrapped as {"input": {...}}.
func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	input := workflow.Input(body)
	if wrapped, ok := body["input"].(map[string]any); ok && len(body) == 1 {
		input = workflow.Input(wrapped)
	}

	exec, err := s.orch.ExecuteWorkflow(r.Context(), chi.URLParam(r, "workflow"), input)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !exec.Completed() {
		status = statusOf(exec.Err())
	}
	writeJSON(w, status, exec)
}

func (s *Server) handleWorkflowSchema(w http.ResponseWriter, r *http.Request) {
	wf, err := s.orch.Workflows().Lookup(chi.URLParam(r, "workflow"))
	if err != nil {
		writeError(w, err)
		return
	}
	schema := wf.InputSchema
	if schema == nil {
		schema = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflow_id": wf.Name, "input_schema": schema})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	records, err := s.orch.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": records})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orch.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
