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
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

func readBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "failed to read body")
	}
	return raw, nil
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.builder.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": defs, "count": len(defs)})
}

func (s *Server) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var def config.WorkflowConfig
	if err := json.Unmarshal(raw, &def); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid workflow definition"))
		return
	}

	stored, err := s.builder.Create(r.Context(), def)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := s.builder.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleUpdateDefinition overlays the body on the stored definition. Fields
// absent from the body keep their stored values.
func (s *Server) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid workflow definition"))
		return
	}

	stored, err := s.builder.Update(r.Context(), chi.URLParam(r, "id"), func(def *config.WorkflowConfig) error {
		// Lists and the schema are replaced, not merged into.
		if _, ok := present["steps"]; ok {
			def.Steps = nil
		}
		if _, ok := present["input_schema"]; ok {
			def.InputSchema = nil
		}
		if _, ok := present["tags"]; ok {
			def.Tags = nil
		}
		if err := json.Unmarshal(raw, def); err != nil {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid workflow definition")
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.builder.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflow_id": id, "deleted": true})
}
