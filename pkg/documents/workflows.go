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


package documents

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// ErrAlreadyExists is returned when a workflow ID is taken.
var ErrAlreadyExists = errors.New("already exists")

// WorkflowDefinition is a persisted user-defined workflow.
type WorkflowDefinition struct {
	config.WorkflowConfig
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowStore persists user-defined workflow definitions keyed by
// workflow ID.
type WorkflowStore interface {
	ListWorkflows(ctx context.Context) ([]WorkflowDefinition, error)
	GetWorkflow(ctx context.Context, id string) (*WorkflowDefinition, error)
	// CreateWorkflow fails with ErrAlreadyExists when the ID is taken.
	CreateWorkflow(ctx context.Context, def *WorkflowDefinition) error
	// UpdateWorkflow replaces the stored definition and keeps CreatedAt.
	UpdateWorkflow(ctx context.Context, def *WorkflowDefinition) error
	DeleteWorkflow(ctx context.Context, id string) error
}

var (
	_ WorkflowStore = (*MemoryStore)(nil)
	_ WorkflowStore = (*SQLStore)(nil)
)

func (s *MemoryStore) ListWorkflows(_ context.Context) ([]WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WorkflowDefinition, 0, len(s.workflows))
	for _, def := range s.workflows {
		out = append(out, copyDefinition(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetWorkflow(_ context.Context, id string) (*WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	def = copyDefinition(def)
	return &def, nil
}

func (s *MemoryStore) CreateWorkflow(_ context.Context, def *WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[def.ID]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	def.CreatedAt, def.UpdatedAt = now, now
	s.workflows[def.ID] = copyDefinition(*def)
	return nil
}

func (s *MemoryStore) UpdateWorkflow(_ context.Context, def *WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.workflows[def.ID]
	if !ok {
		return ErrNotFound
	}
	def.CreatedAt, def.UpdatedAt = old.CreatedAt, time.Now().UTC()
	s.workflows[def.ID] = copyDefinition(*def)
	return nil
}

func (s *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

func copyDefinition(def WorkflowDefinition) WorkflowDefinition {
	def.WorkflowConfig = def.WorkflowConfig.Clone()
	return def
}

const workflowColumns = "definition, created_at, updated_at"

func scanWorkflow(row scanner) (*WorkflowDefinition, error) {
	var (
		raw string
		def WorkflowDefinition
	)
	if err := row.Scan(&raw, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &def.WorkflowConfig); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "stored workflow definition is not valid JSON",
			xerrors.WithRetryable(false))
	}
	return &def, nil
}

func (s *SQLStore) ListWorkflows(ctx context.Context) ([]WorkflowDefinition, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+workflowColumns+" FROM custom_workflows ORDER BY workflow_id")
	if err != nil {
		return nil, storageErr(err, "failed to list workflows")
	}
	defer rows.Close()

	var out []WorkflowDefinition
	for rows.Next() {
		def, err := scanWorkflow(rows)
		if err != nil {
			return nil, storageErr(err, "failed to scan workflow")
		}
		out = append(out, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to list workflows")
	}
	return out, nil
}

func (s *SQLStore) GetWorkflow(ctx context.Context, id string) (*WorkflowDefinition, error) {
	row := s.db.QueryRowContext(ctx, s.bind("SELECT "+workflowColumns+" FROM custom_workflows WHERE workflow_id = ?"), id)
	def, err := scanWorkflow(row)
	if err != nil {
		return nil, storageErr(err, "failed to load workflow")
	}
	return def, nil
}

func (s *SQLStore) CreateWorkflow(ctx context.Context, def *WorkflowDefinition) error {
	raw, err := json.Marshal(def.WorkflowConfig)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "workflow definition cannot be encoded")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, s.bind("SELECT COUNT(*) FROM custom_workflows WHERE workflow_id = ?"), def.ID).Scan(&n); err != nil {
		return storageErr(err, "failed to check workflow")
	}
	if n > 0 {
		return ErrAlreadyExists
	}

	now := time.Now().UTC()
	if _, err := s.insert(ctx, tx, `INSERT INTO custom_workflows
(workflow_id, name, category, definition, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.Name, def.Category, string(raw), def.IsActive(), now, now); err != nil {
		return storageErr(err, "failed to insert workflow")
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "failed to commit workflow")
	}
	def.CreatedAt, def.UpdatedAt = now, now
	return nil
}

func (s *SQLStore) UpdateWorkflow(ctx context.Context, def *WorkflowDefinition) error {
	raw, err := json.Marshal(def.WorkflowConfig)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "workflow definition cannot be encoded")
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, s.bind(`UPDATE custom_workflows
SET name = ?, category = ?, definition = ?, is_active = ?, updated_at = ? WHERE workflow_id = ?`),
		def.Name, def.Category, string(raw), def.IsActive(), now, def.ID); err != nil {
		return storageErr(err, "failed to update workflow")
	}

	// MySQL reports zero affected rows for an unchanged row, so existence is
	// checked by reading it back.
	stored, err := s.GetWorkflow(ctx, def.ID)
	if err != nil {
		return err
	}
	def.CreatedAt, def.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (s *SQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.bind("DELETE FROM custom_workflows WHERE workflow_id = ?"), id)
	if err != nil {
		return storageErr(err, "failed to delete workflow")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
