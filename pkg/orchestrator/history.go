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

package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

const (
	DefaultHistorySize = 100
	DefaultHistoryKey  = "vault:executions"
)

// Record is the history entry of one workflow run.
type Record struct {
	ID          string        `json:"id"`
	Workflow    string        `json:"workflow"`
	Status      Status        `json:"status"`
	StepsRun    int           `json:"steps_run"`
	FailedSteps []string      `json:"failed_steps,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorCode   xerrors.Code  `json:"error_code,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// History stores a bounded list of recent executions.
type History interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first. A limit of zero or
	// less returns everything retained.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Statistics summarises a set of records.
type Statistics struct {
	Total        int            `json:"total_executions"`
	Completed    int            `json:"completed"`
	Aborted      int            `json:"aborted"`
	SuccessRate  float64        `json:"success_rate"`
	MeanDuration time.Duration  `json:"mean_duration"`
	ByWorkflow   map[string]int `json:"by_workflow"`
}

func ComputeStatistics(records []Record) Statistics {
	s := Statistics{Total: len(records), ByWorkflow: make(map[string]int)}
	if len(records) == 0 {
		return s
	}

	var total time.Duration
	for _, r := range records {
		switch r.Status {
		case StatusCompleted:
			s.Completed++
		case StatusAborted:
			s.Aborted++
		}
		s.ByWorkflow[r.Workflow]++
		total += r.Duration
	}
	s.SuccessRate = float64(s.Completed) / float64(s.Total)
	s.MeanDuration = total / time.Duration(len(records))
	return s
}

// MemoryHistory keeps the last size records in a ring.
type MemoryHistory struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
}

var _ History = (*MemoryHistory)(nil)

func NewMemoryHistory(size int) *MemoryHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &MemoryHistory{records: make([]Record, size)}
}

func (h *MemoryHistory) Append(_ context.Context, r Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.next] = r
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.records)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.records)) % len(h.records)
		out = append(out, h.records[idx])
	}
	return out, nil
}

// RedisHistory keeps the last size records in a Redis list, newest at the
// head, so several vault processes share one history.
type RedisHistory struct {
	client redis.UniversalClient
	key    string
	size   int
}

var _ History = (*RedisHistory)(nil)

func NewRedisHistory(client redis.UniversalClient, key string, size int) *RedisHistory {
	if key == "" {
		key = DefaultHistoryKey
	}
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &RedisHistory{client: client, key: key, size: size}
}

func (h *RedisHistory) Append(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "failed to encode execution record")
	}

	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, h.key, data)
		pipe.LTrim(ctx, h.key, 0, int64(h.size-1))
		return nil
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "failed to append execution record")
	}
	return nil
}

func (h *RedisHistory) Recent(ctx context.Context, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := h.client.LRange(ctx, h.key, 0, stop).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "failed to read execution history")
	}

	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "failed to decode execution record")
		}
		out = append(out, r)
	}
	return out, nil
}
