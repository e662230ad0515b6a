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

package agent

import (
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds an agent's memory log.
const DefaultMemoryCapacity = 100

// MemoryRecord is one entry of an agent's memory log.
type MemoryRecord struct {
	Time time.Time      `json:"time"`
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// Memory is a bounded FIFO log. When full, the oldest record is dropped.
// It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	records  []MemoryRecord
	capacity int
}

// NewMemory creates a Memory. capacity <= 0 means DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{capacity: capacity}
}

// Add appends a record, evicting the oldest one when over capacity.
func (m *Memory) Add(kind string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, MemoryRecord{Time: time.Now(), Kind: kind, Data: data})
	if over := len(m.records) - m.capacity; over > 0 {
		m.records = append(m.records[:0:0], m.records[over:]...)
	}
}

// Recent returns up to n records, most recent first. n <= 0 returns all.
func (m *Memory) Recent(n int) []MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	out := make([]MemoryRecord, 0, n)
	for i := len(m.records) - 1; i >= len(m.records)-n; i-- {
		out = append(out, m.records[i])
	}
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *Memory) Capacity() int {
	return m.capacity
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}
