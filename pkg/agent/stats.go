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

// Statistics summarises the calls made to one agent instance.
type Statistics struct {
	Executions             int                `json:"executions"`
	Completed              int                `json:"completed"`
	Failed                 int                `json:"failed"`
	ConfidenceDistribution map[Confidence]int `json:"confidence_distribution"`
	TotalSources           int                `json:"total_sources"`
	AverageDuration        time.Duration      `json:"average_duration"`
}

type statsRecorder struct {
	mu    sync.Mutex
	stats Statistics
	total time.Duration
}

func (s *statsRecorder) record(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Executions++
	s.total += r.ExecutionTime
	s.stats.AverageDuration = s.total / time.Duration(s.stats.Executions)

	if !r.Completed() {
		s.stats.Failed++
		return
	}
	s.stats.Completed++
	s.stats.TotalSources += len(r.Sources)
	if r.Confidence != "" {
		if s.stats.ConfidenceDistribution == nil {
			s.stats.ConfidenceDistribution = make(map[Confidence]int)
		}
		s.stats.ConfidenceDistribution[r.Confidence]++
	}
}

func (s *statsRecorder) snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.ConfidenceDistribution = make(map[Confidence]int, len(s.stats.ConfidenceDistribution))
	for k, v := range s.stats.ConfidenceDistribution {
		out.ConfidenceDistribution[k] = v
	}
	return out
}
