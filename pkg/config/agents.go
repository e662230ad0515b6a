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

package config

import (
	"fmt"
	"time"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
)

// RetrievalConfig configures the retrieval service.
type RetrievalConfig struct {
	// Collection is the vector index collection holding section passages.
	Collection string `yaml:"collection"`
	// TopK and MinScore are the search defaults of the domain agents. A
	// task may override both.
	TopK     int      `yaml:"top_k"`
	MinScore *float64 `yaml:"min_score"`
	// Enrich looks up document titles and section headings in the
	// document store for every returned passage.
	Enrich *bool `yaml:"enrich"`
	// MaxContextChars bounds the context block agents hand to the model.
	MaxContextChars int          `yaml:"max_context_chars"`
	Retry           retry.Policy `yaml:"retry"`
}

func (c *RetrievalConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "hk_legal_sections"
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MinScore == nil {
		c.MinScore = float64Ptr(0.3)
	}
	if c.Enrich == nil {
		enrich := true
		c.Enrich = &enrich
	}
	if c.MaxContextChars == 0 {
		c.MaxContextChars = 4000
	}
	if c.Retry.Timeout == 0 {
		c.Retry.Timeout = 30 * time.Second
	}
	c.Retry.SetDefaults()
}

func (c *RetrievalConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 1) {
		return fmt.Errorf("min_score must be between 0 and 1")
	}
	return nil
}

// AgentsConfig configures the agent variants.
type AgentsConfig struct {
	// MemoryCapacity bounds each agent's conversation memory.
	MemoryCapacity int `yaml:"memory_capacity"`
	// Disabled lists agent names that are not registered.
	Disabled []string       `yaml:"disabled"`
	Enhanced EnhancedConfig `yaml:"enhanced"`
	// Retry wraps every language model call.
	Retry retry.Policy `yaml:"retry"`
}

// EnhancedConfig configures the fan-out retrieval agent.
type EnhancedConfig struct {
	TopKPerQuery   int      `yaml:"top_k_per_query"`
	MinScore       *float64 `yaml:"min_score"`
	MaxConcurrency int      `yaml:"max_concurrency"`
}

func (c *AgentsConfig) SetDefaults() {
	if c.MemoryCapacity == 0 {
		c.MemoryCapacity = 100
	}
	if c.Enhanced.TopKPerQuery == 0 {
		c.Enhanced.TopKPerQuery = 5
	}
	if c.Enhanced.MinScore == nil {
		c.Enhanced.MinScore = float64Ptr(0.6)
	}
	if c.Enhanced.MaxConcurrency == 0 {
		c.Enhanced.MaxConcurrency = 4
	}
	if c.Retry.Timeout == 0 {
		c.Retry.Timeout = 300 * time.Second
	}
	c.Retry.SetDefaults()
}

func (c *AgentsConfig) Validate() error {
	if c.MemoryCapacity < 0 {
		return fmt.Errorf("memory_capacity must be non-negative")
	}
	if c.Enhanced.TopKPerQuery < 0 {
		return fmt.Errorf("enhanced.top_k_per_query must be non-negative")
	}
	if m := c.Enhanced.MinScore; m != nil && (*m < 0 || *m > 1) {
		return fmt.Errorf("enhanced.min_score must be between 0 and 1")
	}
	return nil
}

// IsDisabled reports whether name is listed in Disabled.
func (c *AgentsConfig) IsDisabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

// OrchestratorConfig configures execution history.
type OrchestratorConfig struct {
	// HistoryStore is "memory" or "redis".
	HistoryStore string `yaml:"history_store"`
	HistorySize  int    `yaml:"history_size"`
	// HistoryKey is the Redis list key used by the redis store.
	HistoryKey string `yaml:"history_key"`
}

func (c *OrchestratorConfig) SetDefaults() {
	if c.HistoryStore == "" {
		c.HistoryStore = "memory"
	}
	if c.HistorySize == 0 {
		c.HistorySize = 100
	}
	if c.HistoryKey == "" {
		c.HistoryKey = "vault:executions"
	}
}

func (c *OrchestratorConfig) Validate() error {
	switch c.HistoryStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid history_store %q (valid: memory, redis)", c.HistoryStore)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive")
	}
	return nil
}

func float64Ptr(v float64) *float64 {
	return &v
}
