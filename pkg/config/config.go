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

// Package config holds the vault's configuration types and the loader that
// reads them from a file or a remote key/value store.
//
// Every section follows the same pipeline: decode, SetDefaults, Validate.
// A zero Config is usable after SetDefaults and targets a local Ollama
// instance with an embedded chromem vector index and a SQLite document store.
package config

import (
	"errors"
	"fmt"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/observability"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/vector"
)

// Config is the root configuration.
type Config struct {
	Name string `yaml:"name"`

	Logger        LoggerConfig          `yaml:"logger"`
	LLM           LLMConfig             `yaml:"llm"`
	Embedder      EmbedderConfig        `yaml:"embedder"`
	Vector        vector.ProviderConfig `yaml:"vector"`
	Database      DatabaseConfig        `yaml:"database"`
	Redis         RedisConfig           `yaml:"redis"`
	Retrieval     RetrievalConfig       `yaml:"retrieval"`
	Agents        AgentsConfig          `yaml:"agents"`
	Orchestrator  OrchestratorConfig    `yaml:"orchestrator"`
	Observability observability.Config  `yaml:"observability"`
	Server        ServerConfig          `yaml:"server"`

	// Workflows are user-defined workflows registered next to the
	// built-in ones.
	Workflows []WorkflowConfig `yaml:"workflows"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "legal-ai-vault"
	}
	c.Logger.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Vector.SetDefaults()
	c.Database.SetDefaults()
	c.Redis.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Agents.SetDefaults()
	c.Orchestrator.SetDefaults()
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = c.Name
	}
	c.Observability.SetDefaults()
	c.Server.SetDefaults()
	for i := range c.Workflows {
		c.Workflows[i].SetDefaults()
	}
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	check("logger", c.Logger.Validate())
	check("llm", c.LLM.Validate())
	check("embedder", c.Embedder.Validate())
	check("vector", c.Vector.Validate())
	check("database", c.Database.Validate())
	check("redis", c.Redis.Validate())
	check("retrieval", c.Retrieval.Validate())
	check("agents", c.Agents.Validate())
	check("orchestrator", c.Orchestrator.Validate())
	check("observability", c.Observability.Validate())
	check("server", c.Server.Validate())

	ids := make(map[string]bool, len(c.Workflows))
	for i := range c.Workflows {
		w := &c.Workflows[i]
		if ids[w.ID] {
			check("workflows", fmt.Errorf("duplicate workflow_id %q", w.ID))
			continue
		}
		ids[w.ID] = true
		check("workflows", w.Validate())
	}

	return errors.Join(errs...)
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// LoggerConfig mirrors the CLI logging flags.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	return nil
}

// RedisConfig configures the optional Redis used for the embedding cache
// and the execution history.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (c *RedisConfig) SetDefaults() {}

func (c *RedisConfig) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("db must be non-negative")
	}
	return nil
}

// Enabled reports whether a Redis address is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}
