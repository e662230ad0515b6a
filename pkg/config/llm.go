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

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/httpclient"
)

const (
	LLMProviderOllama    = "ollama"
	LLMProviderAnthropic = "anthropic"
	LLMProviderGemini    = "gemini"

	DefaultOllamaURL      = "http://localhost:11434"
	DefaultOllamaModel    = "llama3.3:70b"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultEmbedModel     = "nomic-embed-text:latest"
	DefaultEmbedDimension = 768
)

// LLMConfig selects the language model backing every agent.
type LLMConfig struct {
	Provider    string                `yaml:"provider"`
	Model       string                `yaml:"model"`
	BaseURL     string                `yaml:"base_url"`
	APIKey      string                `yaml:"api_key"`
	Temperature float64               `yaml:"temperature"`
	MaxTokens   int                   `yaml:"max_tokens"`
	Timeout     time.Duration         `yaml:"timeout"`
	TLS         *httpclient.TLSConfig `yaml:"tls"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = LLMProviderOllama
	}
	if c.Model == "" {
		switch c.Provider {
		case LLMProviderAnthropic:
			c.Model = DefaultAnthropicModel
		case LLMProviderGemini:
			c.Model = DefaultGeminiModel
		default:
			c.Model = DefaultOllamaModel
		}
	}
	if c.BaseURL == "" && c.Provider == LLMProviderOllama {
		c.BaseURL = DefaultOllamaURL
	}
	if c.APIKey == "" {
		c.APIKey = ProviderAPIKey(c.Provider)
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 300 * time.Second
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOllama:
		if c.BaseURL == "" {
			return fmt.Errorf("base_url is required for ollama")
		}
	case LLMProviderAnthropic, LLMProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for %s", c.Provider)
		}
	default:
		return fmt.Errorf("invalid provider %q (valid: ollama, anthropic, gemini)", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

// EmbedderConfig configures the Ollama embedding model.
type EmbedderConfig struct {
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	// CacheTTL enables the Redis embedding cache when Redis is configured.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = DefaultEmbedModel
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultOllamaURL
	}
	if c.Dimension == 0 {
		c.Dimension = DefaultEmbedDimension
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 24 * time.Hour
	}
}

func (c *EmbedderConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	return nil
}

// ProviderAPIKey returns the conventional environment API key for provider.
func ProviderAPIKey(provider string) string {
	switch provider {
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case LLMProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}
