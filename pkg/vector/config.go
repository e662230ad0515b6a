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

package vector

import (
	"context"
	"fmt"
)

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderChromem is embedded and needs no external service.
	ProviderChromem ProviderType = "chromem"

	ProviderQdrant   ProviderType = "qdrant"
	ProviderPinecone ProviderType = "pinecone"
	ProviderPgvector ProviderType = "pgvector"
)

// ProviderConfig selects and configures the vector provider.
type ProviderConfig struct {
	Type ProviderType `yaml:"type"`

	Chromem  *ChromemConfig  `yaml:"chromem,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Pgvector *PgvectorConfig `yaml:"pgvector,omitempty"`
}

func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderChromem
	}
	switch c.Type {
	case ProviderChromem:
		if c.Chromem == nil {
			c.Chromem = &ChromemConfig{}
		}
	case ProviderQdrant:
		if c.Qdrant == nil {
			c.Qdrant = &QdrantConfig{}
		}
		c.Qdrant.SetDefaults()
	}
}

func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderChromem:
		return nil
	case ProviderQdrant:
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant host is required")
		}
		return nil
	case ProviderPinecone:
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone api_key is required")
		}
		return nil
	case ProviderPgvector:
		if c.Pgvector == nil || c.Pgvector.DSN == "" {
			return fmt.Errorf("pgvector dsn is required")
		}
		return nil
	case "":
		return fmt.Errorf("provider type is required")
	default:
		return fmt.Errorf("unknown provider type: %q", c.Type)
	}
}

// NewProvider creates the configured provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderChromem, "":
		chromemCfg := ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return NewChromemProvider(chromemCfg)

	case ProviderQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant configuration is required")
		}
		return NewQdrantProvider(*cfg.Qdrant)

	case ProviderPinecone:
		if cfg.Pinecone == nil {
			return nil, fmt.Errorf("pinecone configuration is required")
		}
		return NewPineconeProvider(*cfg.Pinecone)

	case ProviderPgvector:
		if cfg.Pgvector == nil {
			return nil, fmt.Errorf("pgvector configuration is required")
		}
		return NewPgvectorProvider(ctx, *cfg.Pgvector)

	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
}
