package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config/provider"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, "legal-ai-vault", cfg.Name)
	assert.Equal(t, LLMProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, DefaultOllamaModel, cfg.LLM.Model)
	assert.Equal(t, DefaultOllamaURL, cfg.LLM.BaseURL)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, DefaultEmbedModel, cfg.Embedder.Model)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "vault.db", cfg.Database.Database)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.3, *cfg.Retrieval.MinScore)
	assert.True(t, *cfg.Retrieval.Enrich)
	assert.Equal(t, 100, cfg.Agents.MemoryCapacity)
	assert.Equal(t, 0.6, *cfg.Agents.Enhanced.MinScore)
	assert.Equal(t, "memory", cfg.Orchestrator.HistoryStore)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("VAULT_MODEL", "llama3.1:8b")
	t.Setenv("VAULT_TOP_K", "8")

	cfg, err := Parse([]byte(`
llm:
  model: ${VAULT_MODEL}
  base_url: ${VAULT_OLLAMA_URL:-http://ollama:11434}
  timeout: 45s
retrieval:
  top_k: $VAULT_TOP_K
  enrich: false
agents:
  disabled: cs_document,hr_policy
`))
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", cfg.LLM.Model)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.False(t, *cfg.Retrieval.Enrich)
	assert.True(t, cfg.Agents.IsDisabled("hr_policy"))
	assert.False(t, cfg.Agents.IsDisabled("legal"))
}

func TestParse_ExplicitZeroMinScore(t *testing.T) {
	cfg, err := Parse([]byte(`
retrieval:
  min_score: 0
agents:
  enhanced:
    min_score: 0
`))
	require.NoError(t, err)

	require.NotNil(t, cfg.Retrieval.MinScore)
	assert.Equal(t, 0.0, *cfg.Retrieval.MinScore)
	require.NotNil(t, cfg.Agents.Enhanced.MinScore)
	assert.Equal(t, 0.0, *cfg.Agents.Enhanced.MinScore)
}

func TestParse_Workflows(t *testing.T) {
	cfg, err := Parse([]byte(`
workflows:
  - workflow_id: tenancy_review
    description: Review a tenancy clause
    steps:
      - name: research
        agent_name: legal
        task_config:
          input_mappings:
            question: {source: input, field: clause}
          static_fields:
            top_k: 3
      - name: review
        agent_name: analysis
        task_config:
          input_mappings:
            data: {source: step, step_name: research}
            mode: {source: static, value: strict}
`))
	require.NoError(t, err)
	require.Len(t, cfg.Workflows, 1)

	w := cfg.Workflows[0]
	assert.Equal(t, "tenancy_review", w.Name)
	assert.Equal(t, "general", w.Category)
	assert.True(t, w.IsActive())
	require.Len(t, w.Steps, 2)
	assert.Equal(t, "legal", w.Steps[0].Agent)
	assert.Equal(t, InputMapping{Source: MappingSourceInput, Field: "clause"}, w.Steps[0].Task.InputMappings["question"])
	assert.EqualValues(t, 3, w.Steps[0].Task.StaticFields["top_k"])

	data := w.Steps[1].Task.InputMappings["data"]
	assert.Equal(t, "research", data.StepName)
	assert.Equal(t, DefaultStepField, data.Field)
	assert.Equal(t, "strict", w.Steps[1].Task.InputMappings["mode"].Value)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"name": "vault-json", "server": {"addr": ":9090"}}`))
	require.NoError(t, err)

	assert.Equal(t, "vault-json", cfg.Name)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad_provider", "llm:\n  provider: openai\n", "invalid provider"},
		{"anthropic_without_key", "llm:\n  provider: anthropic\n  api_key: \"\"\n", "api_key is required"},
		{"bad_driver", "database:\n  driver: oracle\n", "invalid driver"},
		{"postgres_without_host", "database:\n  driver: postgres\n  database: vault\n", "host is required"},
		{"bad_min_score", "retrieval:\n  min_score: 1.5\n", "min_score"},
		{"bad_enhanced_min_score", "agents:\n  enhanced:\n    min_score: -0.1\n", "enhanced.min_score"},
		{"bad_history", "orchestrator:\n  history_store: disk\n", "history_store"},
		{"workflow_step_typo", "workflows:\n  - workflow_id: w\n    steps:\n      - name: a\n        agent_name: analysis\n      - name: b\n        agent_name: synthesis\n        task_config:\n          input_mappings:\n            data: {source: step, step_name: aa}\n", `step_name "aa"`},
		{"duplicate_workflow", "workflows:\n  - workflow_id: w\n    steps: [{name: a, agent_name: analysis}]\n  - workflow_id: w\n    steps: [{name: a, agent_name: analysis}]\n", "duplicate workflow_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", "")
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, "name: from-file\n")

	cfg, loader, err := LoadConfig(context.Background(), provider.ProviderConfig{Type: provider.TypeFile, Path: path})
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "from-file", cfg.Name)
}

func TestLoadConfig_NoPathReturnsDefaults(t *testing.T) {
	cfg, loader, err := LoadConfig(context.Background(), provider.ProviderConfig{})
	require.NoError(t, err)

	assert.Nil(t, loader)
	assert.Equal(t, "legal-ai-vault", cfg.Name)
}

func TestLoader_WatchReloads(t *testing.T) {
	path := writeConfig(t, "name: first\n")

	p, err := provider.NewFileProvider(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 1)
	loader := NewLoader(p, WithOnChange(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))
	defer loader.Close()

	_, err = loader.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loader.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("name: second\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "second", cfg.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Database: "vault", Username: "u", Password: "p w"}
	pg.SetDefaults()
	assert.Equal(t, "postgres://u:p%20w@db:5432/vault?sslmode=disable", pg.DSN())
	assert.Equal(t, "$2", pg.Placeholder(2))

	my := DatabaseConfig{Driver: "mysql", Host: "db", Database: "vault", Username: "u", Password: "p"}
	my.SetDefaults()
	assert.Equal(t, "u:p@tcp(db:3306)/vault?parseTime=true", my.DSN())
	assert.Equal(t, "?", my.Placeholder(2))

	lite := DatabaseConfig{}
	lite.SetDefaults()
	assert.Equal(t, "vault.db", lite.DSN())
	assert.Equal(t, "sqlite3", lite.DriverName())
}
