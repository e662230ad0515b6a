package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/domainagent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/enhanced"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/genericagent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/orchestrator"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/testutils"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

const question = "What notice must an employer give?"

func stubRetriever() *testutils.StubRetriever {
	return testutils.NewStubRetriever(map[string][]retrieval.Passage{
		question: {{
			SourceID:     "Cap. 57",
			SubSectionID: "6",
			Text:         "An employer must give seven days' notice.",
			Score:        0.9,
			Metadata:     map[string]any{"doc_name": "Employment Ordinance", "section_number": "6"},
		}},
	})
}

func newRuntime(t *testing.T, cfg *config.Config, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithLLM(testutils.NewEchoLLM()), WithRetriever(stubRetriever())}, opts...)
	rt, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, rt.Close()) })
	return rt
}

func TestNew_RegistersEverything(t *testing.T) {
	rt := newRuntime(t, testutils.TestConfig())

	assert.ElementsMatch(t, []string{
		domainagent.NameLegal, domainagent.NameHRPolicy, domainagent.NameCSDocument,
		genericagent.NameAnalysis, genericagent.NameSynthesis, genericagent.NameValidation,
		enhanced.Name,
	}, rt.Agents().Names())
	assert.Equal(t, len(workflow.Builtins()), rt.Workflows().Count())
	assert.IsType(t, &documents.SQLStore{}, rt.Store())

	assert.False(t, rt.Agents().Loaded(domainagent.NameLegal))
	a, err := rt.Agents().Get(domainagent.NameLegal)
	require.NoError(t, err)
	assert.Equal(t, domainagent.NameLegal, a.Name())
	assert.True(t, rt.Agents().Loaded(domainagent.NameLegal))
}

func TestNew_SimpleQAEndToEnd(t *testing.T) {
	rt := newRuntime(t, testutils.TestConfig())
	ctx := context.Background()

	exec, err := rt.Orchestrator().ExecuteWorkflow(ctx, workflow.SimpleQA, workflow.Input{"question": question})
	require.NoError(t, err)
	require.True(t, exec.Completed(), exec.Error)
	assert.Len(t, exec.Trace, 2)

	records, err := rt.Orchestrator().History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, workflow.SimpleQA, records[0].Workflow)
}

func TestNew_RetrievalConfigDrivesAgents(t *testing.T) {
	cfg := testutils.TestConfig()
	floor := 0.95
	cfg.Retrieval.TopK = 1
	cfg.Retrieval.MinScore = &floor
	ret := testutils.NewStubRetriever(map[string][]retrieval.Passage{
		question: {
			{SourceID: "Cap. 57", SubSectionID: "6", Text: "seven days", Score: 0.5},
			{SourceID: "Cap. 57", SubSectionID: "7", Text: "wages in lieu", Score: 0.4},
		},
	})
	rt := newRuntime(t, cfg, WithRetriever(ret))

	res, err := rt.Orchestrator().ExecuteAgent(context.Background(), domainagent.NameLegal, map[string]any{"question": question})
	require.NoError(t, err)
	assert.False(t, res.Completed())
	assert.Equal(t, xerrors.CodeNoRelevantPassages, res.ErrorCode)

	lower := 0.3
	cfg = testutils.TestConfig()
	cfg.Retrieval.TopK = 1
	cfg.Retrieval.MinScore = &lower
	rt = newRuntime(t, cfg, WithRetriever(ret))

	res, err = rt.Orchestrator().ExecuteAgent(context.Background(), domainagent.NameLegal, map[string]any{"question": question})
	require.NoError(t, err)
	require.True(t, res.Completed(), res.Error)
	assert.Len(t, res.Sources, 1)
}

func legalSummary() config.WorkflowConfig {
	return config.WorkflowConfig{
		ID: "legal_summary",
		Steps: []config.WorkflowStepConfig{
			{
				Name:  "research",
				Agent: domainagent.NameLegal,
				Task: config.TaskConfig{InputMappings: map[string]config.InputMapping{
					"question": {Source: config.MappingSourceInput, Field: "question"},
				}},
			},
			{
				Name:  "summary",
				Agent: genericagent.NameAnalysis,
				Task: config.TaskConfig{InputMappings: map[string]config.InputMapping{
					"data": {Source: config.MappingSourceStep, StepName: "research"},
				}},
			},
		},
	}
}

func TestNew_ConfiguredWorkflow(t *testing.T) {
	cfg := testutils.TestConfig()
	cfg.Workflows = []config.WorkflowConfig{legalSummary()}
	rt := newRuntime(t, cfg)

	exec, err := rt.Orchestrator().ExecuteWorkflow(context.Background(), "legal_summary", workflow.Input{"question": question})
	require.NoError(t, err)
	require.True(t, exec.Completed(), exec.Error)
	assert.Len(t, exec.Trace, 2)
	assert.NotNil(t, exec.FinalOutput)

	_, err = rt.Builder().Update(context.Background(), "legal_summary", func(*config.WorkflowConfig) error { return nil })
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestNew_ConfiguredWorkflowUnknownAgent(t *testing.T) {
	cfg := testutils.TestConfig()
	def := legalSummary()
	def.Steps[1].Agent = "summariser"
	cfg.Workflows = []config.WorkflowConfig{def}

	_, err := New(context.Background(), cfg, WithLLM(testutils.NewEchoLLM()), WithRetriever(stubRetriever()))
	assert.ErrorContains(t, err, `unknown agent "summariser"`)
}

func TestNew_StoredWorkflowsSurviveRestart(t *testing.T) {
	cfg := testutils.TestConfig()
	cfg.Database.Database = filepath.Join(t.TempDir(), "vault.db")
	ctx := context.Background()

	rt := newRuntime(t, cfg)
	_, err := rt.Builder().Create(ctx, legalSummary())
	require.NoError(t, err)
	assert.Equal(t, len(workflow.Builtins())+1, rt.Workflows().Count())

	restarted := newRuntime(t, cfg)
	_, err = restarted.Workflows().Lookup("legal_summary")
	require.NoError(t, err)
	exec, err := restarted.Orchestrator().ExecuteWorkflow(ctx, "legal_summary", workflow.Input{"question": question})
	require.NoError(t, err)
	assert.True(t, exec.Completed(), exec.Error)
}

func TestNew_DisabledAgent(t *testing.T) {
	cfg := testutils.TestConfig()
	cfg.Agents.Disabled = []string{genericagent.NameValidation}
	rt := newRuntime(t, cfg)

	assert.False(t, rt.Agents().Has(genericagent.NameValidation))

	exec, err := rt.Orchestrator().ExecuteWorkflow(context.Background(), workflow.SimpleQA, workflow.Input{"question": question})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusAborted, exec.Status)
	assert.Equal(t, xerrors.CodeAgentNotFound, exec.ErrorCode)
}

func TestNew_MemoryStore(t *testing.T) {
	cfg := testutils.TestConfig()
	cfg.Database.Driver = "memory"
	rt := newRuntime(t, cfg)

	assert.IsType(t, &documents.MemoryStore{}, rt.Store())
	assert.NotContains(t, rt.HealthChecks(), "database")
}

func TestNew_RedisHistory(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testutils.TestConfig()
	cfg.Redis.Addr = mr.Addr()
	cfg.Orchestrator.HistoryStore = "redis"

	rt := newRuntime(t, cfg)
	ctx := context.Background()
	_, err := rt.Orchestrator().ExecuteWorkflow(ctx, workflow.SimpleQA, workflow.Input{"question": question})
	require.NoError(t, err)

	// A second runtime on the same key sees the first one's executions.
	other := newRuntime(t, cfg)
	records, err := other.Orchestrator().History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	checks := rt.HealthChecks()
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["redis"](ctx))
}

func TestNew_Errors(t *testing.T) {
	cfg := testutils.TestConfig()
	cfg.Orchestrator.HistoryStore = "redis"
	_, err := New(context.Background(), cfg, WithLLM(testutils.NewEchoLLM()))
	assert.ErrorContains(t, err, "requires redis.addr")

	cfg = testutils.TestConfig()
	cfg.Retrieval.TopK = 0
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "top_k")

	_, err = New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewLLM(t *testing.T) {
	ctx := context.Background()

	llm, err := NewLLM(ctx, config.LLMConfig{Provider: config.LLMProviderOllama, Model: "llama3", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.NoError(t, llm.Close())

	_, err = NewLLM(ctx, config.LLMConfig{Provider: config.LLMProviderAnthropic, Model: "claude"})
	assert.Error(t, err)

	_, err = NewLLM(ctx, config.LLMConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "unsupported")
}
