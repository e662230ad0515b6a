package enhanced

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/testutils"
)

func fastPolicy() retry.Policy {
	return retry.Policy{Timeout: time.Second, MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func p(source, section string, score float64) retrieval.Passage {
	return retrieval.Passage{SourceID: source, SubSectionID: section, Text: source + "/" + section, Score: score}
}

func overlapping() map[string][]retrieval.Passage {
	return map[string][]retrieval.Passage{
		"notice": {p("Cap. 57", "6", 0.9), p("Cap. 57", "7", 0.8)},
		"wages":  {p("Cap. 57", "6", 0.95), p("Cap. 57", "23", 0.75)},
		"leave":  {p("Cap. 57", "7", 0.85), p("Cap. 57", "41", 0.7)},
	}
}

func key(source, section string) retrieval.PassageKey {
	return retrieval.PassageKey{SourceID: source, SubSectionID: section}
}

func TestMerge_FirstOccurrenceWins(t *testing.T) {
	queries := []string{"notice", "wages"}
	results := [][]retrieval.Passage{
		{p("A", "1", 0.9), p("B", "2", 0.8), p("Cap. 57", "6", 0.7)},
		{p("A", "1", 0.95), p("C", "3", 0.7), p("B", "", 0.6), p("Cap. 57#6", "", 0.5)},
	}

	hits := Merge(queries, results)

	require.Len(t, hits, 6)
	assert.Equal(t, key("A", "1"), hits[0].Passage.Key())
	assert.Equal(t, 0.9, hits[0].Passage.Score)
	assert.Equal(t, "notice", hits[0].Query)
	assert.Equal(t, key("B", "2"), hits[1].Passage.Key())
	assert.Equal(t, key("Cap. 57", "6"), hits[2].Passage.Key())
	assert.Equal(t, key("C", "3"), hits[3].Passage.Key())
	assert.Equal(t, "wages", hits[3].Query)
	assert.Equal(t, key("B", ""), hits[4].Passage.Key())
	assert.Equal(t, key("Cap. 57#6", ""), hits[5].Passage.Key())
}

func TestNew_ExplicitZeroFloor(t *testing.T) {
	ret := testutils.NewStubRetriever(map[string][]retrieval.Passage{
		"notice": {p("Cap. 57", "6", 0.2)},
	})
	zero := 0.0
	a, err := New(Deps{LLM: testutils.NewEchoLLM(), Retriever: ret, Policy: fastPolicy(), MinScore: &zero})
	require.NoError(t, err)

	res := a.Execute(context.Background(), agent.Task{"queries": []any{"notice"}})

	require.True(t, res.Completed(), res.Error)
	assert.Len(t, res.Sources, 1)
}

func TestExecute_DeterministicDedup(t *testing.T) {
	ret := testutils.NewStubRetriever(overlapping())
	a, err := New(Deps{LLM: testutils.NewEchoLLM(), Retriever: ret, Policy: fastPolicy(), MaxConcurrency: 3})
	require.NoError(t, err)

	task := agent.Task{"queries": []any{"notice", "wages", "leave"}, "min_score": 0.5}
	var first []agent.Source
	for i := 0; i < 20; i++ {
		res := a.Execute(context.Background(), task)
		require.True(t, res.Completed(), res.Error)
		if first == nil {
			first = res.Sources
			continue
		}
		assert.Equal(t, first, res.Sources)
	}

	require.Len(t, first, 4)
	got := make([][2]any, len(first))
	for i, s := range first {
		got[i] = [2]any{s.Citation, s.Query}
	}
	assert.Equal(t, [][2]any{
		{"Cap. 57, Section 6", "notice"},
		{"Cap. 57, Section 7", "notice"},
		{"Cap. 57, Section 23", "wages"},
		{"Cap. 57, Section 41", "leave"},
	}, got)
	assert.Equal(t, 0.9, first[0].Score)
}

func TestExecute_OutputAndConfidence(t *testing.T) {
	llm := testutils.NewEchoLLM()
	ret := testutils.NewStubRetriever(overlapping())
	a, err := New(Deps{LLM: llm, Retriever: ret, Policy: fastPolicy()})
	require.NoError(t, err)

	res := a.Execute(context.Background(), agent.Task{"queries": []any{"notice", "wages", "leave"}, "focus": "termination"})

	require.True(t, res.Completed(), res.Error)
	assert.Equal(t, Name, res.Agent)
	assert.Equal(t, agent.ConfidenceHigh, res.Confidence)
	assert.Equal(t, 4, res.Output["retrieved_count"])
	assert.Equal(t, 2, res.Output["duplicates_removed"])
	assert.Equal(t, res.Output["synthesized_output"], res.Output["answer"])
	assert.Equal(t, 1, llm.Calls())

	prompt := llm.Requests()[0].Prompt
	assert.Contains(t, prompt, "Focus: termination")
	assert.Contains(t, prompt, "Cap. 57/23")
}

func TestExecute_EmptyMergeSkipsModel(t *testing.T) {
	llm := testutils.NewEchoLLM()
	ret := testutils.NewStubRetriever(map[string][]retrieval.Passage{"weak": {p("X", "1", 0.4)}})
	a, err := New(Deps{LLM: llm, Retriever: ret, Policy: fastPolicy()})
	require.NoError(t, err)

	res := a.Execute(context.Background(), agent.Task{"queries": []any{"weak", "unknown"}})

	assert.Equal(t, agent.StatusFailed, res.Status)
	assert.Equal(t, "no relevant passages found", res.Error)
	assert.True(t, errors.Is(res.Err(), xerrors.ErrNoRelevantPassages))
	assert.Zero(t, llm.Calls())
	assert.ElementsMatch(t, []string{"weak", "unknown"}, ret.Queries())
}

func TestExecute_QuestionFallback(t *testing.T) {
	ret := testutils.NewStubRetriever(map[string][]retrieval.Passage{"What notice applies?": {p("Cap. 57", "6", 0.9)}})
	a, err := New(Deps{LLM: testutils.NewEchoLLM(), Retriever: ret, Policy: fastPolicy()})
	require.NoError(t, err)

	res := a.Execute(context.Background(), agent.Task{"question": "What notice applies?"})

	require.True(t, res.Completed(), res.Error)
	assert.Equal(t, agent.ConfidenceLow, res.Confidence)
	assert.Equal(t, "What notice applies?", res.Sources[0].Query)
}

func TestExecute_RetrievalUnavailable(t *testing.T) {
	llm := testutils.NewEchoLLM()
	ret := testutils.NewStubRetriever(overlapping())
	ret.Err = errors.New("connection refused")
	a, err := New(Deps{LLM: llm, Retriever: ret, Policy: fastPolicy()})
	require.NoError(t, err)

	res := a.Execute(context.Background(), agent.Task{"queries": []any{"notice", "wages"}})

	assert.Equal(t, xerrors.CodeRetrievalUnavailable, res.ErrorCode)
	assert.Zero(t, llm.Calls())
}

func TestExecute_ManualSourcesAndMissingInput(t *testing.T) {
	llm := testutils.NewEchoLLM()
	ret := testutils.NewStubRetriever(nil)
	a, err := New(Deps{LLM: llm, Retriever: ret, Policy: fastPolicy()})
	require.NoError(t, err)

	res := a.Execute(context.Background(), agent.Task{"sources": []any{map[string]any{"title": "Memo", "content": "Notice is seven days."}}})
	require.True(t, res.Completed(), res.Error)
	assert.Contains(t, res.Output["answer"], "## Memo")
	assert.Empty(t, ret.Queries())

	res = a.Execute(context.Background(), agent.Task{})
	assert.Equal(t, xerrors.CodeMissingField, res.ErrorCode)
}

func TestNew_RequiresRetriever(t *testing.T) {
	_, err := New(Deps{LLM: testutils.NewEchoLLM()})
	assert.Error(t, err)
}

func TestCapabilities_IncludeSynthesisTools(t *testing.T) {
	a, err := New(Deps{LLM: testutils.NewEchoLLM(), Retriever: testutils.NewStubRetriever(nil)})
	require.NoError(t, err)

	caps := a.Capabilities()
	assert.Equal(t, Name, caps.Name)
	assert.Len(t, caps.Tools, 3)
	props, _ := caps.TaskSchema["properties"].(map[string]any)
	assert.Contains(t, props, "queries")
}
