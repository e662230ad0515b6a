package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/enhanced"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/genericagent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/registry"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/testutils"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

// stubAgent completes with {"answer": "<name>: <task question>"} unless
// fail is set or run overrides it.
type stubAgent struct {
	name  string
	fail  bool
	run   func(ctx context.Context, task agent.Task) agent.Result
	calls atomic.Int32
	tasks []agent.Task
}

func (a *stubAgent) Name() string        { return a.name }
func (a *stubAgent) Description() string { return "stub " + a.name }

func (a *stubAgent) Execute(ctx context.Context, task agent.Task) agent.Result {
	a.calls.Add(1)
	a.tasks = append(a.tasks, task)
	if a.run != nil {
		return a.run(ctx, task)
	}
	if a.fail {
		return agent.Failed(a.name, xerrors.New(xerrors.CodeDomainFailure, a.name+" could not answer"), 0)
	}
	q, _ := task["question"].(string)
	return agent.Result{
		Agent:      a.name,
		Status:     agent.StatusCompleted,
		Output:     map[string]any{"answer": a.name + ": " + q},
		Confidence: agent.ConfidenceMedium,
	}
}

func fromInput(_ *workflow.Context, in workflow.Input) (agent.Task, error) {
	return agent.Task{"question": in.String("question", "")}, nil
}

func fromStep(step string) workflow.TaskBuilder {
	return func(c *workflow.Context, _ workflow.Input) (agent.Task, error) {
		answer, err := c.String(step, "answer")
		if err != nil {
			return nil, err
		}
		return agent.Task{"question": answer}, nil
	}
}

func setup(t *testing.T, agents ...*stubAgent) (*Orchestrator, *workflow.Registry) {
	t.Helper()
	reg := registry.NewAgents()
	for _, a := range agents {
		require.NoError(t, reg.Register(a))
	}
	wfs := workflow.NewRegistry()
	return New(reg, wfs), wfs
}

func fourSteps(name string, continueOnFailure bool) *workflow.Workflow {
	return &workflow.Workflow{
		Name:              name,
		ContinueOnFailure: continueOnFailure,
		Steps: []workflow.Step{
			{Name: "s1", Agent: "one", Build: fromInput},
			{Name: "s2", Agent: "bad", Build: fromInput},
			{Name: "s3", Agent: "three", Build: fromInput},
			{Name: "s4", Agent: "four", Build: fromStep("s1")},
		},
	}
}

func TestExecuteWorkflow_AbortsOnFirstFailure(t *testing.T) {
	one, bad, three, four := &stubAgent{name: "one"}, &stubAgent{name: "bad", fail: true}, &stubAgent{name: "three"}, &stubAgent{name: "four"}
	o, wfs := setup(t, one, bad, three, four)
	require.NoError(t, wfs.Register(fourSteps("abort", false)))

	exec, err := o.ExecuteWorkflow(context.Background(), "abort", workflow.Input{"question": "q"})
	require.NoError(t, err)

	assert.Equal(t, StatusAborted, exec.Status)
	require.Len(t, exec.Trace, 2)
	assert.Equal(t, agent.StatusCompleted, exec.Trace[0].Status)
	assert.Equal(t, agent.StatusFailed, exec.Trace[1].Status)
	assert.Equal(t, xerrors.CodeDomainFailure, exec.ErrorCode)
	assert.Contains(t, exec.Error, "bad could not answer")
	assert.Nil(t, exec.FinalOutput)
	assert.ErrorIs(t, exec.Err(), xerrors.New(xerrors.CodeDomainFailure, ""))

	assert.EqualValues(t, 0, three.calls.Load())
	assert.EqualValues(t, 0, four.calls.Load())
}

func TestExecuteWorkflow_ContinueOnFailure(t *testing.T) {
	one, bad, three, four := &stubAgent{name: "one"}, &stubAgent{name: "bad", fail: true}, &stubAgent{name: "three"}, &stubAgent{name: "four"}
	o, wfs := setup(t, one, bad, three, four)
	require.NoError(t, wfs.Register(fourSteps("continue", true)))

	exec, err := o.ExecuteWorkflow(context.Background(), "continue", workflow.Input{"question": "q"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, exec.Status)
	require.Len(t, exec.Trace, 4)
	assert.Equal(t, []string{"s2"}, exec.FailedSteps())
	assert.Empty(t, exec.Error)

	final, ok := exec.FinalOutput.(agent.Result)
	require.True(t, ok)
	assert.Equal(t, "four: one: q", final.Output["answer"])
	assert.EqualValues(t, 1, four.calls.Load())
}

func TestExecuteWorkflow_UnresolvedReferenceFailsFast(t *testing.T) {
	for _, continueOnFailure := range []bool{false, true} {
		one, two, three := &stubAgent{name: "one"}, &stubAgent{name: "two"}, &stubAgent{name: "three"}
		o, wfs := setup(t, one, two, three)
		require.NoError(t, wfs.Register(&workflow.Workflow{
			Name:              "typo",
			ContinueOnFailure: continueOnFailure,
			Steps: []workflow.Step{
				{Name: "research", Agent: "one", Build: fromInput},
				{Name: "validate", Agent: "two", Build: fromStep("reserch")},
				{Name: "report", Agent: "three", Build: fromInput},
			},
		}))

		exec, err := o.ExecuteWorkflow(context.Background(), "typo", workflow.Input{"question": "q"})
		require.NoError(t, err)

		assert.Equal(t, StatusAborted, exec.Status)
		require.Len(t, exec.Trace, 2)
		assert.Equal(t, xerrors.CodeUnresolvedReference, exec.Trace[1].ErrorCode)
		assert.Equal(t, xerrors.CodeUnresolvedReference, exec.ErrorCode)
		assert.Contains(t, exec.Error, "reserch.answer")
		assert.EqualValues(t, 0, two.calls.Load(), "agent must not be called")
		assert.EqualValues(t, 0, three.calls.Load())
	}
}

func TestExecuteWorkflow_UnknownAgent(t *testing.T) {
	o, wfs := setup(t, &stubAgent{name: "one"})
	require.NoError(t, wfs.Register(&workflow.Workflow{
		Name: "ghost",
		Steps: []workflow.Step{
			{Name: "a", Agent: "one", Build: fromInput},
			{Name: "b", Agent: "ghost", Build: fromInput},
		},
	}))

	exec, err := o.ExecuteWorkflow(context.Background(), "ghost", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, exec.Status)
	assert.Equal(t, xerrors.CodeAgentNotFound, exec.ErrorCode)
	assert.Contains(t, exec.Error, "agent not found: ghost")
	assert.Len(t, exec.Trace, 2)
}

func TestExecuteWorkflow_UnknownWorkflow(t *testing.T) {
	o, _ := setup(t)
	exec, err := o.ExecuteWorkflow(context.Background(), "nope", nil)
	assert.Nil(t, exec)
	assert.ErrorIs(t, err, xerrors.ErrWorkflowNotFound)
}

func TestExecuteWorkflow_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &stubAgent{name: "one", run: func(context.Context, agent.Task) agent.Result {
		cancel()
		return agent.Result{Agent: "one", Status: agent.StatusCompleted, Output: map[string]any{"answer": "x"}}
	}}
	second := &stubAgent{name: "two"}
	o, wfs := setup(t, first, second)
	require.NoError(t, wfs.Register(&workflow.Workflow{
		Name: "cancel",
		Steps: []workflow.Step{
			{Name: "a", Agent: "one", Build: fromInput},
			{Name: "b", Agent: "two", Build: fromInput},
		},
	}))

	exec, err := o.ExecuteWorkflow(ctx, "cancel", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, exec.Status)
	assert.Equal(t, xerrors.CodeCancelled, exec.ErrorCode)
	assert.Len(t, exec.Trace, 1)
	assert.EqualValues(t, 0, second.calls.Load())

	exec, err = o.ExecuteWorkflow(ctx, "cancel", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, exec.Status)
	assert.Empty(t, exec.Trace)
}

func TestExecuteWorkflow_OutputSelector(t *testing.T) {
	o, wfs := setup(t, &stubAgent{name: "one"}, &stubAgent{name: "two"})
	require.NoError(t, wfs.Register(&workflow.Workflow{
		Name:   "select",
		Output: workflow.OutputSelector{Step: "a", Field: "answer"},
		Steps: []workflow.Step{
			{Name: "a", Agent: "one", Build: fromInput},
			{Name: "b", Agent: "two", Build: fromStep("a")},
		},
	}))

	exec, err := o.ExecuteWorkflow(context.Background(), "select", workflow.Input{"question": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "one: hi", exec.FinalOutput)

	st, ok := exec.Step("b")
	require.True(t, ok)
	assert.Equal(t, "two: one: hi", st.Result.Output["answer"])
}

func TestExecuteWorkflow_InputIsNotShared(t *testing.T) {
	mutator := &stubAgent{name: "one", run: func(_ context.Context, task agent.Task) agent.Result {
		task["question"] = "mutated"
		return agent.Result{Agent: "one", Status: agent.StatusCompleted, Output: map[string]any{"answer": "a"}}
	}}
	o, wfs := setup(t, mutator)
	require.NoError(t, wfs.Register(&workflow.Workflow{
		Name:  "input",
		Steps: []workflow.Step{{Name: "a", Agent: "one", Build: func(_ *workflow.Context, in workflow.Input) (agent.Task, error) { return in.Task(), nil }}},
	}))

	in := workflow.Input{"question": "original"}
	_, err := o.ExecuteWorkflow(context.Background(), "input", in)
	require.NoError(t, err)
	assert.Equal(t, "original", in["question"])
}

func normalize(trace []StepTrace) []StepTrace {
	out := make([]StepTrace, len(trace))
	for i, st := range trace {
		st.ExecutionTime = 0
		st.Result.ExecutionTime = 0
		out[i] = st
	}
	return out
}

func TestExecuteWorkflow_RerunProducesIdenticalTrace(t *testing.T) {
	o, wfs := setup(t, &stubAgent{name: "one"}, &stubAgent{name: "bad", fail: true}, &stubAgent{name: "three"}, &stubAgent{name: "four"})
	require.NoError(t, wfs.Register(fourSteps("rerun", true)))

	first, err := o.ExecuteWorkflow(context.Background(), "rerun", workflow.Input{"question": "q"})
	require.NoError(t, err)
	second, err := o.ExecuteWorkflow(context.Background(), "rerun", workflow.Input{"question": "q"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, normalize(first.Trace), normalize(second.Trace))
}

func TestExecuteAgent(t *testing.T) {
	o, _ := setup(t, &stubAgent{name: "one"})

	res, err := o.ExecuteAgent(context.Background(), "one", agent.Task{"question": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "one: hi", res.Output["answer"])

	_, err = o.ExecuteAgent(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, xerrors.ErrAgentNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err = o.ExecuteAgent(ctx, "one", nil)
	require.NoError(t, err)
	assert.Equal(t, xerrors.CodeCancelled, res.ErrorCode)
}

func TestStatistics(t *testing.T) {
	o, wfs := setup(t, &stubAgent{name: "one"}, &stubAgent{name: "bad", fail: true}, &stubAgent{name: "three"}, &stubAgent{name: "four"})
	require.NoError(t, wfs.Register(fourSteps("ok", true)))
	require.NoError(t, wfs.Register(fourSteps("fails", false)))

	for _, name := range []string{"ok", "fails", "ok"} {
		_, err := o.ExecuteWorkflow(context.Background(), name, workflow.Input{"question": "q"})
		require.NoError(t, err)
	}

	stats, err := o.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Aborted)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, map[string]int{"ok": 2, "fails": 1}, stats.ByWorkflow)

	recent, err := o.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "ok", recent[0].Workflow)
}

func TestResearchValidate_EndToEnd(t *testing.T) {
	llm := testutils.NewEchoLLM()
	retriever := testutils.NewStubRetriever(map[string][]retrieval.Passage{
		"X": {{
			SourceID:     "Cap. 57",
			SubSectionID: "6",
			Text:         "An employer must give seven days' notice.",
			Score:        0.9,
			Metadata:     map[string]any{"doc_name": "Employment Ordinance", "section_number": "6"},
		}},
	})

	agents := registry.NewAgents()
	require.NoError(t, agents.RegisterFactory(enhanced.Name, func() (agent.Agent, error) {
		return enhanced.New(enhanced.Deps{LLM: llm, Retriever: retriever})
	}))
	require.NoError(t, agents.RegisterFactory(genericagent.NameValidation, func() (agent.Agent, error) {
		return genericagent.NewValidation(genericagent.Deps{LLM: llm})
	}))
	wfs := workflow.NewRegistry()
	require.NoError(t, workflow.RegisterBuiltins(wfs))

	o := New(agents, wfs)
	exec, err := o.ExecuteWorkflow(context.Background(), workflow.ResearchValidate, workflow.Input{"question": "X"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, exec.Status, exec.Error)
	require.Len(t, exec.Trace, 2)

	research, ok := exec.Step("research")
	require.True(t, ok)
	assert.Equal(t, agent.ConfidenceLow, research.Result.Confidence)
	answer, ok := research.Result.Field("answer")
	require.True(t, ok)
	assert.NotEmpty(t, answer)
	require.Len(t, research.Result.Sources, 1)
	assert.Equal(t, "X", research.Result.Sources[0].Query)

	validate, ok := exec.Step("validate")
	require.True(t, ok)
	assert.Equal(t, agent.StatusCompleted, validate.Status)

	final, ok := exec.FinalOutput.(agent.Result)
	require.True(t, ok)
	assert.Equal(t, genericagent.NameValidation, final.Agent)
	assert.Equal(t, []string{"X"}, retriever.Queries())
}
