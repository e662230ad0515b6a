package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

func complianceDefinition() config.WorkflowConfig {
	return config.WorkflowConfig{
		ID:          "leave_compliance",
		Name:        "Leave compliance",
		Description: "Check a leave policy against the Employment Ordinance",
		Steps: []config.WorkflowStepConfig{
			{
				Name:  "research",
				Agent: "legal",
				Task: config.TaskConfig{
					InputMappings: map[string]config.InputMapping{
						"question": {Source: config.MappingSourceInput, Field: "question"},
						"top_k":    {Source: config.MappingSourceInput, Field: "depth", Default: 3},
					},
				},
			},
			{
				Name:  "review",
				Agent: "analysis",
				Task: config.TaskConfig{
					StaticFields: map[string]any{"analysis_type": "compliance"},
					InputMappings: map[string]config.InputMapping{
						"data":     {Source: config.MappingSourceStep, StepName: "research"},
						"sources":  {Source: config.MappingSourceStep, StepName: "research", Field: "sources"},
						"audience": {Source: config.MappingSourceStatic, Value: "hr"},
						"note":     {Source: config.MappingSourceInput, Field: "note"},
					},
				},
			},
		},
	}
}

func TestCompile_RoundTrip(t *testing.T) {
	def := complianceDefinition()
	w, err := Compile(def)
	require.NoError(t, err)

	assert.Equal(t, "leave_compliance", w.Name)
	assert.Equal(t, "Leave compliance", w.Info().Title)
	assert.Equal(t, []string{"legal", "analysis"}, w.Agents())
	assert.Equal(t, "review", w.OutputStep())
	assert.Equal(t, map[string]any{
		"question": map[string]any{"required": true},
		"depth":    map[string]any{"required": false},
		"note":     map[string]any{"required": true},
	}, w.InputSchema)

	in := Input{"question": "How much annual leave?"}
	c := NewContext()

	task, err := w.Steps[0].Build(c, in)
	require.NoError(t, err)
	assert.Equal(t, agent.Task{"question": "How much annual leave?", "top_k": 3}, task)

	require.NoError(t, c.Set("research", agent.Result{
		Status:  agent.StatusCompleted,
		Output:  map[string]any{"answer": "7 to 14 days"},
		Sources: []agent.Source{{Title: "Cap. 57, Section 41AA"}},
	}))
	task, err = w.Steps[1].Build(c, in)
	require.NoError(t, err)
	assert.Equal(t, "7 to 14 days", task["data"])
	assert.Equal(t, "compliance", task["analysis_type"])
	assert.Equal(t, "hr", task["audience"])
	assert.Len(t, task["sources"], 1)
	_, hasNote := task["note"]
	assert.False(t, hasNote, "absent input without a default is omitted")

	// The definition is not changed by compilation.
	assert.Empty(t, def.Steps[1].Task.InputMappings["data"].Field)
}

func TestCompile_RejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.WorkflowConfig)
		wantErr string
	}{
		{"typo in step_name", func(d *config.WorkflowConfig) {
			m := d.Steps[1].Task.InputMappings["data"]
			m.StepName = "reserch"
			d.Steps[1].Task.InputMappings["data"] = m
		}, `step_name "reserch" does not name an earlier step`},
		{"forward reference", func(d *config.WorkflowConfig) {
			d.Steps[0].Task.InputMappings["context"] = config.InputMapping{Source: config.MappingSourceStep, StepName: "review"}
		}, "does not name an earlier step"},
		{"unknown source", func(d *config.WorkflowConfig) {
			d.Steps[0].Task.InputMappings["x"] = config.InputMapping{Source: "env"}
		}, "invalid source"},
		{"bad id", func(d *config.WorkflowConfig) { d.ID = "leave compliance" }, "may contain only"},
		{"reserved id", func(d *config.WorkflowConfig) { d.ID = "builder" }, "reserved"},
		{"missing output step", func(d *config.WorkflowConfig) { d.OutputStep = "summary" }, "output_step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := complianceDefinition()
			tt.mutate(&def)
			_, err := Compile(def)
			require.Error(t, err)
			assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompile_StepMappingsAreStrict(t *testing.T) {
	w, err := Compile(complianceDefinition())
	require.NoError(t, err)

	c := NewContext()
	_, err = w.Steps[1].Build(c, Input{"question": "q"})
	assert.ErrorIs(t, err, xerrors.ErrUnresolvedReference)

	require.NoError(t, c.Set("research", agent.Failed("legal", xerrors.New(xerrors.CodeNoRelevantPassages, "nothing found"), 0)))
	_, err = w.Steps[1].Build(c, Input{"question": "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnresolvedReference)
	assert.Contains(t, err.Error(), "step failed")
}

func TestCompile_StepMappingDefault(t *testing.T) {
	def := complianceDefinition()
	def.ContinueOnFailure = true
	def.Steps[1].Task.InputMappings["data"] = config.InputMapping{
		Source: config.MappingSourceStep, StepName: "research", Default: "no research available",
	}
	def.Steps[1].Task.InputMappings["sources"] = config.InputMapping{
		Source: config.MappingSourceStep, StepName: "research", Field: "sources", Default: []any{},
	}
	w, err := Compile(def)
	require.NoError(t, err)

	c := NewContext()
	require.NoError(t, c.Set("research", agent.Failed("legal", errors.New("offline"), 0)))
	task, err := w.Steps[1].Build(c, Input{})
	require.NoError(t, err)
	assert.Equal(t, "no research available", task["data"])
	assert.Equal(t, []any{}, task["sources"])
}

func TestCompile_DeclaredSchemaWins(t *testing.T) {
	def := complianceDefinition()
	def.InputSchema = map[string]any{"question": map[string]any{"required": true, "description": "HR question"}}
	w, err := Compile(def)
	require.NoError(t, err)
	assert.Equal(t, def.InputSchema, w.InputSchema)
}

func newBuilder(t *testing.T) (*Builder, *Registry, *documents.MemoryStore) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	store := documents.NewMemoryStore()
	known := map[string]bool{"legal": true, "analysis": true}
	return NewBuilder(reg, store, func(name string) bool { return known[name] }), reg, store
}

func TestBuilder_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b, reg, _ := newBuilder(t)

	stored, err := b.Create(ctx, complianceDefinition())
	require.NoError(t, err)
	assert.Equal(t, "general", stored.Category)
	assert.True(t, stored.IsActive())
	_, err = reg.Lookup("leave_compliance")
	require.NoError(t, err)

	_, err = b.Create(ctx, complianceDefinition())
	assert.Equal(t, xerrors.CodeAlreadyExists, xerrors.CodeOf(err))

	updated, err := b.Update(ctx, "leave_compliance", func(def *config.WorkflowConfig) error {
		def.Description = "v2"
		def.OutputStep = "research"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Description)
	w, err := reg.Lookup("leave_compliance")
	require.NoError(t, err)
	assert.Equal(t, "research", w.OutputStep())

	_, err = b.Update(ctx, "leave_compliance", func(def *config.WorkflowConfig) error {
		inactive := false
		def.Active = &inactive
		return nil
	})
	require.NoError(t, err)
	_, err = reg.Lookup("leave_compliance")
	assert.ErrorIs(t, err, xerrors.ErrWorkflowNotFound)

	defs, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	require.NoError(t, b.Delete(ctx, "leave_compliance"))
	_, err = b.Get(ctx, "leave_compliance")
	assert.ErrorIs(t, err, xerrors.ErrWorkflowNotFound)
	assert.ErrorIs(t, b.Delete(ctx, "leave_compliance"), xerrors.ErrWorkflowNotFound)
}

func TestBuilder_RejectsUnknownAgentAndBuiltins(t *testing.T) {
	ctx := context.Background()
	b, _, store := newBuilder(t)

	def := complianceDefinition()
	def.Steps[1].Agent = "analysys"
	_, err := b.Create(ctx, def)
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	assert.Contains(t, err.Error(), `unknown agent "analysys"`)
	_, err = store.GetWorkflow(ctx, def.ID)
	assert.ErrorIs(t, err, documents.ErrNotFound)

	def = complianceDefinition()
	def.ID = "simple_qa"
	_, err = b.Create(ctx, def)
	assert.Equal(t, xerrors.CodeAlreadyExists, xerrors.CodeOf(err))

	_, err = b.Update(ctx, "simple_qa", func(*config.WorkflowConfig) error { return nil })
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(b.Delete(ctx, "simple_qa")))

	_, err = b.Update(ctx, "missing", func(*config.WorkflowConfig) error { return nil })
	assert.ErrorIs(t, err, xerrors.ErrWorkflowNotFound)
}

func TestBuilder_UpdateKeepsID(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newBuilder(t)
	_, err := b.Create(ctx, complianceDefinition())
	require.NoError(t, err)

	_, err = b.Update(ctx, "leave_compliance", func(def *config.WorkflowConfig) error {
		def.ID = "renamed"
		return nil
	})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestBuilder_LoadSkipsBrokenDefinitions(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	store := documents.NewMemoryStore()

	require.NoError(t, store.CreateWorkflow(ctx, &documents.WorkflowDefinition{WorkflowConfig: complianceDefinition()}))
	broken := complianceDefinition()
	broken.ID = "broken"
	broken.Steps[1].Task.InputMappings["data"] = config.InputMapping{Source: config.MappingSourceStep, StepName: "nope"}
	require.NoError(t, store.CreateWorkflow(ctx, &documents.WorkflowDefinition{WorkflowConfig: broken}))
	inactive := false
	dormant := complianceDefinition()
	dormant.ID = "dormant"
	dormant.Active = &inactive
	require.NoError(t, store.CreateWorkflow(ctx, &documents.WorkflowDefinition{WorkflowConfig: dormant}))

	n, err := NewBuilder(reg, store, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"leave_compliance"}, reg.Names())
}
