package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

type testItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	registry := NewBaseRegistry[testItem]()

	tests := []struct {
		name     string
		item     testItem
		wantCode xerrors.Code
	}{
		{
			name: "register valid item",
			item: testItem{ID: "test-1", Name: "Test Item 1"},
		},
		{
			name:     "register item with empty name",
			item:     testItem{ID: "", Name: "Test Item"},
			wantCode: xerrors.CodeInvalidArgument,
		},
		{
			name:     "register duplicate item",
			item:     testItem{ID: "test-1", Name: "Test Item 2"},
			wantCode: xerrors.CodeAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.item.ID, tt.item)
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("BaseRegistry.Register() unexpected error = %v", err)
				}
				return
			}
			if got := xerrors.CodeOf(err); got != tt.wantCode {
				t.Errorf("BaseRegistry.Register() code = %v, want %v", got, tt.wantCode)
			}
		})
	}

	item, ok := registry.Get("test-1")
	if !ok || item.Name != "Test Item 1" {
		t.Errorf("BaseRegistry.Get() = %v, %v; first registration must win", item, ok)
	}
}

func TestBaseRegistry_ListIsSorted(t *testing.T) {
	registry := NewBaseRegistry[testItem]()
	for _, id := range []string{"c", "a", "b"} {
		if err := registry.Register(id, testItem{ID: id}); err != nil {
			t.Fatalf("Register(%q) error = %v", id, err)
		}
	}

	if got := registry.Names(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Names() = %v, want [a b c]", got)
	}
	items := registry.List()
	if items[1].ID != "b" {
		t.Errorf("List()[1] = %v, want b", items[1])
	}
	if registry.Count() != 3 {
		t.Errorf("Count() = %d, want 3", registry.Count())
	}
}

type namedAgent struct{ name string }

func (a namedAgent) Name() string        { return a.name }
func (a namedAgent) Description() string { return "test agent " + a.name }
func (a namedAgent) Execute(context.Context, agent.Task) agent.Result {
	return agent.Result{Agent: a.name, Status: agent.StatusCompleted}
}

func TestAgents_UnknownName(t *testing.T) {
	r := NewAgents()

	_, err := r.Get("missing")

	assert.True(t, errors.Is(err, xerrors.ErrAgentNotFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestAgents_RegisterInstance(t *testing.T) {
	r := NewAgents()
	require.NoError(t, r.Register(namedAgent{"legal"}))

	err := r.Register(namedAgent{"legal"})
	assert.Equal(t, xerrors.CodeAlreadyExists, xerrors.CodeOf(err))

	a, err := r.Get("legal")
	require.NoError(t, err)
	assert.Equal(t, "legal", a.Name())
	assert.True(t, r.Loaded("legal"))
}

func TestAgents_FactoryBuildsOnceUnderConcurrency(t *testing.T) {
	r := NewAgents()
	var builds atomic.Int32
	require.NoError(t, r.RegisterFactory("analysis", func() (agent.Agent, error) {
		builds.Add(1)
		return namedAgent{"analysis"}, nil
	}))
	assert.False(t, r.Loaded("analysis"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := r.Get("analysis")
			assert.NoError(t, err)
			assert.Equal(t, "analysis", a.Name())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	assert.True(t, r.Loaded("analysis"))
}

func TestAgents_FailedBuildIsRetried(t *testing.T) {
	r := NewAgents()
	calls := 0
	require.NoError(t, r.RegisterFactory("legal", func() (agent.Agent, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("vector index unreachable")
		}
		return namedAgent{"legal"}, nil
	}))

	_, err := r.Get("legal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector index unreachable")
	assert.False(t, r.Loaded("legal"))

	a, err := r.Get("legal")
	require.NoError(t, err)
	assert.Equal(t, "legal", a.Name())
	assert.Equal(t, 2, calls)
}

func TestAgents_Capabilities(t *testing.T) {
	r := NewAgents()
	require.NoError(t, r.Register(namedAgent{"b"}))
	require.NoError(t, r.RegisterFactory("a", func() (agent.Agent, error) { return namedAgent{"a"}, nil }))
	require.NoError(t, r.RegisterFactory("broken", func() (agent.Agent, error) { return nil, errors.New("no model") }))

	caps := r.Capabilities()

	require.Len(t, caps, 2)
	assert.Equal(t, "a", caps[0].Name)
	assert.Equal(t, "test agent b", caps[1].Description)
	assert.Equal(t, []string{"a", "b", "broken"}, r.Names())
}

func TestBaseRegistry_ReplaceAndRemove(t *testing.T) {
	registry := NewBaseRegistry[testItem]()
	require.NoError(t, registry.Register("a", testItem{ID: "a", Name: "first"}))

	require.NoError(t, registry.Replace("a", testItem{ID: "a", Name: "second"}))
	item, ok := registry.Get("a")
	require.True(t, ok)
	assert.Equal(t, "second", item.Name)

	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(registry.Replace("", testItem{})))

	assert.True(t, registry.Remove("a"))
	assert.False(t, registry.Remove("a"))
	assert.Equal(t, 0, registry.Count())
}
