package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultMessage(t *testing.T) {
	err := New(CodeAgentNotFound, "")
	assert.Equal(t, "agent not found", err.Error())
	assert.Equal(t, CodeAgentNotFound, err.Code())
	assert.Equal(t, CategoryInput, err.Category())
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("step lookup: %w", Newf(CodeAgentNotFound, "agent %q not found", "legal"))

	assert.True(t, stderrors.Is(err, ErrAgentNotFound))
	assert.False(t, stderrors.Is(err, ErrWorkflowNotFound))
	assert.Equal(t, CodeAgentNotFound, CodeOf(err))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(CodeRetrievalUnavailable, cause, "qdrant search")

	assert.Equal(t, "qdrant search: connection refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrRetrievalUnavailable))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", stderrors.New("boom"), false},
		{"retrieval", New(CodeRetrievalUnavailable, ""), true},
		{"timeout", New(CodeTimeout, ""), true},
		{"model", Wrap(CodeModelFailure, stderrors.New("503"), "ollama"), true},
		{"input", New(CodeMissingField, ""), false},
		{"domain", New(CodeNoRelevantPassages, ""), false},
		{"override", New(CodeModelFailure, "", WithRetryable(false)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryInput, CategoryOf(ErrUnresolvedReference))
	assert.Equal(t, CategoryCollaborator, CategoryOf(ErrRetrievalUnavailable))
	assert.Equal(t, CategoryDomain, CategoryOf(ErrNoRelevantPassages))
	assert.Equal(t, CategoryInternal, CategoryOf(stderrors.New("x")))
	assert.True(t, IsInput(ErrToolNotFound))
}

func TestMetadata_IsCopied(t *testing.T) {
	err := New(CodeMissingField, "", WithMetadata("field", "question"))

	md := err.Metadata()
	require.Equal(t, "question", md["field"])
	md["field"] = "changed"
	assert.Equal(t, "question", err.Metadata()["field"])
}

func TestRegister_CustomCode(t *testing.T) {
	const code Code = "TEST_CUSTOM"
	Register(code, Attributes{Message: "custom", Category: CategoryDomain})

	err := New(code, "")
	assert.Equal(t, "custom", err.Error())
	assert.Equal(t, CategoryDomain, err.Category())
}
