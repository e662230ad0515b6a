package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		Timeout:         time.Second,
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestDo_RetriesCollaboratorErrors(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), "search", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", xerrors.New(xerrors.CodeRetrievalUnavailable, "")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(2), "generate", func(ctx context.Context) (int, error) {
		calls++
		return 0, xerrors.New(xerrors.CodeModelFailure, "")
	})

	assert.Equal(t, 2, calls)
	assert.True(t, errors.Is(err, xerrors.ErrModelFailure))
}

func TestDo_DoesNotRetryInputOrDomainErrors(t *testing.T) {
	for _, code := range []xerrors.Code{xerrors.CodeMissingField, xerrors.CodeNoRelevantPassages} {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(5), "agent", func(ctx context.Context) (int, error) {
			calls++
			return 0, xerrors.New(code, "")
		})

		assert.Equal(t, 1, calls, string(code))
		assert.Equal(t, code, xerrors.CodeOf(err))
	}
}

func TestDo_DoesNotRetryPlainErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})

	assert.Equal(t, 1, calls)
	assert.EqualError(t, err, "boom")
}

func TestDo_TimeoutIsRetryable(t *testing.T) {
	p := fastPolicy(2)
	p.Timeout = 10 * time.Millisecond

	calls := 0
	_, err := Do(context.Background(), p, "slow", func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, xerrors.CodeTimeout, xerrors.CodeOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, fastPolicy(5), "op", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, xerrors.New(xerrors.CodeRetrievalUnavailable, "")
	})

	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, xerrors.ErrCancelled))
}

func TestPolicy_SetDefaults(t *testing.T) {
	p := Policy{MaxAttempts: 1}
	p.SetDefaults()

	assert.Equal(t, 1, p.MaxAttempts)
	assert.Equal(t, 60*time.Second, p.Timeout)
	assert.Equal(t, 500*time.Millisecond, p.InitialInterval)
}
