package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

func records(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			ID:       fmt.Sprintf("run-%d", i),
			Workflow: "simple_qa",
			Status:   StatusCompleted,
			Duration: time.Duration(i+1) * time.Second,
		}
	}
	return out
}

func TestMemoryHistory_Ring(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()

	empty, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, r := range records(5) {
		require.NoError(t, h.Append(ctx, r))
	}

	all, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"run-4", "run-3", "run-2"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
	assert.Equal(t, "run-4", two[0].ID)
}

func TestRedisHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewRedisHistory(client, "", 2)
	ctx := context.Background()
	for _, r := range records(3) {
		require.NoError(t, h.Append(ctx, r))
	}

	all, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-2", all[0].ID)
	assert.Equal(t, 3*time.Second, all[0].Duration)

	one, err := h.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestRedisHistory_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	h := NewRedisHistory(client, "k", 10)
	err := h.Append(context.Background(), records(1)[0])
	assert.ErrorIs(t, err, xerrors.New(xerrors.CodeStorageFailure, ""))
}

func TestComputeStatistics(t *testing.T) {
	assert.Equal(t, 0, ComputeStatistics(nil).Total)

	rs := records(2)
	rs = append(rs, Record{Workflow: "cs_ticket", Status: StatusAborted, Duration: 3 * time.Second})
	s := ComputeStatistics(rs)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Aborted)
	assert.Equal(t, 2*time.Second, s.MeanDuration)
	assert.Equal(t, 2, s.ByWorkflow["simple_qa"])
}
