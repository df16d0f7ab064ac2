package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

func memCfg() *types.ExecutionConfig {
	return &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"q1", "q2"},
		SelectedModels: []string{"m1"},
		UserID:         7,
	}
}

func TestMemoryGatewayLifecycle(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	require.NoError(t, g.CreateExecution(ctx, "diag_1", 7, memCfg()))

	st, err := g.LoadState(ctx, "diag_1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitializing, st.Status)
	assert.Equal(t, 2, st.Total)

	_, err = g.LoadState(ctx, "diag_missing")
	assert.ErrorIs(t, err, types.ErrExecutionNotFound)
}

func TestMemoryGatewayCheckpointFallback(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()
	require.NoError(t, g.CreateExecution(ctx, "diag_1", 7, memCfg()))

	_, err := g.LoadReport(ctx, "diag_1")
	assert.ErrorIs(t, err, types.ErrExecutionNotFound, "no report before any checkpoint")

	stub := &types.AggregatedReport{ExecutionID: "diag_1", IsStub: true}
	require.NoError(t, g.SaveCheckpoint(ctx, &Checkpoint{
		ExecutionID: "diag_1",
		Seq:         1,
		Status:      types.StatusAIFetching,
		Completed:   1,
		Succeeded:   1,
		Report:      stub,
	}))

	rep, err := g.LoadReport(ctx, "diag_1")
	require.NoError(t, err)
	assert.True(t, rep.IsStub, "mid-flight report comes from the latest checkpoint")

	now := time.Now()
	final := &types.AggregatedReport{ExecutionID: "diag_1", IsStub: false}
	require.NoError(t, g.SaveFinalReport(ctx, &types.ExecutionState{
		ExecutionID: "diag_1",
		Status:      types.StatusCompleted,
		Completed:   2,
		Succeeded:   2,
		EndTime:     &now,
	}, final))

	rep, err = g.LoadReport(ctx, "diag_1")
	require.NoError(t, err)
	assert.False(t, rep.IsStub, "final report wins over checkpoints")

	st, err := g.LoadState(ctx, "diag_1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, st.Status)
}

func TestMemoryGatewayListExecutions(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()
	require.NoError(t, g.CreateExecution(ctx, "diag_1", 7, memCfg()))
	require.NoError(t, g.CreateExecution(ctx, "diag_2", 7, memCfg()))
	require.NoError(t, g.CreateExecution(ctx, "diag_3", 8, memCfg()))

	all, total, err := g.ListExecutions(ctx, 0, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, "diag_3", all[0].ExecutionID, "newest first")

	mine, total, err := g.ListExecutions(ctx, 7, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, mine, 1)
	assert.Equal(t, "diag_2", mine[0].ExecutionID)

	page2, _, err := g.ListExecutions(ctx, 7, 1, 1)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "diag_1", page2[0].ExecutionID)
}
