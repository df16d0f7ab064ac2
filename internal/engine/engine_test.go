package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/glensun810-ai/geodiag/internal/adapter"
	"github.com/glensun810-ai/geodiag/internal/config"
	"github.com/glensun810-ai/geodiag/internal/deadletter"
	"github.com/glensun810-ai/geodiag/internal/store"
	"github.com/glensun810-ai/geodiag/pkg/types"
)

// mockAdapter scripts Send behavior per test.
type mockAdapter struct {
	send  func(ctx context.Context, prompt, model string) (*types.Response, error)
	calls atomic.Int64
}

func (m *mockAdapter) Provider() string { return "mock" }

func (m *mockAdapter) Send(ctx context.Context, prompt, model string) (*types.Response, error) {
	m.calls.Add(1)
	return m.send(ctx, prompt, model)
}

type singleProvider struct{ a adapter.AIAdapter }

func (p singleProvider) ForModel(string) (adapter.AIAdapter, error) { return p.a, nil }

func fastEngineConfig() config.DiagnosisConfig {
	return config.DiagnosisConfig{
		Workers:          4,
		ExecutionTimeout: 10 * time.Second,
		CallTimeout:      time.Second,
		MaxAttempts:      3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		CheckpointEvery:  2,
		MaxPollInterval:  10 * time.Second,
		RetentionPeriod:  time.Hour,
		JanitorInterval:  time.Hour,
	}
}

func okAdapter(content string) *mockAdapter {
	return &mockAdapter{send: func(ctx context.Context, prompt, model string) (*types.Response, error) {
		return &types.Response{Content: content, LatencyMs: 5}, nil
	}}
}

func waitTerminal(t *testing.T, e *Engine, id string) *types.Status {
	t.Helper()
	var final types.Status
	require.Eventually(t, func() bool {
		snap, err := e.GetStatus(context.Background(), id)
		if err != nil {
			return false
		}
		final = snap.Status
		return snap.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return &final
}

func TestExpandMatrixProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nq := rapid.IntRange(1, 4).Draw(t, "questions")
		nm := rapid.IntRange(1, 3).Draw(t, "models")
		nc := rapid.IntRange(0, 3).Draw(t, "competitors")

		cfg := &types.ExecutionConfig{MainBrand: "Main"}
		for i := 0; i < nq; i++ {
			cfg.Questions = append(cfg.Questions, fmt.Sprintf("q%d about {brandName}?", i))
		}
		for i := 0; i < nm; i++ {
			cfg.SelectedModels = append(cfg.SelectedModels, fmt.Sprintf("model-%d", i))
		}
		for i := 0; i < nc; i++ {
			cfg.CompetitorBrands = append(cfg.CompetitorBrands, fmt.Sprintf("Comp%d", i))
		}

		tasks := ExpandMatrix("diag_x", cfg)
		assert.Len(t, tasks, nq*nm*(1+nc))
		assert.Equal(t, cfg.TotalTasks(), len(tasks))

		keys := make(map[types.TaskKey]struct{})
		for i, task := range tasks {
			assert.Equal(t, i, task.Index)
			assert.NotContains(t, task.Prompt, types.BrandPlaceholder,
				"placeholder must be substituted")
			assert.Contains(t, task.Prompt, task.Brand)
			keys[task.Key()] = struct{}{}
		}
		assert.Len(t, keys, len(tasks), "every matrix cell is unique")
	})
}

func TestSubstituteBrandWithoutPlaceholder(t *testing.T) {
	tasks := ExpandMatrix("diag_x", &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"best crm tools in 2026"},
		SelectedModels: []string{"m1"},
	})
	require.Len(t, tasks, 1)
	assert.Equal(t, "best crm tools in 2026", tasks[0].Prompt)
	assert.Equal(t, "Acme", tasks[0].Brand)
}

func TestFullSuccessRun(t *testing.T) {
	gw := store.NewMemoryGateway()
	content := "Acme is an excellent, reliable choice for most teams. " +
		strings.Repeat("It keeps winning comparisons on price and support. ", 3) +
		"See https://example.com/review for details."
	e := New(fastEngineConfig(), singleProvider{okAdapter(content)}, gw)

	id, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"What do you think of {brandName}?"},
		SelectedModels: []string{"m1", "m2"},
		UserID:         7,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "diag_"))

	status := waitTerminal(t, e, id)
	assert.Equal(t, types.StatusCompleted, *status)

	rep, err := e.GetReport(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, rep.IsStub, "a fully successful run yields a final report")
	assert.Equal(t, 2, rep.SuccessResponses)
	assert.InDelta(t, 100.0, rep.DataCompleteness, 1e-9)
	assert.InDelta(t, 100.0, rep.ShareOfVoice["Acme"], 1e-9)
	assert.Greater(t, rep.HealthScore, 0.0)
	require.Contains(t, rep.ModelLatencies, "m1")

	assert.Equal(t, 0, e.DeadLetters().CountByExecution(id))
	assert.NotEmpty(t, gw.Checkpoints(id), "checkpoints were persisted")
}

func TestPartialCompletionAndDeadLetters(t *testing.T) {
	gw := store.NewMemoryGateway()
	// 10 tasks: brand "Fail*" prompts fail with a non-retryable error.
	ad := &mockAdapter{send: func(ctx context.Context, prompt, model string) (*types.Response, error) {
		if strings.Contains(prompt, "FailBrand") {
			return nil, types.NewPlatformError(types.ErrKindAuth, "401", nil)
		}
		return &types.Response{Content: "BigBrand leads the market today.", LatencyMs: 3}, nil
	}}
	e := New(fastEngineConfig(), singleProvider{ad}, gw)

	id, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:        "BigBrand",
		CompetitorBrands: []string{"FailBrand"},
		Questions:        []string{"q1 {brandName}", "q2 {brandName}", "q3 {brandName}", "q4 {brandName}", "q5 {brandName}"},
		SelectedModels:   []string{"m1"},
	})
	require.NoError(t, err)

	status := waitTerminal(t, e, id)
	assert.Equal(t, types.StatusPartialCompleted, *status)

	rep, err := e.GetReport(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, rep.IsStub, "partial completion serves a stub report")
	assert.Equal(t, 10, rep.TotalResponses)
	assert.Equal(t, 5, rep.SuccessResponses)
	assert.InDelta(t, 50.0, rep.DataCompleteness, 1e-9)

	dls := e.DeadLetters().List(deadletter.Filter{ExecutionID: id})
	require.Len(t, dls, 5)
	assert.Equal(t, types.ErrKindAuth, dls[0].ErrorKind)
	assert.Equal(t, 1, dls[0].RetryCount, "auth errors are not retried")
	assert.Len(t, gw.DeadLetters(), 5, "dead letters reached the sink")
}

func TestRetryBudgetThenDeadLetter(t *testing.T) {
	gw := store.NewMemoryGateway()
	ad := &mockAdapter{send: func(ctx context.Context, prompt, model string) (*types.Response, error) {
		return nil, types.NewPlatformError(types.ErrKindNetwork, "conn reset", nil)
	}}
	e := New(fastEngineConfig(), singleProvider{ad}, gw)

	id, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"{brandName}?"},
		SelectedModels: []string{"m1"},
	})
	require.NoError(t, err)

	status := waitTerminal(t, e, id)
	assert.Equal(t, types.StatusFailed, *status, "zero successes fails the execution")

	assert.Equal(t, int64(3), ad.calls.Load(), "one call plus exactly two retries")
	dls := e.DeadLetters().List(deadletter.Filter{ExecutionID: id})
	require.Len(t, dls, 1, "one exhausted task, one dead letter")
	assert.Equal(t, 3, dls[0].RetryCount)
}

func TestExecutionTimeout(t *testing.T) {
	gw := store.NewMemoryGateway()
	ad := &mockAdapter{send: func(ctx context.Context, prompt, model string) (*types.Response, error) {
		select {
		case <-time.After(10 * time.Second):
			return &types.Response{Content: "too late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	cfg := fastEngineConfig()
	cfg.ExecutionTimeout = 200 * time.Millisecond
	e := New(cfg, singleProvider{ad}, gw)

	id, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"{brandName}?"},
		SelectedModels: []string{"m1", "m2"},
	})
	require.NoError(t, err)

	start := time.Now()
	status := waitTerminal(t, e, id)
	assert.Equal(t, types.StatusTimeout, *status)
	assert.Less(t, time.Since(start), 1500*time.Millisecond,
		"timeout must land promptly, not wait for the calls")

	snap, err := e.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, snap.ShouldStopPolling)
	assert.Contains(t, snap.Error, "timed out")
}

func TestStopExecution(t *testing.T) {
	gw := store.NewMemoryGateway()
	release := make(chan struct{})
	ad := &mockAdapter{send: func(ctx context.Context, prompt, model string) (*types.Response, error) {
		select {
		case <-release:
			return &types.Response{Content: "done"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	e := New(fastEngineConfig(), singleProvider{ad}, gw)

	id, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"{brandName}?"},
		SelectedModels: []string{"m1"},
	})
	require.NoError(t, err)

	// Let the run loop spin up, then pull the plug.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, e.Stop(id))
	close(release)

	status := waitTerminal(t, e, id)
	assert.Equal(t, types.StatusFailed, *status)

	snap, _ := e.GetStatus(context.Background(), id)
	assert.True(t, snap.ShouldStopPolling)
	assert.Contains(t, snap.Error, "stopped")

	assert.ErrorIs(t, e.Stop("diag_unknown"), types.ErrExecutionNotFound)
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	e := New(fastEngineConfig(), singleProvider{okAdapter("x")}, store.NewMemoryGateway())

	_, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "",
		Questions:      []string{"q"},
		SelectedModels: []string{"m"},
	})
	require.Error(t, err)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "Acme",
		SelectedModels: []string{"m"},
	})
	assert.Error(t, err, "no questions")
}

func TestPurgeTerminalKeepsStoreFallback(t *testing.T) {
	gw := store.NewMemoryGateway()
	e := New(fastEngineConfig(), singleProvider{okAdapter("Acme wins.")}, gw)

	id, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"{brandName}?"},
		SelectedModels: []string{"m1"},
	})
	require.NoError(t, err)
	waitTerminal(t, e, id)

	purged := e.PurgeTerminalBefore(time.Now().Add(time.Minute))
	assert.Equal(t, 1, purged)

	snap, err := e.GetStatus(context.Background(), id)
	require.NoError(t, err, "status survives purge through the gateway")
	assert.True(t, snap.ShouldStopPolling)

	_, err = e.GetReport(context.Background(), id)
	assert.NoError(t, err, "report survives purge through the gateway")

	_, err = e.GetStatus(context.Background(), "diag_nope")
	assert.ErrorIs(t, err, types.ErrExecutionNotFound)
}

func TestProgressAdvancesDuringRun(t *testing.T) {
	gw := store.NewMemoryGateway()
	gate := make(chan struct{}, 100)
	ad := &mockAdapter{send: func(ctx context.Context, prompt, model string) (*types.Response, error) {
		select {
		case <-gate:
			return &types.Response{Content: "Acme ok", LatencyMs: 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	cfg := fastEngineConfig()
	cfg.Workers = 1
	e := New(cfg, singleProvider{ad}, gw)

	id, err := e.Start(context.Background(), &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"a {brandName}", "b {brandName}", "c {brandName}", "d {brandName}"},
		SelectedModels: []string{"m1"},
	})
	require.NoError(t, err)

	gate <- struct{}{}
	gate <- struct{}{}
	require.Eventually(t, func() bool {
		snap, err := e.GetStatus(context.Background(), id)
		return err == nil && snap.Completed == 2
	}, 2*time.Second, 5*time.Millisecond)

	snap, _ := e.GetStatus(context.Background(), id)
	assert.Equal(t, types.StatusAIFetching, snap.Status)
	assert.Equal(t, 50, snap.Progress)
	assert.False(t, snap.ShouldStopPolling)
	assert.Positive(t, snap.NextPollMs)

	for i := 0; i < 2; i++ {
		gate <- struct{}{}
	}
	waitTerminal(t, e, id)
}
