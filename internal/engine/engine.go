package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/glensun810-ai/geodiag/internal/adapter"
	"github.com/glensun810-ai/geodiag/internal/aggregate"
	"github.com/glensun810-ai/geodiag/internal/cleaning"
	"github.com/glensun810-ai/geodiag/internal/config"
	"github.com/glensun810-ai/geodiag/internal/deadletter"
	"github.com/glensun810-ai/geodiag/internal/metrics"
	"github.com/glensun810-ai/geodiag/internal/progress"
	"github.com/glensun810-ai/geodiag/internal/retrypolicy"
	"github.com/glensun810-ai/geodiag/internal/state"
	"github.com/glensun810-ai/geodiag/internal/store"
	"github.com/glensun810-ai/geodiag/pkg/logger"
	"github.com/glensun810-ai/geodiag/pkg/types"
	"github.com/glensun810-ai/geodiag/pkg/utils"
)

// AdapterProvider resolves the adapter responsible for a model.
// *adapter.Registry is the production implementation.
type AdapterProvider interface {
	ForModel(model string) (adapter.AIAdapter, error)
}

// Engine runs diagnosis executions: it expands the task matrix, fans tasks
// out to a bounded worker pool, folds results through the cleaning pipeline
// into the aggregator, and drives the per-execution state machine. One
// Engine serves the whole process; each Start call gets its own isolated
// execution runtime.
type Engine struct {
	cfg       config.DiagnosisConfig
	adapters  AdapterProvider
	gateway   store.Gateway
	tracker   *progress.Tracker
	dlq       *deadletter.Queue
	latency   *metrics.LatencyRecorder
	cleanOpts cleaning.Options
	policy    retrypolicy.Policy

	registry *registry
	log      *zap.Logger
}

// New creates an engine. gateway must not be nil; use store.NewMemoryGateway
// for db-less runs.
func New(cfg config.DiagnosisConfig, adapters AdapterProvider, gateway store.Gateway) *Engine {
	cfg.ApplyDefaults()
	e := &Engine{
		cfg:       cfg,
		adapters:  adapters,
		gateway:   gateway,
		dlq:       deadletter.NewQueue(gateway),
		latency:   metrics.NewLatencyRecorder(),
		cleanOpts: cleaning.DefaultOptions(),
		policy: &retrypolicy.ExponentialBackoff{
			Attempts:  cfg.MaxAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  cfg.RetryMaxDelay,
			Jitter:    cfg.RetryJitter,
		},
		registry: newRegistry(),
		log:      logger.Named("engine"),
	}
	e.tracker = progress.NewTracker(cfg.ExecutionTimeout, cfg.MaxPollInterval, e.TimeoutExecution)
	return e
}

// DeadLetters exposes the dead letter queue for the triage API.
func (e *Engine) DeadLetters() *deadletter.Queue {
	return e.dlq
}

// Latencies exposes the per-model latency summaries.
func (e *Engine) Latencies() map[string]*types.LatencySummary {
	return e.latency.Summaries()
}

// Start validates the config, registers the execution and launches it
// asynchronously. It returns the execution ID immediately; all AI calls
// happen in the background.
func (e *Engine) Start(ctx context.Context, cfg *types.ExecutionConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	executionID := "diag_" + uuid.NewString()
	tasks := ExpandMatrix(executionID, cfg)

	runCtx, cancel := context.WithCancel(context.Background())
	x := &execution{
		id:        executionID,
		cfg:       cfg,
		tasks:     tasks,
		agg:       aggregate.New(executionID, cfg),
		pipeline:  cleaning.NewPipeline(e.cleanOpts),
		ctx:       runCtx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	x.machine = state.NewMachine(executionID, nil, nil)

	e.registry.add(x)
	e.tracker.Create(executionID, cfg.UserID, len(tasks))
	e.tracker.SetStage(executionID, "expanding matrix")

	// Persistence is best-effort: a dead database must not block diagnosis.
	if err := e.gateway.CreateExecution(ctx, executionID, cfg.UserID, cfg); err != nil {
		e.log.Warn("执行登记入库失败",
			zap.String("execution_id", executionID),
			zap.Error(err))
	}

	e.log.Info("诊断执行启动",
		zap.String("execution_id", executionID),
		zap.String("main_brand", cfg.MainBrand),
		zap.Int("total_tasks", len(tasks)),
		zap.Int("workers", e.cfg.Workers))

	utils.SafeGoWithName("engine.run:"+executionID, func() {
		e.run(x)
	})
	return executionID, nil
}

// run owns the whole lifecycle of one execution. It is the single writer of
// the aggregator and cleaning pipeline.
func (e *Engine) run(x *execution) {
	x.machine.Transition(types.StatusAIFetching)
	e.tracker.Update(x.id, x.machine.Current(), 0, 0, 0)
	e.tracker.SetStage(x.id, "calling models")

	x.timer = time.AfterFunc(e.cfg.ExecutionTimeout, func() {
		e.TimeoutExecution(x.id)
	})
	defer x.timer.Stop()

	pool, err := ants.NewPool(e.cfg.Workers)
	if err != nil {
		e.finalizeFailed(x, fmt.Sprintf("worker pool init failed: %v", err))
		return
	}
	defer pool.Release()

	results := make(chan *types.TaskResult, len(x.tasks))

	// Feed the pool. Every task yields exactly one result on the channel,
	// even after cancellation, so the fold loop below always terminates.
	utils.SafeGoWithName("engine.submit:"+x.id, func() {
		for _, task := range x.tasks {
			t := task
			if x.ctx.Err() != nil {
				results <- cancelledResult(t, x.ctx.Err())
				continue
			}
			if submitErr := pool.Submit(func() {
				results <- e.runTask(x.ctx, t)
			}); submitErr != nil {
				results <- cancelledResult(t, submitErr)
			}
		}
	})

	seq := 0
	for i := 0; i < len(x.tasks); i++ {
		res := <-results
		rec := x.pipeline.Clean(res, x.cfg)
		x.agg.AddResult(rec)

		if res.Succeeded {
			e.latency.Record(res.Task.Model, res.LatencyMs)
		} else if res.ErrorKind != types.ErrKindCancelled {
			errMsg := ""
			if res.Err != nil {
				errMsg = res.Err.Error()
			}
			e.dlq.Add(res.Task, res.ErrorKind, errMsg, res.Attempts, map[string]any{
				"question": res.Task.Question,
				"brand":    res.Task.Brand,
			})
		}

		completed, succeeded, failed := x.recordOutcome(res.Succeeded)
		e.tracker.Update(x.id, x.machine.Current(), completed, succeeded, failed)
		x.setReport(x.agg.Report(false, false))

		if completed%e.cfg.CheckpointEvery == 0 {
			seq++
			e.saveCheckpoint(x, seq)
		}
	}

	e.finalize(x, seq)
}

// runTask executes one task with retries. It always returns a result; after
// the retry budget is spent the final classified error rides along.
func (e *Engine) runTask(ctx context.Context, task *types.Task) *types.TaskResult {
	result := &types.TaskResult{Task: task}

	ad, err := e.adapters.ForModel(task.Model)
	if err != nil {
		result.Err = types.NewPlatformError(types.ErrKindModelNotFound, "no adapter", err)
		result.ErrorKind = types.ErrKindModelNotFound
		result.Attempts = 1
		return result
	}

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		if ctx.Err() != nil {
			result.Err = ctx.Err()
			result.ErrorKind = types.KindOf(ctx.Err())
			return result
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		resp, callErr := ad.Send(callCtx, task.Prompt, task.Model)
		cancel()

		if callErr == nil {
			result.Succeeded = true
			result.Content = resp.Content
			result.LatencyMs = resp.LatencyMs
			result.TokensUsed = resp.TokensUsed
			result.Raw = resp.Raw
			return result
		}

		result.Err = callErr
		result.ErrorKind = types.KindOf(callErr)

		if !e.policy.ShouldRetry(attempt, callErr) {
			return result
		}

		e.log.Debug("任务重试",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt),
			zap.String("error_kind", string(result.ErrorKind)))

		select {
		case <-time.After(e.policy.NextDelay(attempt)):
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.ErrorKind = types.KindOf(ctx.Err())
			return result
		}
	}
}

// finalize closes out a run after every task reported in.
func (e *Engine) finalize(x *execution, seq int) {
	_, succeeded, _ := x.counters()

	if !x.machine.IsTerminal() {
		x.machine.Transition(types.StatusAnalyzing)
		e.tracker.SetStage(x.id, "aggregating")

		switch {
		case succeeded == len(x.tasks):
			x.machine.Transition(types.StatusCompleted)
		case succeeded > 0:
			x.machine.Transition(types.StatusPartialCompleted)
		default:
			x.machine.Transition(types.StatusFailed)
			x.markEnded("all tasks failed")
		}
	}
	x.markEnded("")

	final := x.machine.Current() == types.StatusCompleted
	report := x.agg.Report(final, e.cfg.RecordsInReport)
	report.ModelLatencies = e.latency.Summaries()
	x.setReport(report)

	completed, succeededNow, failed := x.counters()
	e.tracker.Update(x.id, x.machine.Current(), completed, succeededNow, failed)
	st := x.snapshotState()
	if st.Error != "" {
		e.tracker.SetError(x.id, st.Error)
	}

	e.saveCheckpoint(x, seq+1)
	if err := e.gateway.SaveFinalReport(context.Background(), st, report); err != nil {
		e.log.Error("最终报告入库失败",
			zap.String("execution_id", x.id),
			zap.Error(err))
	}

	e.log.Info("诊断执行结束",
		zap.String("execution_id", x.id),
		zap.String("status", string(x.machine.Current())),
		zap.Int("succeeded", succeededNow),
		zap.Int("failed", failed),
		zap.Int("dead_letters", e.dlq.CountByExecution(x.id)))
}

// finalizeFailed handles startup failures before any task ran.
func (e *Engine) finalizeFailed(x *execution, msg string) {
	x.machine.Transition(types.StatusFailed)
	x.markEnded(msg)
	e.tracker.SetError(x.id, msg)
	e.tracker.Update(x.id, x.machine.Current(), 0, 0, 0)
	e.tracker.MarkStopped(x.id)
	e.log.Error("诊断执行启动失败",
		zap.String("execution_id", x.id),
		zap.String("error", msg))
}

// saveCheckpoint persists the current aggregate. Failures are logged only;
// checkpointing never fails an execution.
func (e *Engine) saveCheckpoint(x *execution, seq int) {
	completed, succeeded, failed := x.counters()
	cp := &store.Checkpoint{
		ExecutionID: x.id,
		Seq:         seq,
		Status:      x.machine.Current(),
		Completed:   completed,
		Succeeded:   succeeded,
		Failed:      failed,
		Report:      x.report(),
	}
	if err := e.gateway.SaveCheckpoint(context.Background(), cp); err != nil {
		e.log.Warn("检查点入库失败",
			zap.String("execution_id", x.id),
			zap.Int("seq", seq),
			zap.Error(err))
	}
}

// TimeoutExecution forces a running execution into the timeout state. Both
// the per-run timer and the tracker's lazy poll check land here; the state
// machine makes double firing harmless.
func (e *Engine) TimeoutExecution(executionID string) {
	x, ok := e.registry.get(executionID)
	if !ok {
		return
	}
	if !x.machine.Transition(types.StatusTimeout) {
		return
	}
	x.cancel()
	x.markEnded("execution timed out")
	completed, succeeded, failed := x.counters()
	e.tracker.Update(executionID, types.StatusTimeout, completed, succeeded, failed)
	e.tracker.SetError(executionID, "execution timed out")
	e.log.Warn("诊断执行超时",
		zap.String("execution_id", executionID),
		zap.Int("completed", completed))
}

// Stop cancels a running execution on user request. The run goroutine
// drains quickly because in-flight calls see the cancelled context.
func (e *Engine) Stop(executionID string) error {
	x, ok := e.registry.get(executionID)
	if !ok {
		return types.ErrExecutionNotFound
	}
	if x.machine.IsTerminal() {
		return nil
	}
	if x.machine.Transition(types.StatusFailed) {
		x.markEnded("stopped by user")
		e.tracker.SetError(executionID, "stopped by user")
	}
	x.cancel()
	x.markStopped()
	e.tracker.MarkStopped(executionID)
	e.log.Info("诊断执行被手动停止", zap.String("execution_id", executionID))
	return nil
}

// GetStatus answers one poll. Executions gone from memory fall back to the
// persisted state.
func (e *Engine) GetStatus(ctx context.Context, executionID string) (*progress.Snapshot, error) {
	if snap, ok := e.tracker.Get(executionID); ok {
		return snap, nil
	}

	st, err := e.gateway.LoadState(ctx, executionID)
	if err != nil {
		return nil, err
	}
	snap := &progress.Snapshot{
		ExecutionID:       st.ExecutionID,
		Status:            st.Status,
		Progress:          st.Progress(),
		Completed:         st.Completed,
		Total:             st.Total,
		Succeeded:         st.Succeeded,
		Failed:            st.Failed,
		StartTime:         st.StartTime,
		ShouldStopPolling: true,
		Error:             st.Error,
	}
	if st.EndTime != nil {
		snap.ElapsedMs = st.EndTime.Sub(st.StartTime).Milliseconds()
	}
	return snap, nil
}

// GetReport returns the freshest report available: the live snapshot while
// the execution runs, the final report after it ends, or the persisted copy
// once memory is purged.
func (e *Engine) GetReport(ctx context.Context, executionID string) (*types.AggregatedReport, error) {
	if x, ok := e.registry.get(executionID); ok {
		if rep := x.report(); rep != nil {
			return rep, nil
		}
		// No results folded yet: serve an empty stub.
		return &types.AggregatedReport{
			ExecutionID: executionID,
			MainBrand:   x.cfg.MainBrand,
			TotalTasks:  len(x.tasks),
			IsStub:      true,
			GeneratedAt: time.Now(),
		}, nil
	}
	return e.gateway.LoadReport(ctx, executionID)
}

// ReplayTask re-runs one dead-lettered task outside its original execution,
// with the same retry policy. The caller folds the outcome into triage; the
// original execution's aggregate is immutable by then.
func (e *Engine) ReplayTask(ctx context.Context, task *types.Task) *types.TaskResult {
	return e.runTask(ctx, task)
}

// PurgeTerminalBefore evicts finished executions older than the cutoff from
// memory. Their state remains loadable through the gateway.
func (e *Engine) PurgeTerminalBefore(cutoff time.Time) int {
	purged := e.registry.purgeTerminalBefore(cutoff)
	for _, id := range purged {
		e.tracker.Remove(id)
	}
	if len(purged) > 0 {
		e.log.Info("清理终态执行", zap.Int("count", len(purged)))
	}
	return len(purged)
}

func cancelledResult(task *types.Task, err error) *types.TaskResult {
	kind := types.KindOf(err)
	if kind == types.ErrKindGeneric {
		kind = types.ErrKindCancelled
	}
	return &types.TaskResult{
		Task:      task,
		Attempts:  0,
		Err:       err,
		ErrorKind: kind,
	}
}
