package engine

import (
	"context"
	"sync"
	"time"

	"github.com/glensun810-ai/geodiag/internal/aggregate"
	"github.com/glensun810-ai/geodiag/internal/cleaning"
	"github.com/glensun810-ai/geodiag/internal/state"
	"github.com/glensun810-ai/geodiag/pkg/types"
)

// execution is the per-run runtime: one state machine, one aggregator, one
// cleaning pipeline, one cancelable context. The run goroutine is the only
// writer of the aggregator and pipeline; everything other goroutines may
// read goes through the snapshot mutex.
type execution struct {
	id    string
	cfg   *types.ExecutionConfig
	tasks []*types.Task

	machine  *state.Machine
	agg      *aggregate.Aggregator
	pipeline *cleaning.Pipeline

	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	startTime time.Time

	mu         sync.RWMutex
	completed  int
	succeeded  int
	failed     int
	lastReport *types.AggregatedReport
	endTime    *time.Time
	errMsg     string
	stopped    bool
}

func (x *execution) snapshotState() *types.ExecutionState {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return &types.ExecutionState{
		ExecutionID:       x.id,
		UserID:            x.cfg.UserID,
		Status:            x.machine.Current(),
		Completed:         x.completed,
		Total:             len(x.tasks),
		Succeeded:         x.succeeded,
		Failed:            x.failed,
		StartTime:         x.startTime,
		EndTime:           x.endTime,
		ShouldStopPolling: x.machine.IsTerminal() || x.stopped,
		Error:             x.errMsg,
	}
}

func (x *execution) setReport(rep *types.AggregatedReport) {
	x.mu.Lock()
	x.lastReport = rep
	x.mu.Unlock()
}

func (x *execution) report() *types.AggregatedReport {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.lastReport
}

func (x *execution) recordOutcome(succeeded bool) (completed, success, failed int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.completed++
	if succeeded {
		x.succeeded++
	} else {
		x.failed++
	}
	return x.completed, x.succeeded, x.failed
}

func (x *execution) markEnded(errMsg string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.endTime == nil {
		now := time.Now()
		x.endTime = &now
	}
	if errMsg != "" && x.errMsg == "" {
		x.errMsg = errMsg
	}
}

func (x *execution) markStopped() {
	x.mu.Lock()
	x.stopped = true
	x.mu.Unlock()
}

func (x *execution) counters() (completed, succeeded, failed int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.completed, x.succeeded, x.failed
}
