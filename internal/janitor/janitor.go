package janitor

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/glensun810-ai/geodiag/internal/engine"
	"github.com/glensun810-ai/geodiag/pkg/logger"
)

// Janitor 周期清理内存中过期的终态执行，持久化副本不受影响
type Janitor struct {
	scheduler gocron.Scheduler
	engine    *engine.Engine
	retention time.Duration
}

// New 创建清理任务
func New(eng *engine.Engine, interval, retention time.Duration) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	j := &Janitor{scheduler: s, engine: eng, retention: retention}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.sweep),
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Start 启动周期清理
func (j *Janitor) Start() {
	j.scheduler.Start()
	logger.Info("清理任务已启动",
		zap.Duration("retention", j.retention))
}

// Stop 停止清理任务
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	cutoff := time.Now().Add(-j.retention)
	j.engine.PurgeTerminalBefore(cutoff)
}
