package task

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionSweeper 过期编辑会话清理
type SessionSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionSweepTask 定时清理过期编辑会话及其未提交的图片
type SessionSweepTask struct {
	sweeper  SessionSweeper
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewSessionSweepTask schedule 为 cron 表达式，例如 "@every 10m"
func NewSessionSweepTask(sweeper SessionSweeper, schedule string, logger *zap.Logger) *SessionSweepTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &SessionSweepTask{
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  2 * time.Minute,
		logger:   logger.Named("session_sweep"),
		now:      time.Now,
		cron:     cron.New(),
	}
}

// Start 启动定时任务
func (t *SessionSweepTask) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTaskRunning
	}

	_, err := t.cron.AddFunc(t.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		_, _ = t.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	t.cron.Start()
	t.running = true
	t.logger.Info("已启动", zap.String("schedule", t.schedule))
	return nil
}

// Stop 停止任务，等待正在执行的清理结束
func (t *SessionSweepTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.running = false
	t.logger.Info("已停止")
}

// RunOnce 立即执行一次清理
func (t *SessionSweepTask) RunOnce(ctx context.Context) (int, error) {
	n, err := t.sweeper.SweepExpired(ctx, t.now())
	if err != nil {
		t.logger.Warn("清理过期会话部分失败", zap.Int("removed", n), zap.Error(err))
		return n, err
	}
	if n > 0 {
		t.logger.Info("清理过期会话", zap.Int("removed", n))
	}
	return n, nil
}
