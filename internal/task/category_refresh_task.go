package task

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CategoryRefresher 分类目录刷新
type CategoryRefresher interface {
	Refresh(ctx context.Context) error
}

// CategoryRefreshTask 定时重建分类缓存
type CategoryRefreshTask struct {
	refresher CategoryRefresher
	interval  time.Duration
	logger    *zap.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

func NewCategoryRefreshTask(refresher CategoryRefresher, interval time.Duration, logger *zap.Logger) *CategoryRefreshTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CategoryRefreshTask{
		refresher: refresher,
		interval:  interval,
		logger:    logger.Named("category_refresh"),
		cron:      cron.New(),
	}
}

func (t *CategoryRefreshTask) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTaskRunning
	}

	t.cron.Schedule(cron.Every(t.interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := t.refresher.Refresh(ctx); err != nil {
			t.logger.Warn("分类缓存重建失败，保留旧缓存", zap.Error(err))
		}
	}))

	t.cron.Start()
	t.running = true
	t.logger.Info("已启动", zap.Duration("interval", t.interval))
	return nil
}

func (t *CategoryRefreshTask) Stop() {
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
