package task

import (
	"time"

	"go.uber.org/zap"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：编辑会话清理、分类缓存刷新
type TaskManager struct {
	sweepTask   *SessionSweepTask
	refreshTask *CategoryRefreshTask
	logger      *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Sessions   SessionSweeper
	Categories CategoryRefresher
	Logger     *zap.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	SweepEnabled  bool
	SweepSchedule string

	RefreshEnabled  bool
	RefreshInterval time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		SweepEnabled:    true,
		SweepSchedule:   "@every 10m",
		RefreshEnabled:  true,
		RefreshInterval: 10 * time.Minute,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TaskManager{logger: logger.Named("task_manager")}

	if cfg.SweepEnabled && deps.Sessions != nil {
		tm.sweepTask = NewSessionSweepTask(deps.Sessions, cfg.SweepSchedule, logger)
	}
	if cfg.RefreshEnabled && deps.Categories != nil {
		tm.refreshTask = NewCategoryRefreshTask(deps.Categories, cfg.RefreshInterval, logger)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务，任一失败则停止已启动的任务
func (tm *TaskManager) Start() error {
	tm.logger.Info("正在启动后台任务...")

	if tm.sweepTask != nil {
		if err := tm.sweepTask.Start(); err != nil {
			return err
		}
	}
	if tm.refreshTask != nil {
		if err := tm.refreshTask.Start(); err != nil {
			tm.Stop()
			return err
		}
	}

	tm.logger.Info("后台任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	tm.logger.Info("正在停止后台任务...")

	if tm.sweepTask != nil {
		tm.sweepTask.Stop()
	}
	if tm.refreshTask != nil {
		tm.refreshTask.Stop()
	}

	tm.logger.Info("后台任务已全部停止")
}

// ==================== 状态查询 ====================

// Status 获取任务启用状态，供健康检查展示
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"session_sweep":    tm.sweepTask != nil,
		"category_refresh": tm.refreshTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskRunning TaskError = "task is already running"
)
