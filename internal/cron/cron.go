package cron

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ysicing/AutoEcoleMedia/internal/seed"
)

// SeedRunner 定时执行的导入任务
type SeedRunner interface {
	Run(ctx context.Context) (*seed.Report, error)
}

// Scheduler 定时任务调度器
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 创建新的定时任务调度器
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动定时任务
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Start()
	logrus.Info("已启动定时任务")
}

// Stop 停止定时任务并取消正在执行的导入
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	<-s.cron.Stop().Done()
	logrus.Info("已停止定时任务")
}

// SetupJobs 设置定时导入任务，schedule 为空时不注册
func (s *Scheduler) SetupJobs(schedule string, runner SeedRunner) error {
	if schedule == "" {
		logrus.Info("未配置导入计划，跳过定时导入")
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		logrus.Info("执行定时导入")
		report, err := runner.Run(s.ctx)
		switch {
		case errors.Is(err, seed.ErrSeedRunning):
			logrus.Warn("上一次导入尚未结束，跳过本次定时导入")
		case err != nil:
			logrus.Errorf("定时导入失败: %v", err)
		default:
			logrus.Infof("定时导入完成: 上传 %d 张，失败 %d 张", report.Uploaded, len(report.Failed))
		}
	})
	return err
}

// Entries 已注册的任务数
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cron.Entries())
}

// UpdateJobs 更新定时任务
func (s *Scheduler) UpdateJobs(schedule string, runner SeedRunner) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 停止当前任务并清空
	s.cron.Stop()
	s.cron = cron.New()

	if err := s.SetupJobs(schedule, runner); err != nil {
		logrus.Errorf("更新定时任务失败: %v", err)
	}

	s.cron.Start()
	logrus.Info("已更新并重启定时任务")
}
