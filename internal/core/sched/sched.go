// Package sched 显式的周期任务抽象：repeat-with-interval、
// 关停时整体取消。数据服务自身没有推送原语，近实时视图
// 由调用方轮询实现；这里只承载维护类任务（过期清扫、聚合自愈）。
package sched

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		c:   cron.New(cron.WithSeconds()),
		log: log,
	}
}

// Every 注册一个固定周期任务。单次执行 panic 只记日志，不影响后续轮次。
func (s *Scheduler) Every(interval time.Duration, name string, fn func(ctx context.Context)) error {
	_, err := s.c.AddFunc("@every "+interval.String(), func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduled task panic", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		start := time.Now()
		fn(ctx)
		s.log.Debug("scheduled task done", zap.String("task", name), zap.Duration("took", time.Since(start)))
	})
	return err
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop 停止调度并等待在途任务结束
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
