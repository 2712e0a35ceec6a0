// Package notify 将状态变更事件扇出为站内通知。
// 后端在主写完成后发布事件；订阅方异步套模板落库，
// 失败只记日志，不重试也不回传给触发方（尽力而为语义）。
package notify

import (
	"context"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
)

const topicMutation = "markethub:mutation"

type Bus struct {
	bus evbus.Bus
	log *zap.Logger
}

func New(log *zap.Logger) *Bus {
	return &Bus{bus: evbus.New(), log: log}
}

// Publish 发布一次变更事件。bus 为 nil 时（测试、ctl 工具）静默跳过。
func (b *Bus) Publish(ev derive.Event) {
	if b == nil {
		return
	}
	b.bus.Publish(topicMutation, ev)
}

// Sink 通知的持久化端，由当前激活的后端满足
type Sink interface {
	CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
}

// Attach 挂接扇出订阅。store 函数每次取当前激活后端，
// 这样切换数据源后扇出自动跟随。
func (b *Bus) Attach(store func() Sink) error {
	return b.bus.SubscribeAsync(topicMutation, func(ev derive.Event) {
		n, ok := derive.Notification(ev)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := store().CreateNotification(ctx, &n); err != nil {
			b.log.Warn("notification fan-out failed",
				zap.String("action", ev.Action),
				zap.String("target", ev.TargetID),
				zap.Error(err))
		}
	}, false)
}

// Close 等待在途的异步扇出排空
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.bus.WaitAsync()
}
