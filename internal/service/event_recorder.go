package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/pkg/logger"
)

// EventRecorder 订阅 AfterTransition，把审计事件异步写入数据库。
// 队列满时丢弃并告警，不阻塞状态变更。
type EventRecorder struct {
	repo    repository.TopicEventRepository
	ch      chan model.TopicEvent
	metrics *Metrics
	wg      sync.WaitGroup
}

func NewEventRecorder(repo repository.TopicEventRepository, queueSize int, metrics *Metrics) *EventRecorder {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &EventRecorder{repo: repo, ch: make(chan model.TopicEvent, queueSize), metrics: metrics}
}

// Attach 注册到扩展点
func (r *EventRecorder) Attach(reg *hooks.Registry) {
	reg.AfterTransition.Register(func(_ context.Context, t hooks.Transition) {
		r.Enqueue(model.TopicEvent{
			ID:        uuid.New().String(),
			TID:       t.TID,
			CID:       t.CID,
			ToCID:     t.ToCID,
			Type:      string(t.Type),
			ActorUID:  t.Actor.UID(),
			System:    t.Actor.IsSystem(),
			CreatedAt: t.At,
		})
	})
}

// Start 启动 workers 个写入协程；返回的停止函数会等待队列排空（最多 2 秒）
func (r *EventRecorder) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case ev := <-r.ch:
					r.persist(ev)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		deadline := time.After(2 * time.Second)
	drain:
		for len(r.ch) > 0 {
			select {
			case <-deadline:
				break drain
			case <-ctx.Done():
				break drain
			case <-time.After(20 * time.Millisecond):
			}
		}
		close(stopCh)
		r.wg.Wait()
		if n := len(r.ch); n > 0 {
			logger.Warn("audit queue not drained on shutdown", zap.Int("pending", n))
		}
		return nil
	}
}

func (r *EventRecorder) persist(ev model.TopicEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.repo.Create(ctx, &ev); err != nil {
		logger.Error("failed to persist topic event",
			zap.Int64("tid", ev.TID), zap.String("type", ev.Type), zap.Error(err))
	}
	r.metrics.auditQueueLen(len(r.ch))
}

func (r *EventRecorder) Enqueue(ev model.TopicEvent) {
	select {
	case r.ch <- ev:
	default:
		r.metrics.auditDrop()
		logger.Warn("audit queue full, drop event", zap.Int64("tid", ev.TID), zap.String("type", ev.Type))
	}
}

// QueueLen 当前队列长度（采样值）
func (r *EventRecorder) QueueLen() int { return len(r.ch) }
