package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/pkg/logger"
)

type evictFunc func(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)

// Sweeper 读路径上的惰性过期检查，没有后台定时器
type Sweeper struct {
	deps  Deps
	tools TopicTools
}

func NewSweeper(deps Deps, tools TopicTools) *Sweeper {
	return &Sweeper{deps: deps, tools: tools}
}

// CheckPinExpiry 置顶到期的主题以系统身份取消置顶，并从结果中剔除
func (s *Sweeper) CheckPinExpiry(ctx context.Context, tids []int64) ([]int64, error) {
	return s.sweep(ctx, tids, repository.FieldPinExpiry, "pin_expiry", s.tools.Unpin)
}

// CheckExpire 到达 expireTime 的主题以系统身份转入过期域，并从结果中剔除
func (s *Sweeper) CheckExpire(ctx context.Context, tids []int64) ([]int64, error) {
	return s.sweep(ctx, tids, repository.FieldExpireTime, "expire", s.tools.Expire)
}

func (s *Sweeper) sweep(ctx context.Context, tids []int64, field, name string, evict evictFunc) ([]int64, error) {
	if len(tids) == 0 {
		return tids, nil
	}
	deadlines, err := s.deps.Topics.IntField(ctx, tids, field)
	if err != nil {
		return nil, err
	}

	now := s.deps.nowMillis()
	evicted := make([]bool, len(tids))
	g, gctx := errgroup.WithContext(ctx)
	for i, tid := range tids {
		if deadlines[i] <= 0 || deadlines[i] > now {
			continue
		}
		i, tid := i, tid
		g.Go(func() error {
			_, err := evict(gctx, tid, model.SystemActor)
			switch {
			case err == nil:
				evicted[i] = true
				return nil
			case errors.Is(err, ErrCantPinScheduled), errors.Is(err, ErrCantExpireScheduled), errors.Is(err, ErrNoTopic):
				// 定时主题或已被清除的主题留给发布/清理流程
				return nil
			default:
				return fmt.Errorf("%s sweep of topic %d: %w", name, tid, err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(tids))
	n := 0
	for i, tid := range tids {
		if evicted[i] {
			n++
			continue
		}
		out = append(out, tid)
	}
	if n > 0 {
		s.deps.Metrics.evicted(name, n)
		logger.Info("expiry sweep evicted topics", zap.String("sweep", name), zap.Int("count", n))
	}
	return out, nil
}
