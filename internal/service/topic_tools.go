package service

import (
	"context"
	"errors"
	"math"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/pkg/logger"
)

var tracer = otel.Tracer("github.com/d60-Lab/topic-index/internal/service")

// TopicTools 主题状态机。每个变更先完成全部校验，再把所有写操作放进一个事务。
// 对已处于目标状态的主题执行 pin/unpin/expire/unexpire 不报错，直接返回当前状态。
type TopicTools interface {
	Pin(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	Unpin(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	Expire(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	// TryExpire 仅当 expireTime 已到期时过期
	TryExpire(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	Unexpire(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	Lock(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	Unlock(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	// SetExpire deadline 为毫秒时间戳
	SetExpire(ctx context.Context, tid int64, deadline float64, actor model.Actor) (*model.Topic, error)
	SetPinExpiry(ctx context.Context, tid int64, deadline float64, actor model.Actor) (*model.Topic, error)
	// OrderPinned 把置顶主题移动到第 order 位（0 为最上）
	OrderPinned(ctx context.Context, tid int64, order int64, actor model.Actor) error
	Move(ctx context.Context, tid, toCID int64, actor model.Actor) (*MoveResult, error)
	Delete(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	Restore(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)
	Purge(ctx context.Context, tid int64, actor model.Actor) error
	// RecountCategory 以 tids:lastposttime 的基数重算 topic_count
	RecountCategory(ctx context.Context, cid int64) (model.CategoryCounters, error)
}

type topicTools struct {
	deps Deps
}

func NewTopicTools(deps Deps) TopicTools {
	return &topicTools{deps: deps}
}

func (t *topicTools) load(ctx context.Context, tid int64) (*model.Topic, error) {
	topic, err := t.deps.Topics.Get(ctx, tid)
	if errors.Is(err, repository.ErrTopicNotFound) {
		return nil, ErrNoTopic
	}
	return topic, err
}

func (t *topicTools) requireAdminOrMod(ctx context.Context, actor model.Actor, cid int64) error {
	if actor.IsSystem() {
		return nil
	}
	ok, err := t.deps.Privileges.IsAdminOrMod(ctx, cid, actor.UID())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPrivileges
	}
	return nil
}

func (t *topicTools) event(typ model.EventType, topic *model.Topic, actor model.Actor) hooks.Transition {
	return hooks.Transition{Type: typ, TID: topic.TID, CID: topic.CID, Actor: actor, Topic: topic, At: t.deps.now()}
}

// apply 依次经过 BeforeTransition，写入一个事务，然后通知 AfterTransition
func (t *topicTools) apply(ctx context.Context, steps []hooks.Transition, write func(b repository.WriteBatch)) error {
	reg := t.deps.registry()
	for i := range steps {
		ev, err := reg.BeforeTransition.Fire(ctx, steps[i])
		if err != nil {
			return err
		}
		steps[i] = ev
	}
	if err := t.deps.Store.Batch(ctx, write); err != nil {
		return err
	}
	for _, ev := range steps {
		t.deps.Metrics.transition(string(ev.Type))
		logger.Info("topic transition",
			zap.String("type", string(ev.Type)),
			zap.Int64("tid", ev.TID),
			zap.Int64("cid", ev.CID),
			zap.Stringer("actor", ev.Actor),
		)
		reg.AfterTransition.Fire(ctx, ev)
	}
	return nil
}

func writeNormal(b repository.WriteBatch, topic *model.Topic) {
	cid, tid := topic.CID, topic.TID
	b.Add(repository.CategoryTidsKey(cid), float64(topic.LastPostTime), tid)
	b.Add(repository.CategoryPostsKey(cid), float64(topic.PostCount), tid)
	b.Add(repository.CategoryVotesKey(cid), float64(topic.Votes()), tid)
	b.Add(repository.CategoryViewsKey(cid), float64(topic.ViewCount), tid)
}

func writePin(b repository.WriteBatch, topic *model.Topic, now int64) {
	b.SetFields(repository.TopicKey(topic.TID), map[string]interface{}{repository.FieldPinned: 1})
	b.Add(repository.CategoryPinnedKey(topic.CID), float64(now), topic.TID)
	b.RemoveFromAll(repository.NormalDomainKeys(topic.CID), topic.TID)
	topic.Pinned = true
}

func writeUnpin(b repository.WriteBatch, topic *model.Topic) {
	b.SetFields(repository.TopicKey(topic.TID), map[string]interface{}{repository.FieldPinned: 0})
	b.DeleteFields(repository.TopicKey(topic.TID), repository.FieldPinExpiry)
	b.Remove(repository.CategoryPinnedKey(topic.CID), topic.TID)
	writeNormal(b, topic)
	topic.Pinned = false
	topic.PinExpiry = 0
}

func writeExpire(b repository.WriteBatch, topic *model.Topic, now int64) {
	score := now
	if topic.ExpireTime > 0 {
		score = topic.ExpireTime
	}
	b.SetFields(repository.TopicKey(topic.TID), map[string]interface{}{repository.FieldExpire: 1})
	b.Add(repository.CategoryExpireKey(topic.CID), float64(score), topic.TID)
	keys := append(repository.NormalDomainKeys(topic.CID), repository.CategorySetExpireCheckKey(topic.CID))
	b.RemoveFromAll(keys, topic.TID)
	topic.Expire = true
}

func writeUnexpire(b repository.WriteBatch, topic *model.Topic) {
	b.Remove(repository.CategoryExpireKey(topic.CID), topic.TID)
	b.SetFields(repository.TopicKey(topic.TID), map[string]interface{}{repository.FieldExpire: 0})
	b.DeleteFields(repository.TopicKey(topic.TID), repository.FieldExpireTime)
	writeNormal(b, topic)
	topic.Expire = false
	topic.ExpireTime = 0
}

func (t *topicTools) Pin(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.togglePin(ctx, tid, actor, true)
}

func (t *topicTools) Unpin(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.togglePin(ctx, tid, actor, false)
}

func (t *topicTools) togglePin(ctx context.Context, tid int64, actor model.Actor, pin bool) (*model.Topic, error) {
	ctx, span := tracer.Start(ctx, "TopicTools.togglePin")
	defer span.End()

	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if topic.Scheduled {
		return nil, ErrCantPinScheduled
	}
	if err := t.requireAdminOrMod(ctx, actor, topic.CID); err != nil {
		return nil, err
	}
	if topic.Pinned == pin {
		return topic, nil
	}

	var steps []hooks.Transition
	wasExpired := topic.Expire
	if pin && wasExpired {
		steps = append(steps, t.event(model.EventUnexpire, topic, actor))
	}
	if pin {
		steps = append(steps, t.event(model.EventPin, topic, actor))
	} else {
		steps = append(steps, t.event(model.EventUnpin, topic, actor))
	}

	now := t.deps.nowMillis()
	err = t.apply(ctx, steps, func(b repository.WriteBatch) {
		if !pin {
			writeUnpin(b, topic)
			return
		}
		if wasExpired {
			writeUnexpire(b, topic)
		}
		writePin(b, topic, now)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (t *topicTools) Expire(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.toggleExpire(ctx, tid, actor, true)
}

func (t *topicTools) Unexpire(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.toggleExpire(ctx, tid, actor, false)
}

func (t *topicTools) toggleExpire(ctx context.Context, tid int64, actor model.Actor, expire bool) (*model.Topic, error) {
	ctx, span := tracer.Start(ctx, "TopicTools.toggleExpire")
	defer span.End()

	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if topic.Scheduled {
		return nil, ErrCantExpireScheduled
	}
	if err := t.requireAdminOrMod(ctx, actor, topic.CID); err != nil {
		return nil, err
	}
	if topic.Expire == expire {
		return topic, nil
	}

	var steps []hooks.Transition
	wasPinned := topic.Pinned
	if expire && wasPinned {
		steps = append(steps, t.event(model.EventUnpin, topic, actor))
	}
	if expire {
		steps = append(steps, t.event(model.EventExpire, topic, actor))
	} else {
		steps = append(steps, t.event(model.EventUnexpire, topic, actor))
	}

	now := t.deps.nowMillis()
	err = t.apply(ctx, steps, func(b repository.WriteBatch) {
		if !expire {
			writeUnexpire(b, topic)
			return
		}
		if wasPinned {
			writeUnpin(b, topic)
		}
		writeExpire(b, topic, now)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (t *topicTools) TryExpire(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if topic.Expire || topic.ExpireTime <= 0 || topic.ExpireTime > t.deps.nowMillis() {
		return topic, nil
	}
	return t.Expire(ctx, tid, actor)
}

func (t *topicTools) Lock(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.toggleLock(ctx, tid, actor, true)
}

func (t *topicTools) Unlock(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.toggleLock(ctx, tid, actor, false)
}

func (t *topicTools) toggleLock(ctx context.Context, tid int64, actor model.Actor, lock bool) (*model.Topic, error) {
	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if err := t.requireAdminOrMod(ctx, actor, topic.CID); err != nil {
		return nil, err
	}
	typ := model.EventUnlock
	if lock {
		typ = model.EventLock
	}
	err = t.apply(ctx, []hooks.Transition{t.event(typ, topic, actor)}, func(b repository.WriteBatch) {
		b.SetFields(repository.TopicKey(tid), map[string]interface{}{repository.FieldLocked: boolInt(lock)})
		topic.Locked = lock
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// maxDeadlineMillis 2^53，float64 能精确表示的最大整数，转 int64 不会溢出
const maxDeadlineMillis = 1 << 53

func validDeadline(deadline float64) bool {
	return !math.IsNaN(deadline) && deadline > 0 && deadline <= maxDeadlineMillis
}

func (t *topicTools) SetExpire(ctx context.Context, tid int64, deadline float64, actor model.Actor) (*model.Topic, error) {
	if !validDeadline(deadline) {
		return nil, ErrInvalidData
	}
	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if err := t.requireAdminOrMod(ctx, actor, topic.CID); err != nil {
		return nil, err
	}
	ms := int64(deadline)
	err = t.apply(ctx, []hooks.Transition{t.event(model.EventSetExpire, topic, actor)}, func(b repository.WriteBatch) {
		b.SetFields(repository.TopicKey(tid), map[string]interface{}{repository.FieldExpireTime: ms})
		if !topic.Expire {
			b.Add(repository.CategorySetExpireCheckKey(topic.CID), float64(ms), tid)
		}
		topic.ExpireTime = ms
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (t *topicTools) SetPinExpiry(ctx context.Context, tid int64, deadline float64, actor model.Actor) (*model.Topic, error) {
	if !validDeadline(deadline) || int64(deadline) <= t.deps.nowMillis() {
		return nil, ErrInvalidData
	}
	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if err := t.requireAdminOrMod(ctx, actor, topic.CID); err != nil {
		return nil, err
	}
	ms := int64(deadline)
	err = t.apply(ctx, []hooks.Transition{t.event(model.EventPinExpiry, topic, actor)}, func(b repository.WriteBatch) {
		b.SetFields(repository.TopicKey(tid), map[string]interface{}{repository.FieldPinExpiry: ms})
		topic.PinExpiry = ms
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (t *topicTools) OrderPinned(ctx context.Context, tid int64, order int64, actor model.Actor) error {
	if order < 0 {
		return ErrInvalidData
	}
	topic, err := t.load(ctx, tid)
	if err != nil {
		return err
	}
	if err := t.requireAdminOrMod(ctx, actor, topic.CID); err != nil {
		return err
	}

	key := repository.CategoryPinnedKey(topic.CID)
	// 升序读取；列表展示时倒序，所以目标下标从尾部算起
	pinned, err := t.deps.Store.Range(ctx, key, 0, -1)
	if err != nil {
		return err
	}
	idx := indexOf(pinned, tid)
	if idx < 0 {
		return ErrNotPinned
	}

	newOrder := int64(len(pinned)) - order - 1
	if newOrder < 0 {
		newOrder = 0
	}
	rest := make([]int64, 0, len(pinned))
	rest = append(rest, pinned[:idx]...)
	rest = append(rest, pinned[idx+1:]...)
	if newOrder > int64(len(rest)) {
		newOrder = int64(len(rest))
	}
	reordered := make([]int64, 0, len(pinned))
	reordered = append(reordered, rest[:newOrder]...)
	reordered = append(reordered, tid)
	reordered = append(reordered, rest[newOrder:]...)

	return t.apply(ctx, []hooks.Transition{t.event(model.EventReorder, topic, actor)}, func(b repository.WriteBatch) {
		for i, id := range reordered {
			b.Add(key, float64(i), id)
		}
	})
}

func indexOf(tids []int64, tid int64) int {
	for i, v := range tids {
		if v == tid {
			return i
		}
	}
	return -1
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
