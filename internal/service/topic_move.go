package service

import (
	"context"
	"errors"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
)

// MoveResult 迁移后的主题与两个分类的最新计数
type MoveResult struct {
	Topic *model.Topic           `json:"topic"`
	From  model.CategoryCounters `json:"from"`
	To    model.CategoryCounters `json:"to"`
}

func (t *topicTools) Move(ctx context.Context, tid, toCID int64, actor model.Actor) (*MoveResult, error) {
	ctx, span := tracer.Start(ctx, "TopicTools.Move")
	defer span.End()

	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if topic.CID == toCID {
		return nil, ErrCantMoveToSameCategory
	}
	ok, err := t.deps.Categories.Exists(ctx, toCID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoCategory
	}
	if err := t.requireAdminOrMod(ctx, actor, topic.CID); err != nil {
		return nil, err
	}
	if err := t.requireAdminOrMod(ctx, actor, toCID); err != nil {
		return nil, err
	}
	tags, err := t.deps.Topics.Tags(ctx, tid)
	if err != nil {
		return nil, err
	}

	fromCID := topic.CID
	now := t.deps.nowMillis()
	ev := t.event(model.EventMove, topic, actor)
	ev.ToCID = toCID

	err = t.apply(ctx, []hooks.Transition{ev}, func(b repository.WriteBatch) {
		b.RemoveFromAll(repository.CategoryTopicKeys(fromCID, topic.UID, tags), tid)

		topic.OldCID = fromCID
		topic.CID = toCID
		b.Add(repository.CategoryLastPostTimeKey(toCID), float64(topic.LastPostTime), tid)
		b.Add(repository.CategoryUserTidsKey(toCID, topic.UID), float64(topic.Timestamp), tid)
		for _, tag := range tags {
			b.Add(repository.CategoryTagTopicsKey(toCID, tag), float64(topic.Timestamp), tid)
		}

		switch {
		case topic.Pinned:
			b.Add(repository.CategoryPinnedKey(toCID), float64(now), tid)
		case topic.Expire:
			score := now
			if topic.ExpireTime > 0 {
				score = topic.ExpireTime
			}
			b.Add(repository.CategoryExpireKey(toCID), float64(score), tid)
		default:
			if topic.ExpireTime > now {
				b.Add(repository.CategorySetExpireCheckKey(toCID), float64(topic.ExpireTime), tid)
			}
			writeNormal(b, topic)
		}

		b.SetFields(repository.TopicKey(tid), map[string]interface{}{
			repository.FieldCID:    toCID,
			repository.FieldOldCID: fromCID,
		})
		b.IncrBy(repository.CategoryKey(fromCID), "post_count", -topic.PostCount)
		b.IncrBy(repository.CategoryKey(toCID), "post_count", topic.PostCount)
	})
	if err != nil {
		return nil, err
	}

	from, err := t.RecountCategory(ctx, fromCID)
	if err != nil {
		return nil, err
	}
	to, err := t.RecountCategory(ctx, toCID)
	if err != nil {
		return nil, err
	}
	return &MoveResult{Topic: topic, From: from, To: to}, nil
}

func (t *topicTools) RecountCategory(ctx context.Context, cid int64) (model.CategoryCounters, error) {
	c, err := t.deps.Categories.Get(ctx, cid)
	if errors.Is(err, repository.ErrCategoryNotFound) {
		return model.CategoryCounters{}, ErrNoCategory
	}
	if err != nil {
		return model.CategoryCounters{}, err
	}
	n, err := t.deps.Store.Card(ctx, repository.CategoryLastPostTimeKey(cid))
	if err != nil {
		return model.CategoryCounters{}, err
	}
	counters := model.CategoryCounters{CID: cid, TopicCount: n, PostCount: c.PostCount}
	if err := t.deps.Categories.SetCounters(ctx, counters); err != nil {
		return model.CategoryCounters{}, err
	}
	return counters, nil
}

func (t *topicTools) Delete(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.setDeleted(ctx, tid, actor, true)
}

func (t *topicTools) Restore(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
	return t.setDeleted(ctx, tid, actor, false)
}

// setDeleted 只切换 deleted 标记，不改变所在的域
func (t *topicTools) setDeleted(ctx context.Context, tid int64, actor model.Actor, deleted bool) (*model.Topic, error) {
	topic, err := t.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if topic.Scheduled {
		return nil, ErrScheduledTopic
	}
	if !actor.IsSystem() {
		ok, err := t.deps.Privileges.CanDelete(ctx, topic, actor.UID())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoPrivileges
		}
	}
	if deleted && topic.Deleted {
		return nil, ErrTopicAlreadyDeleted
	}
	if !deleted && !topic.Deleted {
		return nil, ErrTopicAlreadyRestored
	}

	typ := model.EventRestore
	if deleted {
		typ = model.EventDelete
	}
	key := repository.TopicKey(tid)
	err = t.apply(ctx, []hooks.Transition{t.event(typ, topic, actor)}, func(b repository.WriteBatch) {
		if deleted {
			b.SetFields(key, map[string]interface{}{
				repository.FieldDeleted: 1,
				"deleterUid":            actor.UID(),
				"deletedTimestamp":      t.deps.nowMillis(),
			})
		} else {
			b.SetFields(key, map[string]interface{}{repository.FieldDeleted: 0})
			b.DeleteFields(key, "deleterUid", "deletedTimestamp")
		}
		topic.Deleted = deleted
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// Purge 删除主题 hash 以及它在所有索引中的成员关系
func (t *topicTools) Purge(ctx context.Context, tid int64, actor model.Actor) error {
	topic, err := t.load(ctx, tid)
	if err != nil {
		return err
	}
	if !actor.IsSystem() {
		ok, err := t.deps.Privileges.CanPurge(ctx, topic, actor.UID())
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoPrivileges
		}
	}
	tags, err := t.deps.Topics.Tags(ctx, tid)
	if err != nil {
		return err
	}

	err = t.apply(ctx, []hooks.Transition{t.event(model.EventPurge, topic, actor)}, func(b repository.WriteBatch) {
		keys := repository.CategoryTopicKeys(topic.CID, topic.UID, tags)
		for _, tag := range tags {
			keys = append(keys, repository.TagTopicsKey(tag))
		}
		keys = append(keys, repository.TopicsKey, repository.ScheduledTopicsKey)
		b.RemoveFromAll(keys, tid)
		b.Delete(repository.TopicKey(tid), repository.TopicTagsKey(tid))
		b.IncrBy(repository.CategoryKey(topic.CID), "post_count", -topic.PostCount)
	})
	if err != nil {
		return err
	}
	_, err = t.RecountCategory(ctx, topic.CID)
	return err
}

// TopicOp 单个主题上的状态变更
type TopicOp func(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error)

// ForEach 依次对每个主题执行同一变更，遇到第一个错误即返回
func ForEach(ctx context.Context, tids []int64, actor model.Actor, op TopicOp) ([]*model.Topic, error) {
	out := make([]*model.Topic, 0, len(tids))
	for _, tid := range tids {
		topic, err := op(ctx, tid, actor)
		if err != nil {
			return out, err
		}
		out = append(out, topic)
	}
	return out, nil
}

// PinMany 可选地先设置置顶截止时间（毫秒，0 表示不设）
func PinMany(ctx context.Context, tools TopicTools, tids []int64, expiry float64, actor model.Actor) ([]*model.Topic, error) {
	return ForEach(ctx, tids, actor, func(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
		if expiry > 0 {
			if _, err := tools.SetPinExpiry(ctx, tid, expiry, actor); err != nil {
				return nil, err
			}
		}
		return tools.Pin(ctx, tid, actor)
	})
}

// ExpireMany 设置截止时间后立即尝试过期；截止时间在未来的主题由读路径稍后处理
func ExpireMany(ctx context.Context, tools TopicTools, tids []int64, deadline float64, actor model.Actor) ([]*model.Topic, error) {
	return ForEach(ctx, tids, actor, func(ctx context.Context, tid int64, actor model.Actor) (*model.Topic, error) {
		if _, err := tools.SetExpire(ctx, tid, deadline, actor); err != nil {
			return nil, err
		}
		return tools.TryExpire(ctx, tid, actor)
	})
}
