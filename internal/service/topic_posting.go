package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/pkg/logger"
)

// TopicPoster 创建主题，并在回复、投票、浏览时维护普通域的排序分数
type TopicPoster interface {
	Create(ctx context.Context, in model.NewTopic) (*model.Topic, error)
	RecordReply(ctx context.Context, tid int64, ts int64) (*model.Topic, error)
	RecordVote(ctx context.Context, tid int64, up, down int64) (*model.Topic, error)
	RecordView(ctx context.Context, tid int64) (*model.Topic, error)
	// PublishDue 发布所有到期的定时主题，返回被发布的 tid
	PublishDue(ctx context.Context) ([]int64, error)
}

type topicPoster struct {
	deps Deps
}

func NewTopicPoster(deps Deps) TopicPoster { return &topicPoster{deps: deps} }

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (p *topicPoster) Create(ctx context.Context, in model.NewTopic) (*model.Topic, error) {
	if strings.TrimSpace(in.Title) == "" || in.UID <= 0 || in.Timestamp < 0 {
		return nil, ErrInvalidData
	}
	ok, err := p.deps.Categories.Exists(ctx, in.CID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoCategory
	}
	tid, err := p.deps.Topics.NextID(ctx)
	if err != nil {
		return nil, err
	}

	now := p.deps.nowMillis()
	ts := in.Timestamp
	if ts == 0 {
		ts = now
	}
	tags := normalizeTags(in.Tags)
	topic := &model.Topic{
		TID:          tid,
		CID:          in.CID,
		UID:          in.UID,
		Title:        strings.TrimSpace(in.Title),
		Timestamp:    ts,
		LastPostTime: ts,
		PostCount:    1,
		Scheduled:    ts > now,
		Tags:         tags,
	}
	// 定时主题在发布前挂在置顶域
	topic.Pinned = topic.Scheduled

	err = p.deps.Store.Batch(ctx, func(b repository.WriteBatch) {
		score := float64(ts)
		b.SetFields(repository.TopicKey(tid), repository.TopicToHash(topic))
		b.Add(repository.TopicsKey, score, tid)
		b.Add(repository.CategoryLastPostTimeKey(in.CID), score, tid)
		b.Add(repository.CategoryUserTidsKey(in.CID, in.UID), score, tid)
		if len(tags) > 0 {
			b.SetAdd(repository.TopicTagsKey(tid), tags...)
			for _, tag := range tags {
				b.Add(repository.TagTopicsKey(tag), score, tid)
				b.Add(repository.CategoryTagTopicsKey(in.CID, tag), score, tid)
			}
		}
		if topic.Scheduled {
			b.Add(repository.CategoryPinnedKey(in.CID), score, tid)
			b.Add(repository.ScheduledTopicsKey, score, tid)
		} else {
			writeNormal(b, topic)
		}
		b.IncrBy(repository.CategoryKey(in.CID), "topic_count", 1)
		b.IncrBy(repository.CategoryKey(in.CID), "post_count", 1)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("topic created", zap.Int64("tid", tid), zap.Int64("cid", in.CID), zap.Bool("scheduled", topic.Scheduled))
	return topic, nil
}

func (p *topicPoster) load(ctx context.Context, tid int64) (*model.Topic, error) {
	topic, err := p.deps.Topics.Get(ctx, tid)
	if errors.Is(err, repository.ErrTopicNotFound) {
		return nil, ErrNoTopic
	}
	return topic, err
}

// RecordReply 普通域分数只对仍在域内的成员更新，置顶/过期主题只改字段
func (p *topicPoster) RecordReply(ctx context.Context, tid int64, ts int64) (*model.Topic, error) {
	topic, err := p.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if ts <= 0 {
		ts = p.deps.nowMillis()
	}
	err = p.deps.Store.Batch(ctx, func(b repository.WriteBatch) {
		b.IncrBy(repository.TopicKey(tid), repository.FieldPostCount, 1)
		b.SetFields(repository.TopicKey(tid), map[string]interface{}{repository.FieldLastPostTime: ts})
		b.Add(repository.CategoryLastPostTimeKey(topic.CID), float64(ts), tid)
		b.IncrBy(repository.CategoryKey(topic.CID), "post_count", 1)
		b.Update(repository.CategoryTidsKey(topic.CID), float64(ts), tid)
		b.IncrIfMember(repository.CategoryPostsKey(topic.CID), 1, tid)
	})
	if err != nil {
		return nil, err
	}
	topic.LastPostTime = ts
	if topic.PostCount, err = p.readCounter(ctx, tid, repository.FieldPostCount); err != nil {
		return nil, err
	}
	return topic, nil
}

func (p *topicPoster) RecordVote(ctx context.Context, tid int64, up, down int64) (*model.Topic, error) {
	topic, err := p.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	if up < 0 || down < 0 {
		return nil, ErrInvalidData
	}
	topic.Upvotes, topic.Downvotes = up, down
	err = p.deps.Store.Batch(ctx, func(b repository.WriteBatch) {
		b.SetFields(repository.TopicKey(tid), map[string]interface{}{
			repository.FieldUpvotes:   up,
			repository.FieldDownvotes: down,
		})
		b.Update(repository.CategoryVotesKey(topic.CID), float64(topic.Votes()), tid)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (p *topicPoster) RecordView(ctx context.Context, tid int64) (*model.Topic, error) {
	topic, err := p.load(ctx, tid)
	if err != nil {
		return nil, err
	}
	err = p.deps.Store.Batch(ctx, func(b repository.WriteBatch) {
		b.IncrBy(repository.TopicKey(tid), repository.FieldViewCount, 1)
		b.IncrIfMember(repository.CategoryViewsKey(topic.CID), 1, tid)
	})
	if err != nil {
		return nil, err
	}
	if topic.ViewCount, err = p.readCounter(ctx, tid, repository.FieldViewCount); err != nil {
		return nil, err
	}
	return topic, nil
}

func (p *topicPoster) readCounter(ctx context.Context, tid int64, field string) (int64, error) {
	vals, err := p.deps.Topics.IntField(ctx, []int64{tid}, field)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func (p *topicPoster) PublishDue(ctx context.Context) ([]int64, error) {
	due, err := p.deps.Store.RangeByScore(ctx, repository.ScheduledTopicsKey, math.Inf(-1), float64(p.deps.nowMillis()))
	if err != nil {
		return nil, err
	}
	published := make([]int64, 0, len(due))
	for _, tid := range due {
		topic, err := p.load(ctx, tid)
		if errors.Is(err, ErrNoTopic) {
			if err := p.deps.Store.Remove(ctx, repository.ScheduledTopicsKey, tid); err != nil {
				logger.Warn("failed to drop missing scheduled topic", zap.Int64("tid", tid), zap.Error(err))
			}
			continue
		}
		if err != nil {
			return published, err
		}
		err = p.deps.Store.Batch(ctx, func(b repository.WriteBatch) {
			b.Remove(repository.ScheduledTopicsKey, tid)
			b.Remove(repository.CategoryPinnedKey(topic.CID), tid)
			b.SetFields(repository.TopicKey(tid), map[string]interface{}{
				repository.FieldScheduled: 0,
				repository.FieldPinned:    0,
			})
			topic.Scheduled = false
			topic.Pinned = false
			writeNormal(b, topic)
		})
		if err != nil {
			return published, err
		}
		published = append(published, tid)
	}
	if len(published) > 0 {
		logger.Info("scheduled topics published", zap.Int("count", len(published)))
	}
	return published, nil
}
