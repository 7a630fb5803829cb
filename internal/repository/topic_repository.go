package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/topic-index/internal/model"
)

var ErrTopicNotFound = errors.New("topic not found")

// TopicRepository 主题 hash 的读写
type TopicRepository interface {
	Get(ctx context.Context, tid int64) (*model.Topic, error)
	// GetMany 按输入顺序返回，不存在的主题被跳过
	GetMany(ctx context.Context, tids []int64) ([]*model.Topic, error)
	Exists(ctx context.Context, tid int64) (bool, error)
	// IntField 按输入顺序返回某个整型字段，缺失记为 0
	IntField(ctx context.Context, tids []int64, field string) ([]int64, error)
	SetFields(ctx context.Context, tid int64, fields map[string]interface{}) error
	Tags(ctx context.Context, tid int64) ([]string, error)
	NextID(ctx context.Context) (int64, error)
}

type topicRepository struct {
	rdb *redis.Client
}

func NewTopicRepository(rdb *redis.Client) TopicRepository {
	return &topicRepository{rdb: rdb}
}

func (r *topicRepository) Get(ctx context.Context, tid int64) (*model.Topic, error) {
	h, err := r.rdb.HGetAll(ctx, TopicKey(tid)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load topic %d: %w", tid, err)
	}
	if len(h) == 0 {
		return nil, ErrTopicNotFound
	}
	t, err := HashToTopic(h)
	if err != nil {
		return nil, fmt.Errorf("failed to decode topic %d: %w", tid, err)
	}
	t.TID = tid
	return t, nil
}

func (r *topicRepository) GetMany(ctx context.Context, tids []int64) ([]*model.Topic, error) {
	if len(tids) == 0 {
		return []*model.Topic{}, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(tids))
	tagCmds := make([]*redis.StringSliceCmd, len(tids))
	for i, tid := range tids {
		cmds[i] = pipe.HGetAll(ctx, TopicKey(tid))
		tagCmds[i] = pipe.SMembers(ctx, TopicTagsKey(tid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load %d topics: %w", len(tids), err)
	}
	out := make([]*model.Topic, 0, len(tids))
	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		t, err := HashToTopic(h)
		if err != nil {
			return nil, fmt.Errorf("failed to decode topic %d: %w", tids[i], err)
		}
		t.TID = tids[i]
		t.Tags = tagCmds[i].Val()
		out = append(out, t)
	}
	return out, nil
}

func (r *topicRepository) Exists(ctx context.Context, tid int64) (bool, error) {
	n, err := r.rdb.Exists(ctx, TopicKey(tid)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check topic %d: %w", tid, err)
	}
	return n > 0, nil
}

func (r *topicRepository) IntField(ctx context.Context, tids []int64, field string) ([]int64, error) {
	out := make([]int64, len(tids))
	if len(tids) == 0 {
		return out, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(tids))
	for i, tid := range tids {
		cmds[i] = pipe.HGet(ctx, TopicKey(tid), field)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read %s of %d topics: %w", field, len(tids), err)
	}
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) || raw == "" {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s of topic %d: %w", field, tids[i], err)
		}
		v, err := parseIntField(map[string]string{field: raw}, field)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *topicRepository) SetFields(ctx context.Context, tid int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.rdb.HSet(ctx, TopicKey(tid), fields).Err(); err != nil {
		return fmt.Errorf("failed to update topic %d: %w", tid, err)
	}
	return nil
}

func (r *topicRepository) Tags(ctx context.Context, tid int64) ([]string, error) {
	tags, err := r.rdb.SMembers(ctx, TopicTagsKey(tid)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tags of topic %d: %w", tid, err)
	}
	return tags, nil
}

func (r *topicRepository) NextID(ctx context.Context) (int64, error) {
	id, err := r.rdb.HIncrBy(ctx, GlobalKey, "nextTid", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate tid: %w", err)
	}
	return id, nil
}
