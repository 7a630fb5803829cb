package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/topic-index/internal/model"
)

var ErrCategoryNotFound = errors.New("category not found")

// CategoryRepository 分类 hash 与计数器
type CategoryRepository interface {
	Create(ctx context.Context, name string) (*model.Category, error)
	Get(ctx context.Context, cid int64) (*model.Category, error)
	Exists(ctx context.Context, cid int64) (bool, error)
	List(ctx context.Context) ([]*model.Category, error)
	TopicCount(ctx context.Context, cid int64) (int64, error)
	SetCounters(ctx context.Context, c model.CategoryCounters) error
}

type categoryRepository struct {
	rdb *redis.Client
}

func NewCategoryRepository(rdb *redis.Client) CategoryRepository {
	return &categoryRepository{rdb: rdb}
}

func (r *categoryRepository) Create(ctx context.Context, name string) (*model.Category, error) {
	cid, err := r.rdb.HIncrBy(ctx, GlobalKey, "nextCid", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate cid: %w", err)
	}
	c := &model.Category{CID: cid, Name: name}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, CategoryKey(cid), map[string]interface{}{
			"cid":         cid,
			"name":        name,
			"topic_count": 0,
			"post_count":  0,
		})
		p.ZAdd(ctx, CategoriesKey, redis.Z{Score: float64(cid), Member: cid})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return c, nil
}

func (r *categoryRepository) Get(ctx context.Context, cid int64) (*model.Category, error) {
	h, err := r.rdb.HGetAll(ctx, CategoryKey(cid)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load category %d: %w", cid, err)
	}
	if len(h) == 0 {
		return nil, ErrCategoryNotFound
	}
	topicCount, err := parseIntField(h, "topic_count")
	if err != nil {
		return nil, err
	}
	postCount, err := parseIntField(h, "post_count")
	if err != nil {
		return nil, err
	}
	return &model.Category{CID: cid, Name: h["name"], TopicCount: topicCount, PostCount: postCount}, nil
}

func (r *categoryRepository) Exists(ctx context.Context, cid int64) (bool, error) {
	n, err := r.rdb.Exists(ctx, CategoryKey(cid)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check category %d: %w", cid, err)
	}
	return n > 0, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	ids, err := r.rdb.ZRange(ctx, CategoriesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	cids, err := parseTids(ids)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Category, 0, len(cids))
	for _, cid := range cids {
		c, err := r.Get(ctx, cid)
		if errors.Is(err, ErrCategoryNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *categoryRepository) TopicCount(ctx context.Context, cid int64) (int64, error) {
	n, err := r.rdb.HGet(ctx, CategoryKey(cid), "topic_count").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read topic_count of category %d: %w", cid, err)
	}
	return n, nil
}

func (r *categoryRepository) SetCounters(ctx context.Context, c model.CategoryCounters) error {
	err := r.rdb.HSet(ctx, CategoryKey(c.CID), map[string]interface{}{
		"topic_count": c.TopicCount,
		"post_count":  c.PostCount,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update counters of category %d: %w", c.CID, err)
	}
	return nil
}
