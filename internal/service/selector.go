package service

import (
	"context"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
)

// Selector 决定分类列表使用哪些有序集合以及遍历方向
type Selector struct {
	deps Deps
}

func NewSelector(deps Deps) *Selector { return &Selector{deps: deps} }

func (s *Selector) sortOrDefault(sort model.SortMode) model.SortMode {
	if sort != "" {
		return sort
	}
	if s.deps.DefaultSort != "" {
		return s.deps.DefaultSort
	}
	return model.SortNewestToOldest
}

// BuildTopicsSortedSet 返回 [基础集合, 标签集合..., 用户集合]；多于一个时需要求交集
func (s *Selector) BuildTopicsSortedSet(ctx context.Context, q model.TopicListQuery) ([]string, error) {
	cid := q.CID
	var set string
	switch s.sortOrDefault(q.Sort) {
	case model.SortMostPosts:
		set = repository.CategoryPostsKey(cid)
	case model.SortMostVotes:
		set = repository.CategoryVotesKey(cid)
	case model.SortMostViews:
		set = repository.CategoryViewsKey(cid)
	default:
		set = repository.CategoryTidsKey(cid)
	}

	sets := []string{set}
	for _, tag := range q.Tags {
		if tag != "" {
			sets = append(sets, repository.TagTopicsKey(tag))
		}
	}
	if q.TargetUID > 0 {
		sets = append(sets, repository.CategoryUserTidsKey(cid, q.TargetUID))
	}

	filter := s.deps.registry().BuildTopicsSortedSet
	if !filter.HasListeners() {
		return sets, nil
	}
	out, err := filter.Fire(ctx, hooks.TopicSetSelection{Query: q, Sets: sets})
	if err != nil {
		return nil, err
	}
	return out.Sets, nil
}

// SortedSetRangeDirection 四种内置排序为从高到低
func (s *Selector) SortedSetRangeDirection(ctx context.Context, sort model.SortMode) (model.Direction, error) {
	sort = s.sortOrDefault(sort)
	dir := model.LowestToHighest
	switch sort {
	case model.SortNewestToOldest, model.SortMostPosts, model.SortMostVotes, model.SortMostViews:
		dir = model.HighestToLowest
	}

	filter := s.deps.registry().SortedSetRangeDirection
	if !filter.HasListeners() {
		return dir, nil
	}
	out, err := filter.Fire(ctx, hooks.DirectionSelection{Sort: sort, Direction: dir})
	if err != nil {
		return "", err
	}
	return out.Direction, nil
}
