// Package hooks provides typed extension points for the topic index.
//
// A Filter is an ordered list of callbacks. Each callback receives the output
// of the previous one and returns a replacement, so whatever the last filter
// returns is authoritative. Callers check HasListeners to decide whether the
// default logic should be skipped entirely.
package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/d60-Lab/topic-index/internal/model"
)

type FilterFunc[T any] func(ctx context.Context, in T) (T, error)

type Filter[T any] struct {
	name string
	mu   sync.RWMutex
	fns  []FilterFunc[T]
}

func NewFilter[T any](name string) *Filter[T] { return &Filter[T]{name: name} }

func (f *Filter[T]) Name() string { return f.name }

func (f *Filter[T]) Register(fn FilterFunc[T]) {
	f.mu.Lock()
	f.fns = append(f.fns, fn)
	f.mu.Unlock()
}

func (f *Filter[T]) HasListeners() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.fns) > 0
}

// Fire 依次调用已注册的 filter；任一返回错误即中止
func (f *Filter[T]) Fire(ctx context.Context, in T) (T, error) {
	f.mu.RLock()
	fns := append([]FilterFunc[T](nil), f.fns...)
	f.mu.RUnlock()

	out := in
	for _, fn := range fns {
		next, err := fn(ctx, out)
		if err != nil {
			return in, fmt.Errorf("hook %s: %w", f.name, err)
		}
		out = next
	}
	return out, nil
}

type ActionFunc[T any] func(ctx context.Context, v T)

// Action 只通知，不影响结果
type Action[T any] struct {
	name string
	mu   sync.RWMutex
	fns  []ActionFunc[T]
}

func NewAction[T any](name string) *Action[T] { return &Action[T]{name: name} }

func (a *Action[T]) Name() string { return a.name }

func (a *Action[T]) Register(fn ActionFunc[T]) {
	a.mu.Lock()
	a.fns = append(a.fns, fn)
	a.mu.Unlock()
}

func (a *Action[T]) Fire(ctx context.Context, v T) {
	a.mu.RLock()
	fns := append([]ActionFunc[T](nil), a.fns...)
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, v)
	}
}

// TopicSetSelection 分类列表使用的有序集合；Sets[0] 为排序依据，其余只做成员过滤
type TopicSetSelection struct {
	Query model.TopicListQuery
	Sets  []string
}

type DirectionSelection struct {
	Sort      model.SortMode
	Direction model.Direction
}

type PinnedSelection struct {
	Query model.TopicListQuery
	Tids  []int64
}

// TopicIDsSelection 置顶部分已经确定后的分页状态；filter 返回的 Tids 即最终结果
type TopicIDsSelection struct {
	Query        model.TopicListQuery
	Sets         []string
	Direction    model.Direction
	PinnedTids   []int64
	PinnedOnPage []int64
	Tids         []int64
}

type TopicCountSelection struct {
	Query model.TopicListQuery
	Sets  []string
	Count int64
}

// Transition 一次主题状态变更
type Transition struct {
	Type  model.EventType
	TID   int64
	CID   int64
	ToCID int64
	Actor model.Actor
	Topic *model.Topic
	At    time.Time
}

// Registry 索引引擎的全部扩展点
type Registry struct {
	CategoryTopicsPrepare   *Filter[model.TopicListQuery]
	BuildTopicsSortedSet    *Filter[TopicSetSelection]
	SortedSetRangeDirection *Filter[DirectionSelection]
	GetPinnedTids           *Filter[PinnedSelection]
	PinnedTidsComputed      *Filter[PinnedSelection]
	GetTopicIds             *Filter[TopicIDsSelection]
	GetTopicCount           *Filter[TopicCountSelection]
	CategoryTopicsGet       *Filter[model.TopicPage]
	// BeforeTransition 返回错误即否决本次变更
	BeforeTransition *Filter[Transition]
	AfterTransition  *Action[Transition]
}

func NewRegistry() *Registry {
	return &Registry{
		CategoryTopicsPrepare:   NewFilter[model.TopicListQuery]("filter:category.topics.prepare"),
		BuildTopicsSortedSet:    NewFilter[TopicSetSelection]("filter:categories.buildTopicsSortedSet"),
		SortedSetRangeDirection: NewFilter[DirectionSelection]("filter:categories.getSortedSetRangeDirection"),
		GetPinnedTids:           NewFilter[PinnedSelection]("filter:categories.getPinnedTids"),
		PinnedTidsComputed:      NewFilter[PinnedSelection]("filter:categories.pinnedTids"),
		GetTopicIds:             NewFilter[TopicIDsSelection]("filter:categories.getTopicIds"),
		GetTopicCount:           NewFilter[TopicCountSelection]("filter:categories.getTopicCount"),
		CategoryTopicsGet:       NewFilter[model.TopicPage]("filter:category.topics.get"),
		BeforeTransition:        NewFilter[Transition]("filter:topic.transition"),
		AfterTransition:         NewAction[Transition]("action:topic.transition"),
	}
}
