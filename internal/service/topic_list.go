package service

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
)

// TopicLister 把置顶域、普通域、过期域合并为一页。
//
// 置顶主题逻辑上排在普通域之前，过期主题排在最后，因此后续页在普通域和
// 过期域中的起点都要减去前面各域已经占用的数量。读取置顶域与读取普通域
// 之间没有加锁：这期间并发的置顶/取消置顶可能让某个主题在一页中出现两次
// 或缺失，下一次读取即恢复。
type TopicLister interface {
	GetTopicIds(ctx context.Context, q model.TopicListQuery) ([]int64, error)
	GetTopicCount(ctx context.Context, q model.TopicListQuery) (int64, error)
	GetPinnedTids(ctx context.Context, q model.TopicListQuery) ([]int64, error)
	GetExpireTids(ctx context.Context, cid, start, stop int64) ([]int64, error)
	// GetAllTopicIds 置顶、普通、过期三个域按分数升序合并后的 [start, stop]
	GetAllTopicIds(ctx context.Context, cid, start, stop int64) ([]int64, error)
	GetCategoryTopics(ctx context.Context, q model.TopicListQuery) (*model.TopicPage, error)
}

type topicLister struct {
	deps     Deps
	selector *Selector
	sweeper  *Sweeper
}

func NewTopicLister(deps Deps, selector *Selector, sweeper *Sweeper) TopicLister {
	return &topicLister{deps: deps, selector: selector, sweeper: sweeper}
}

func validWindow(start, stop int64) bool {
	return start >= 0 && (stop == -1 || stop >= start)
}

// pageSlice 返回 tids[start:stop+1]，越界部分截断
func pageSlice(tids []int64, start, stop int64) []int64 {
	n := int64(len(tids))
	if start >= n {
		return []int64{}
	}
	end := n
	if stop != -1 && stop+1 < n {
		end = stop + 1
	}
	return append([]int64(nil), tids[start:end]...)
}

func without(tids []int64, exclude ...[]int64) []int64 {
	skip := make(map[int64]struct{})
	for _, ex := range exclude {
		for _, tid := range ex {
			skip[tid] = struct{}{}
		}
	}
	out := make([]int64, 0, len(tids))
	for _, tid := range tids {
		if _, ok := skip[tid]; !ok {
			out = append(out, tid)
		}
	}
	return out
}

func clampStart(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func (l *topicLister) GetTopicIds(ctx context.Context, q model.TopicListQuery) ([]int64, error) {
	if !validWindow(q.Start, q.Stop) {
		return nil, ErrInvalidData
	}
	ctx, span := tracer.Start(ctx, "TopicLister.GetTopicIds")
	defer span.End()
	span.SetAttributes(attribute.Int64("cid", q.CID), attribute.Int64("start", q.Start), attribute.Int64("stop", q.Stop))
	began := time.Now()
	defer func() { l.deps.Metrics.observeList(string(l.selector.sortOrDefault(q.Sort)), time.Since(began)) }()

	var (
		pinned []int64
		sets   []string
		dir    model.Direction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all := q
		all.Start, all.Stop = 0, -1
		var err error
		pinned, err = l.GetPinnedTids(gctx, all)
		return err
	})
	g.Go(func() error {
		var err error
		sets, err = l.selector.BuildTopicsSortedSet(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		dir, err = l.selector.SortedSetRangeDirection(gctx, q.Sort)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start, stop := q.Start, q.Stop
	totalPinned := int64(len(pinned))
	pinnedOnPage := pageSlice(pinned, start, stop)
	pinnedCountOnPage := int64(len(pinnedOnPage))

	topicsPerPage := stop - start + 1
	normalToGet := topicsPerPage - pinnedCountOnPage
	if normalToGet < 0 {
		normalToGet = 0
	}
	if stop != -1 && normalToGet == 0 {
		return pinnedOnPage, nil
	}

	filter := l.deps.registry().GetTopicIds
	if filter.HasListeners() {
		out, err := filter.Fire(ctx, hooks.TopicIDsSelection{
			Query:        q,
			Sets:         sets,
			Direction:    dir,
			PinnedTids:   pinned,
			PinnedOnPage: pinnedOnPage,
		})
		if err != nil {
			return nil, err
		}
		return out.Tids, nil
	}

	normalStart := start
	if start > 0 && totalPinned > 0 {
		normalStart = clampStart(start - (totalPinned - pinnedCountOnPage))
	}
	normalStop := int64(-1)
	if stop != -1 {
		normalStop = normalStart + normalToGet - 1
	}

	normal, err := l.rangeSets(ctx, sets, normalStart, normalStop, dir.Reverse())
	if err != nil {
		return nil, err
	}
	normal = without(normal, pinned)
	normal, err = l.sweeper.CheckExpire(ctx, normal)
	if err != nil {
		return nil, err
	}

	page := append(pinnedOnPage, normal...)
	if stop != -1 && int64(len(page)) >= topicsPerPage {
		return page, nil
	}

	expired, err := l.expiredBackfill(ctx, q, sets, totalPinned, page)
	if err != nil {
		return nil, err
	}
	return append(page, without(expired, page)...), nil
}

// expiredBackfill 用过期域补齐本页，起点按置顶数与普通域基数平移
func (l *topicLister) expiredBackfill(ctx context.Context, q model.TopicListQuery, sets []string, totalPinned int64, page []int64) ([]int64, error) {
	normalCount, err := l.cardinality(ctx, sets)
	if err != nil {
		return nil, err
	}
	totalCount := normalCount + totalPinned
	onPage := int64(len(page))

	expireStart := q.Start
	if q.Start > 0 {
		expireStart = clampStart(q.Start - (totalCount - onPage))
	}
	expireStop := int64(-1)
	if q.Stop != -1 {
		toGet := q.Stop - q.Start + 1 - onPage
		if toGet <= 0 {
			return nil, nil
		}
		expireStop = expireStart + toGet - 1
	}

	expireSets := []string{repository.CategoryExpireKey(q.CID)}
	if len(sets) > 1 {
		expireSets = append(expireSets, sets[1:]...)
	}
	return l.rangeSets(ctx, expireSets, expireStart, expireStop, true)
}

// rangeSets 单个集合直接区间查询；多个集合时只按第一个集合的分数排序求交集
func (l *topicLister) rangeSets(ctx context.Context, sets []string, start, stop int64, reverse bool) ([]int64, error) {
	store := l.deps.Store
	if len(sets) == 1 {
		if reverse {
			return store.RevRange(ctx, sets[0], start, stop)
		}
		return store.Range(ctx, sets[0], start, stop)
	}
	weights := make([]float64, len(sets))
	weights[0] = 1
	if reverse {
		return store.RevWeightedIntersect(ctx, sets, weights, start, stop)
	}
	return store.WeightedIntersect(ctx, sets, weights, start, stop)
}

func (l *topicLister) cardinality(ctx context.Context, sets []string) (int64, error) {
	if len(sets) == 1 {
		return l.deps.Store.Card(ctx, sets[0])
	}
	return l.deps.Store.IntersectCard(ctx, sets)
}

func (l *topicLister) GetPinnedTids(ctx context.Context, q model.TopicListQuery) ([]int64, error) {
	reg := l.deps.registry()
	if reg.GetPinnedTids.HasListeners() {
		out, err := reg.GetPinnedTids.Fire(ctx, hooks.PinnedSelection{Query: q})
		if err != nil {
			return nil, err
		}
		return out.Tids, nil
	}

	tids, err := l.deps.Store.RevRange(ctx, repository.CategoryPinnedKey(q.CID), q.Start, q.Stop)
	if err != nil {
		return nil, err
	}
	tids, err = l.hideScheduled(ctx, q, tids)
	if err != nil {
		return nil, err
	}
	tids, err = l.sweeper.CheckPinExpiry(ctx, tids)
	if err != nil {
		return nil, err
	}

	if !reg.PinnedTidsComputed.HasListeners() {
		return tids, nil
	}
	out, err := reg.PinnedTidsComputed.Fire(ctx, hooks.PinnedSelection{Query: q, Tids: tids})
	if err != nil {
		return nil, err
	}
	return out.Tids, nil
}

// hideScheduled 未发布的定时主题只对有权限的浏览者可见
func (l *topicLister) hideScheduled(ctx context.Context, q model.TopicListQuery, tids []int64) ([]int64, error) {
	if len(tids) == 0 {
		return tids, nil
	}
	if l.deps.Privileges != nil {
		ok, err := l.deps.Privileges.CanSchedule(ctx, q.CID, q.UID)
		if err != nil {
			return nil, err
		}
		if ok {
			return tids, nil
		}
	}
	scheduled, err := l.deps.Store.Scores(ctx, repository.ScheduledTopicsKey, tids)
	if err != nil {
		return nil, err
	}
	if len(scheduled) == 0 {
		return tids, nil
	}
	// 只隐藏发布时间还未到的，已到期但还没发布的照常可见
	now := float64(l.deps.nowMillis())
	out := make([]int64, 0, len(tids))
	for _, tid := range tids {
		if at, ok := scheduled[tid]; !ok || at <= now {
			out = append(out, tid)
		}
	}
	return out, nil
}

func (l *topicLister) GetExpireTids(ctx context.Context, cid, start, stop int64) ([]int64, error) {
	if !validWindow(start, stop) {
		return nil, ErrInvalidData
	}
	return l.deps.Store.RevRange(ctx, repository.CategoryExpireKey(cid), start, stop)
}

func (l *topicLister) GetAllTopicIds(ctx context.Context, cid, start, stop int64) ([]int64, error) {
	if !validWindow(start, stop) {
		return nil, ErrInvalidData
	}
	keys := []string{
		repository.CategoryPinnedKey(cid),
		repository.CategoryTidsKey(cid),
		repository.CategoryExpireKey(cid),
	}
	sets := make([][]repository.Entry, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() (err error) {
			sets[i], err = l.deps.Store.RangeWithScores(gctx, key)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var merged []repository.Entry
	for _, set := range sets {
		merged = append(merged, set...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score < merged[j].Score
		}
		return merged[i].TID < merged[j].TID
	})
	all := make([]int64, 0, len(merged))
	seen := make(map[int64]struct{}, len(merged))
	for _, e := range merged {
		if _, ok := seen[e.TID]; ok {
			continue
		}
		seen[e.TID] = struct{}{}
		all = append(all, e.TID)
	}
	return pageSlice(all, start, stop), nil
}

func (l *topicLister) GetTopicCount(ctx context.Context, q model.TopicListQuery) (int64, error) {
	sets, err := l.selector.BuildTopicsSortedSet(ctx, q)
	if err != nil {
		return 0, err
	}
	filter := l.deps.registry().GetTopicCount
	if filter.HasListeners() {
		out, err := filter.Fire(ctx, hooks.TopicCountSelection{Query: q, Sets: sets})
		if err != nil {
			return 0, err
		}
		return out.Count, nil
	}
	if len(sets) > 1 {
		return l.deps.Store.IntersectCard(ctx, sets)
	}
	return l.deps.Categories.TopicCount(ctx, q.CID)
}

func (l *topicLister) GetCategoryTopics(ctx context.Context, q model.TopicListQuery) (*model.TopicPage, error) {
	reg := l.deps.registry()
	q, err := reg.CategoryTopicsPrepare.Fire(ctx, q)
	if err != nil {
		return nil, err
	}
	tids, err := l.GetTopicIds(ctx, q)
	if err != nil {
		return nil, err
	}
	topics, err := l.deps.Topics.GetMany(ctx, tids)
	if err != nil {
		return nil, err
	}
	for i, t := range topics {
		t.Index = q.Start + int64(i)
	}

	next := q.Stop + 1
	if q.Stop == -1 {
		next = q.Start + int64(len(topics))
	}
	page := model.TopicPage{CID: q.CID, Topics: topics, NextStart: next}
	page, err = reg.CategoryTopicsGet.Fire(ctx, page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}
