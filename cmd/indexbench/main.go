package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/internal/service"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			return v
		}
	}
	return def
}

func main() {
	ctx := context.Background()

	// params
	N := envInt("N", 5000)            // topics in the category
	PINNED := envInt("PINNED", 10)    // pinned topics
	EXPIRED := envInt("EXPIRED", 500) // expired topics
	PAGE := envInt("PAGE", 20)        // page size
	READS := envInt("READS", 200)     // reads per page position

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		mr := must(miniredis.Run())
		defer mr.Close()
		addr = mr.Addr()
		fmt.Println("REDIS_ADDR not set, using embedded miniredis at", addr)
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	deps := service.Deps{
		Store:      repository.NewIndexStore(rdb),
		Topics:     repository.NewTopicRepository(rdb),
		Categories: repository.NewCategoryRepository(rdb),
		Privileges: service.NewPrivileges(repository.NewPrivilegeRepository(rdb)),
		Hooks:      hooks.NewRegistry(),
		Metrics:    service.NewMetrics(prometheus.NewRegistry()),
	}
	tools := service.NewTopicTools(deps)
	lister := service.NewTopicLister(deps, service.NewSelector(deps), service.NewSweeper(deps, tools))
	poster := service.NewTopicPoster(deps)

	// seed one category
	cat := must(deps.Categories.Create(ctx, fmt.Sprintf("bench-%d", time.Now().UnixNano())))
	base := time.Now().Add(-time.Duration(N) * time.Second).UnixMilli()
	tids := make([]int64, 0, N)
	st := time.Now()
	for i := 0; i < N; i++ {
		topic := must(poster.Create(ctx, model.NewTopic{
			CID:       cat.CID,
			UID:       int64(1 + i%50),
			Title:     fmt.Sprintf("topic %d", i),
			Tags:      []string{fmt.Sprintf("t%d", i%8)},
			Timestamp: base + int64(i)*1000,
		}))
		tids = append(tids, topic.TID)
	}
	seed := time.Since(st)

	// 最老的 EXPIRED 个过期，最新的 PINNED 个置顶
	transitions := make([]time.Duration, 0, PINNED+EXPIRED)
	for i := 0; i < EXPIRED && i < len(tids); i++ {
		st := time.Now()
		must(tools.Expire(ctx, tids[i], model.SystemActor))
		transitions = append(transitions, time.Since(st))
	}
	for i := 0; i < PINNED && len(tids)-1-i >= EXPIRED; i++ {
		st := time.Now()
		must(tools.Pin(ctx, tids[len(tids)-1-i], model.SystemActor))
		transitions = append(transitions, time.Since(st))
	}

	fmt.Printf("N=%d PINNED=%d EXPIRED=%d PAGE=%d READS=%d\n", N, PINNED, EXPIRED, PAGE, READS)
	fmt.Printf("Seed: %v (%.0f topics/s)\n", seed, float64(N)/seed.Seconds())
	fmt.Printf("Transitions: samples=%d p50=%v p95=%v p99=%v\n",
		len(transitions), pct(transitions, 0.50), pct(transitions, 0.95), pct(transitions, 0.99))

	// 页位置：首页（含置顶）、置顶边界之后、普通域中间、普通/过期边界
	normal := N - PINNED - EXPIRED
	positions := []struct {
		name  string
		start int
	}{
		{"first", 0},
		{"after-pinned", PINNED},
		{"middle", PINNED + normal/2},
		{"normal/expired", max(0, PINNED+normal-PAGE/2)},
		{"expired-tail", max(0, N-PAGE)},
	}
	for _, pos := range positions {
		lat := make([]time.Duration, 0, READS)
		var got int
		for r := 0; r < READS; r++ {
			st := time.Now()
			page := must(lister.GetTopicIds(ctx, model.TopicListQuery{
				CID:   cat.CID,
				Start: int64(pos.start),
				Stop:  int64(pos.start + PAGE - 1),
			}))
			lat = append(lat, time.Since(st))
			got = len(page)
		}
		fmt.Printf("Page %-15s start=%-6d rows=%-3d p50=%v p95=%v p99=%v\n",
			pos.name, pos.start, got, pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99))
	}

	// 带标签过滤的计数与首页
	lat := make([]time.Duration, 0, READS)
	for r := 0; r < READS; r++ {
		st := time.Now()
		must(lister.GetTopicIds(ctx, model.TopicListQuery{CID: cat.CID, Tags: []string{"t3"}, Start: 0, Stop: int64(PAGE - 1)}))
		lat = append(lat, time.Since(st))
	}
	count := must(lister.GetTopicCount(ctx, model.TopicListQuery{CID: cat.CID, Tags: []string{"t3"}}))
	fmt.Printf("Tag page (t3, count=%d): p50=%v p95=%v p99=%v\n", count, pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99))
}
