package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
)

const (
	adminUID int64 = 1
	modUID   int64 = 2
	userUID  int64 = 10
)

var admin = model.UserActor(adminUID)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Millis() int64 { return c.Now().UnixMilli() }

type testEnv struct {
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	clock   *fakeClock
	deps    Deps
	tools   TopicTools
	sweeper *Sweeper
	lister  TopicLister
	poster  TopicPoster
	cid     int64
}

// setupTestEnv 基于 miniredis 构建完整的服务依赖，并创建一个分类
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	privRepo := repository.NewPrivilegeRepository(rdb)
	require.NoError(t, privRepo.AddAdministrator(ctx, adminUID))

	deps := Deps{
		Store:      repository.NewIndexStore(rdb),
		Topics:     repository.NewTopicRepository(rdb),
		Categories: repository.NewCategoryRepository(rdb),
		Privileges: NewPrivileges(privRepo),
		Hooks:      hooks.NewRegistry(),
		Metrics:    NewMetrics(prometheus.NewRegistry()),
		Now:        clock.Now,
	}
	tools := NewTopicTools(deps)
	sweeper := NewSweeper(deps, tools)
	env := &testEnv{
		mr:      mr,
		rdb:     rdb,
		clock:   clock,
		deps:    deps,
		tools:   tools,
		sweeper: sweeper,
		lister:  NewTopicLister(deps, NewSelector(deps), sweeper),
		poster:  NewTopicPoster(deps),
	}
	env.cid = env.createCategory(t, "general")
	require.NoError(t, privRepo.AddModerator(ctx, env.cid, modUID))
	return env
}

func (e *testEnv) createCategory(t *testing.T, name string) int64 {
	t.Helper()
	c, err := e.deps.Categories.Create(context.Background(), name)
	require.NoError(t, err)
	return c.CID
}

// createTopic 在 e.cid 中创建一个 ageSec 秒前发布的主题
func (e *testEnv) createTopic(t *testing.T, ageSec int64, tags ...string) int64 {
	t.Helper()
	return e.createTopicIn(t, e.cid, ageSec, tags...)
}

func (e *testEnv) createTopicIn(t *testing.T, cid, ageSec int64, tags ...string) int64 {
	t.Helper()
	topic, err := e.poster.Create(context.Background(), model.NewTopic{
		CID:       cid,
		UID:       userUID,
		Title:     "topic",
		Tags:      tags,
		Timestamp: e.clock.Millis() - ageSec*1000,
	})
	require.NoError(t, err)
	return topic.TID
}

func (e *testEnv) topic(t *testing.T, tid int64) *model.Topic {
	t.Helper()
	topic, err := e.deps.Topics.Get(context.Background(), tid)
	require.NoError(t, err)
	return topic
}

func (e *testEnv) isMember(t *testing.T, key string, tid int64) bool {
	t.Helper()
	ok, err := e.deps.Store.IsMember(context.Background(), key, tid)
	require.NoError(t, err)
	return ok
}

// domainOf 返回主题所在的域，并校验它只属于一个域、普通域四个集合成员一致
func (e *testEnv) domainOf(t *testing.T, cid, tid int64) string {
	t.Helper()
	normal := 0
	for _, key := range repository.NormalDomainKeys(cid) {
		if e.isMember(t, key, tid) {
			normal++
		}
	}
	require.Contains(t, []int{0, 4}, normal, "normal-domain sets disagree for topic %d", tid)

	var domains []string
	if e.isMember(t, repository.CategoryPinnedKey(cid), tid) {
		domains = append(domains, "pinned")
	}
	if e.isMember(t, repository.CategoryExpireKey(cid), tid) {
		domains = append(domains, "expired")
	}
	if normal == 4 {
		domains = append(domains, "normal")
	}
	require.LessOrEqual(t, len(domains), 1, "topic %d is in %v", tid, domains)
	if len(domains) == 0 {
		return "none"
	}
	return domains[0]
}

func (e *testEnv) list(t *testing.T, q model.TopicListQuery) []int64 {
	t.Helper()
	if q.CID == 0 {
		q.CID = e.cid
	}
	tids, err := e.lister.GetTopicIds(context.Background(), q)
	require.NoError(t, err)
	return tids
}
