package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/pkg/logger"
)

func TestCreate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	topic, err := env.poster.Create(ctx, model.NewTopic{
		CID:   env.cid,
		UID:   userUID,
		Title: "  hello  ",
		Tags:  []string{"Go", "go", " redis ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", topic.Title)
	assert.Equal(t, []string{"go", "redis"}, topic.Tags)
	assert.Equal(t, env.clock.Millis(), topic.Timestamp)
	assert.False(t, topic.Scheduled)
	assert.Equal(t, "normal", env.domainOf(t, env.cid, topic.TID))

	stored := env.topic(t, topic.TID)
	assert.Equal(t, int64(1), stored.PostCount)
	tags, err := env.deps.Topics.Tags(ctx, topic.TID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "redis"}, tags)
	assert.True(t, env.isMember(t, repository.TagTopicsKey("go"), topic.TID))
	assert.True(t, env.isMember(t, repository.CategoryTagTopicsKey(env.cid, "redis"), topic.TID))
	assert.True(t, env.isMember(t, repository.CategoryUserTidsKey(env.cid, userUID), topic.TID))

	c, err := env.deps.Categories.Get(ctx, env.cid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.TopicCount)
	assert.Equal(t, int64(1), c.PostCount)
}

func TestCreate_Validation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   model.NewTopic
		want error
	}{
		{"empty title", model.NewTopic{CID: env.cid, UID: userUID, Title: " "}, ErrInvalidData},
		{"guest", model.NewTopic{CID: env.cid, Title: "x"}, ErrInvalidData},
		{"negative timestamp", model.NewTopic{CID: env.cid, UID: userUID, Title: "x", Timestamp: -1}, ErrInvalidData},
		{"missing category", model.NewTopic{CID: 999, UID: userUID, Title: "x"}, ErrNoCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.poster.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecordReply(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	older := env.createTopic(t, 100)
	newer := env.createTopic(t, 50)

	topic, err := env.poster.RecordReply(ctx, older, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), topic.PostCount)
	assert.Equal(t, env.clock.Millis(), topic.LastPostTime)

	assert.Equal(t, []int64{older, newer}, env.list(t, model.TopicListQuery{Start: 0, Stop: -1}))
	assert.Equal(t, []int64{older, newer}, env.list(t, model.TopicListQuery{Start: 0, Stop: -1, Sort: model.SortMostPosts}))

	_, err = env.poster.RecordReply(ctx, 999, 0)
	assert.ErrorIs(t, err, ErrNoTopic)
}

func TestRecordReply_PinnedStaysOutOfNormalDomain(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tid := env.createTopic(t, 10)
	_, err := env.tools.Pin(ctx, tid, admin)
	require.NoError(t, err)

	_, err = env.poster.RecordReply(ctx, tid, 0)
	require.NoError(t, err)
	_, err = env.poster.RecordVote(ctx, tid, 3, 0)
	require.NoError(t, err)
	_, err = env.poster.RecordView(ctx, tid)
	require.NoError(t, err)
	assert.Equal(t, "pinned", env.domainOf(t, env.cid, tid))

	// 取消置顶后使用最新的计数
	_, err = env.tools.Unpin(ctx, tid, admin)
	require.NoError(t, err)
	score, err := env.deps.Store.Scores(ctx, repository.CategoryVotesKey(env.cid), []int64{tid})
	require.NoError(t, err)
	assert.Equal(t, float64(3), score[tid])
	score, err = env.deps.Store.Scores(ctx, repository.CategoryPostsKey(env.cid), []int64{tid})
	require.NoError(t, err)
	assert.Equal(t, float64(2), score[tid])
}

func TestRecordReply_ConcurrentRepliesKeepPostScore(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tid := env.createTopic(t, 10)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.poster.RecordReply(ctx, tid, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored := env.topic(t, tid)
	assert.Equal(t, int64(n+1), stored.PostCount)
	score, err := env.deps.Store.Scores(ctx, repository.CategoryPostsKey(env.cid), []int64{tid})
	require.NoError(t, err)
	assert.Equal(t, float64(stored.PostCount), score[tid])
}

func TestRecordReply_RacingPinNeverReentersNormalDomain(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tids := make([]int64, 30)
	for i := range tids {
		tids[i] = env.createTopic(t, int64(100-i))
	}

	var wg sync.WaitGroup
	for _, tid := range tids {
		wg.Add(3)
		go func(tid int64) {
			defer wg.Done()
			_, err := env.tools.Pin(ctx, tid, admin)
			assert.NoError(t, err)
		}(tid)
		go func(tid int64) {
			defer wg.Done()
			_, err := env.poster.RecordReply(ctx, tid, 0)
			assert.NoError(t, err)
		}(tid)
		go func(tid int64) {
			defer wg.Done()
			_, err := env.poster.RecordView(ctx, tid)
			assert.NoError(t, err)
		}(tid)
	}
	wg.Wait()

	for _, tid := range tids {
		assert.Equal(t, "pinned", env.domainOf(t, env.cid, tid), "tid %d", tid)
		assert.Equal(t, int64(2), env.topic(t, tid).PostCount)
	}
}

func TestRecordView_ReturnsStoredCount(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tid := env.createTopic(t, 10)

	for i := 1; i <= 3; i++ {
		topic, err := env.poster.RecordView(ctx, tid)
		require.NoError(t, err)
		assert.Equal(t, int64(i), topic.ViewCount)
	}
	score, err := env.deps.Store.Scores(ctx, repository.CategoryViewsKey(env.cid), []int64{tid})
	require.NoError(t, err)
	assert.Equal(t, float64(3), score[tid])
}

func TestRecordVoteAndView(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.createTopic(t, 20)
	b := env.createTopic(t, 10)

	topic, err := env.poster.RecordVote(ctx, a, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), topic.Votes())
	_, err = env.poster.RecordVote(ctx, a, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidData)

	for i := 0; i < 2; i++ {
		_, err = env.poster.RecordView(ctx, b)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), env.topic(t, b).ViewCount)

	assert.Equal(t, []int64{a, b}, env.list(t, model.TopicListQuery{Stop: -1, Sort: model.SortMostVotes}))
	assert.Equal(t, []int64{b, a}, env.list(t, model.TopicListQuery{Stop: -1, Sort: model.SortMostViews}))
}

func TestPublishDue(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	normal := env.createTopic(t, 10)

	scheduled, err := env.poster.Create(ctx, model.NewTopic{
		CID: env.cid, UID: userUID, Title: "later", Timestamp: env.clock.Millis() + 60_000,
	})
	require.NoError(t, err)
	assert.True(t, scheduled.Scheduled)
	assert.True(t, scheduled.Pinned)

	published, err := env.poster.PublishDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, published)

	env.clock.Advance(time.Minute)
	published, err = env.poster.PublishDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{scheduled.TID}, published)

	stored := env.topic(t, scheduled.TID)
	assert.False(t, stored.Scheduled)
	assert.False(t, stored.Pinned)
	assert.Equal(t, "normal", env.domainOf(t, env.cid, scheduled.TID))
	assert.False(t, env.isMember(t, repository.ScheduledTopicsKey, scheduled.TID))
	assert.Equal(t, []int64{scheduled.TID, normal}, env.list(t, model.TopicListQuery{Start: 0, Stop: -1}))

	// 发布后可以置顶
	_, err = env.tools.Pin(ctx, scheduled.TID, admin)
	assert.NoError(t, err)
}

// failingRemove 让 Remove 失败，其余操作照常
type failingRemove struct {
	repository.IndexStore
}

func (failingRemove) Remove(context.Context, string, ...int64) error {
	return errors.New("zrem refused")
}

func TestPublishDue_MissingTopic(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	_, err := env.mr.ZAdd(repository.ScheduledTopicsKey, float64(env.clock.Millis()-1), "404")
	require.NoError(t, err)

	published, err := env.poster.PublishDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, published)
	assert.False(t, env.isMember(t, repository.ScheduledTopicsKey, 404))
}

func TestPublishDue_LogsFailedCleanup(t *testing.T) {
	env := setupTestEnv(t)
	core, logs := observer.New(zapcore.WarnLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	_, err := env.mr.ZAdd(repository.ScheduledTopicsKey, float64(env.clock.Millis()-1), "404")
	require.NoError(t, err)
	deps := env.deps
	deps.Store = failingRemove{IndexStore: env.deps.Store}

	published, err := NewTopicPoster(deps).PublishDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, published)

	entries := logs.FilterMessage("failed to drop missing scheduled topic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(404), entries[0].ContextMap()["tid"])
}
