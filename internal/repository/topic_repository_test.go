package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/topic-index/internal/model"
)

func TestTopicHashRoundTrip(t *testing.T) {
	in := &model.Topic{
		TID: 5, CID: 2, UID: 9, Title: "hello",
		Timestamp: 1000, LastPostTime: 2000, PostCount: 3,
		Upvotes: 4, Downvotes: 1, ViewCount: 12,
		Pinned: true, PinExpiry: 5000, Locked: true,
	}
	h := TopicToHash(in)
	assert.NotContains(t, h, FieldExpireTime)
	assert.NotContains(t, h, FieldOldCID)
	assert.Equal(t, 1, h[FieldPinned])
	assert.Equal(t, 0, h[FieldExpire])
}

func TestHashToTopic(t *testing.T) {
	topic, err := HashToTopic(map[string]string{
		FieldCID:          "2",
		FieldTitle:        "hi",
		FieldLastPostTime: "1700000000000.0",
		FieldPinned:       "1",
		FieldExpire:       "0",
		FieldExpireTime:   "",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), topic.CID)
	assert.Equal(t, int64(1_700_000_000_000), topic.LastPostTime)
	assert.True(t, topic.Pinned)
	assert.False(t, topic.Expire)
	assert.Zero(t, topic.ExpireTime)

	_, err = HashToTopic(map[string]string{FieldPostCount: "many"})
	assert.Error(t, err)
}

func TestTopicRepository(t *testing.T) {
	_, rdb := setupTestClient(t)
	repo := NewTopicRepository(rdb)
	ctx := context.Background()

	id, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	id, err = repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrTopicNotFound)

	require.NoError(t, rdb.HSet(ctx, TopicKey(1), TopicToHash(&model.Topic{TID: 1, CID: 3, Title: "a", PinExpiry: 77})).Err())
	require.NoError(t, rdb.SAdd(ctx, TopicTagsKey(1), "go").Err())
	require.NoError(t, repo.SetFields(ctx, 2, map[string]interface{}{FieldCID: 3, FieldTitle: "b"}))

	topic, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", topic.Title)
	assert.Equal(t, int64(77), topic.PinExpiry)

	ok, err := repo.Exists(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// 缺失的主题被跳过
	topics, err := repo.GetMany(ctx, []int64{2, 404, 1})
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, int64(2), topics[0].TID)
	assert.Equal(t, []string{"go"}, topics[1].Tags)
	assert.Empty(t, topics[0].Tags)

	vals, err := repo.IntField(ctx, []int64{1, 2, 404}, FieldPinExpiry)
	require.NoError(t, err)
	assert.Equal(t, []int64{77, 0, 0}, vals)

	tags, err := repo.Tags(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, tags)
}
