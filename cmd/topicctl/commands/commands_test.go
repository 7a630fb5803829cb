package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/topic-index/config"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
)

// useMiniredis 让所有命令连接同一个 miniredis
func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	orig := connect
	connect = func(ctx context.Context, addr string) (*redis.Client, *config.Config, error) {
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), &config.Config{}, nil
	}
	t.Cleanup(func() { connect = orig })
	return mr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

// seedTopics 直接通过服务创建主题，返回按创建顺序的 tid
func seedTopics(t *testing.T, cid int64, n int) []int64 {
	t.Helper()
	cmd, _, err := NewRootCmd().Find([]string{"list"})
	require.NoError(t, err)
	cmd.SetContext(context.Background())
	a, err := newApp(cmd)
	require.NoError(t, err)
	defer a.Close()

	tids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		topic, err := a.poster.Create(context.Background(), model.NewTopic{
			CID:       cid,
			UID:       10,
			Title:     "topic " + strconv.Itoa(i),
			Timestamp: int64(1_700_000_000_000 + i*1000),
		})
		require.NoError(t, err)
		tids = append(tids, topic.TID)
	}
	return tids
}

func createCategory(t *testing.T, name string) int64 {
	t.Helper()
	var c model.Category
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "category", "create", name)), &c))
	require.Positive(t, c.CID)
	return c.CID
}

func listTIDs(t *testing.T, cid int64) []int64 {
	t.Helper()
	out := mustRun(t, "list", strconv.FormatInt(cid, 10), "--stop", "-1")
	var tids []int64
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		require.Len(t, fields, 4)
		tid, err := strconv.ParseInt(fields[1], 10, 64)
		require.NoError(t, err)
		tids = append(tids, tid)
	}
	return tids
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, err := run(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "topicctl")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := run(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestSetVersionInfo(t *testing.T) {
	orig := versionString
	t.Cleanup(func() { versionString = orig })

	SetVersionInfo("1.2.3", "abc123", "2025-01-01")
	out := mustRun(t, "--version")
	assert.Contains(t, out, "1.2.3 (commit: abc123, built: 2025-01-01)")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "22"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 22}, ids)

	for _, bad := range []string{"0", "-1", "x"} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestStateCommands(t *testing.T) {
	useMiniredis(t)
	cid := createCategory(t, "general")
	tids := seedTopics(t, cid, 3)
	first, second, third := strconv.FormatInt(tids[0], 10), strconv.FormatInt(tids[1], 10), strconv.FormatInt(tids[2], 10)

	// 新到旧：third, second, first
	assert.Equal(t, []int64{tids[2], tids[1], tids[0]}, listTIDs(t, cid))

	mustRun(t, "pin", first)
	mustRun(t, "expire", third)
	assert.Equal(t, []int64{tids[0], tids[1], tids[2]}, listTIDs(t, cid))

	mustRun(t, "pin", second)
	mustRun(t, "order", second, "0")
	assert.Equal(t, []int64{tids[1], tids[0], tids[2]}, listTIDs(t, cid))

	out := mustRun(t, "lock", first)
	var topics []model.Topic
	require.NoError(t, json.Unmarshal([]byte(out), &topics))
	require.Len(t, topics, 1)
	assert.True(t, topics[0].Locked)

	mustRun(t, "unpin", first, second)
	mustRun(t, "unexpire", third)
	assert.Equal(t, []int64{tids[2], tids[1], tids[0]}, listTIDs(t, cid))

	assert.Equal(t, "3\n", mustRun(t, "count", strconv.FormatInt(cid, 10)))

	_, err := run(t, "order", first, "0")
	assert.Error(t, err, "ordering an unpinned topic")
	_, err = run(t, "lock", "999")
	assert.Error(t, err)
}

func TestMoveAndRecount(t *testing.T) {
	mr := useMiniredis(t)
	from := createCategory(t, "general")
	to := createCategory(t, "archive")
	tids := seedTopics(t, from, 2)

	out := mustRun(t, "move", strconv.FormatInt(tids[0], 10), strconv.FormatInt(to, 10))
	assert.Contains(t, out, `"topic_count"`)
	assert.Equal(t, []int64{tids[0]}, listTIDs(t, to))
	assert.Equal(t, []int64{tids[1]}, listTIDs(t, from))

	// 计数被人为破坏后重算
	mr.HSet(repository.CategoryKey(from), "topic_count", "42")
	out = mustRun(t, "recount", strconv.FormatInt(from, 10))
	var counters []model.CategoryCounters
	require.NoError(t, json.Unmarshal([]byte(out), &counters))
	require.Len(t, counters, 1)
	assert.Equal(t, int64(1), counters[0].TopicCount)
}

func TestPublishAndCategoryList(t *testing.T) {
	useMiniredis(t)
	createCategory(t, "general")
	createCategory(t, "archive")

	out := mustRun(t, "publish")
	assert.Equal(t, "published 0 topic(s) []\n", out)

	var cats []model.Category
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "category", "list")), &cats))
	assert.Len(t, cats, 2)
}
