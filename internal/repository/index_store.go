package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Entry 批量写入的一条 (set, score, member)
type Entry struct {
	Key   string
	Score float64
	TID   int64
}

// IndexStore 分类主题索引使用的有序集合原语。单个集合上的操作是原子的；
// 跨集合的原子性只由 Batch 提供。
type IndexStore interface {
	Range(ctx context.Context, key string, start, stop int64) ([]int64, error)
	RevRange(ctx context.Context, key string, start, stop int64) ([]int64, error)
	RangeByScore(ctx context.Context, key string, min, max float64) ([]int64, error)
	// RangeWithScores 升序返回整个集合及分数
	RangeWithScores(ctx context.Context, key string) ([]Entry, error)
	// WeightedIntersect 只按 weights 加权后的分数排序；权重为 0 的集合只要求成员存在
	WeightedIntersect(ctx context.Context, keys []string, weights []float64, start, stop int64) ([]int64, error)
	RevWeightedIntersect(ctx context.Context, keys []string, weights []float64, start, stop int64) ([]int64, error)
	Card(ctx context.Context, key string) (int64, error)
	IntersectCard(ctx context.Context, keys []string) (int64, error)
	IsMember(ctx context.Context, key string, tid int64) (bool, error)
	// Scores 只返回集合中存在的成员
	Scores(ctx context.Context, key string, tids []int64) (map[int64]float64, error)
	Add(ctx context.Context, key string, score float64, tid int64) error
	AddBulk(ctx context.Context, entries []Entry) error
	Remove(ctx context.Context, key string, tids ...int64) error
	RemoveFromAll(ctx context.Context, keys []string, tid int64) error
	RemoveRangeByScore(ctx context.Context, key string, min, max float64) error
	DeleteSet(ctx context.Context, key string) error
	// Batch 将 fn 中排队的写操作放进一个 MULTI/EXEC 执行
	Batch(ctx context.Context, fn func(b WriteBatch)) error
}

// WriteBatch 一次状态变更中的写操作集合
type WriteBatch interface {
	Add(key string, score float64, tid int64)
	// Update 只更新已在集合中的成员 (ZADD XX)
	Update(key string, score float64, tid int64)
	// IncrIfMember 只对已在集合中的成员累加分数 (ZADD XX INCR)
	IncrIfMember(key string, delta float64, tid int64)
	Remove(key string, tids ...int64)
	RemoveFromAll(keys []string, tid int64)
	SetFields(key string, fields map[string]interface{})
	DeleteFields(key string, fields ...string)
	IncrBy(key, field string, n int64)
	SetAdd(key string, members ...string)
	Delete(keys ...string)
}

type redisIndexStore struct {
	rdb *redis.Client
}

func NewIndexStore(rdb *redis.Client) IndexStore {
	return &redisIndexStore{rdb: rdb}
}

func member(tid int64) string { return strconv.FormatInt(tid, 10) }

func members(tids []int64) []interface{} {
	out := make([]interface{}, len(tids))
	for i, tid := range tids {
		out[i] = member(tid)
	}
	return out
}

func parseTids(vals []string) ([]int64, error) {
	out := make([]int64, 0, len(vals))
	for _, v := range vals {
		tid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tid member %q: %w", v, err)
		}
		out = append(out, tid)
	}
	return out, nil
}

func formatScore(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (s *redisIndexStore) Range(ctx context.Context, key string, start, stop int64) ([]int64, error) {
	vals, err := s.rdb.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range %s: %w", key, err)
	}
	return parseTids(vals)
}

func (s *redisIndexStore) RevRange(ctx context.Context, key string, start, stop int64) ([]int64, error) {
	vals, err := s.rdb.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reverse range %s: %w", key, err)
	}
	return parseTids(vals)
}

func (s *redisIndexStore) RangeByScore(ctx context.Context, key string, min, max float64) ([]int64, error) {
	vals, err := s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: formatScore(min), Max: formatScore(max)}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range %s by score: %w", key, err)
	}
	return parseTids(vals)
}

func (s *redisIndexStore) RangeWithScores(ctx context.Context, key string) ([]Entry, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range %s with scores: %w", key, err)
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		raw, _ := z.Member.(string)
		tid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad member %q in %s: %w", raw, key, err)
		}
		out = append(out, Entry{Key: key, Score: z.Score, TID: tid})
	}
	return out, nil
}

func (s *redisIndexStore) WeightedIntersect(ctx context.Context, keys []string, weights []float64, start, stop int64) ([]int64, error) {
	return s.intersect(ctx, keys, weights, start, stop, false)
}

func (s *redisIndexStore) RevWeightedIntersect(ctx context.Context, keys []string, weights []float64, start, stop int64) ([]int64, error) {
	return s.intersect(ctx, keys, weights, start, stop, true)
}

// intersect ZINTERSTORE 到临时 key，读取区间后删除，三步在同一事务内
func (s *redisIndexStore) intersect(ctx context.Context, keys []string, weights []float64, start, stop int64, rev bool) ([]int64, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(weights) != 0 && len(weights) != len(keys) {
		return nil, fmt.Errorf("intersect: %d keys but %d weights", len(keys), len(weights))
	}
	tmp := "tmp:intersect:" + uuid.New().String()

	var rangeCmd *redis.StringSliceCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZInterStore(ctx, tmp, &redis.ZStore{Keys: keys, Weights: weights})
		if rev {
			rangeCmd = p.ZRevRange(ctx, tmp, start, stop)
		} else {
			rangeCmd = p.ZRange(ctx, tmp, start, stop)
		}
		p.Del(ctx, tmp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to intersect %v: %w", keys, err)
	}
	return parseTids(rangeCmd.Val())
}

func (s *redisIndexStore) Card(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", key, err)
	}
	return n, nil
}

func (s *redisIndexStore) IntersectCard(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if len(keys) == 1 {
		return s.Card(ctx, keys[0])
	}
	tmp := "tmp:intercard:" + uuid.New().String()
	var storeCmd *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		storeCmd = p.ZInterStore(ctx, tmp, &redis.ZStore{Keys: keys})
		p.Del(ctx, tmp)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count intersection %v: %w", keys, err)
	}
	return storeCmd.Val(), nil
}

func (s *redisIndexStore) IsMember(ctx context.Context, key string, tid int64) (bool, error) {
	err := s.rdb.ZScore(ctx, key, member(tid)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership in %s: %w", key, err)
	}
	return true, nil
}

func (s *redisIndexStore) Scores(ctx context.Context, key string, tids []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(tids))
	if len(tids) == 0 {
		return out, nil
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.FloatCmd, len(tids))
	for i, tid := range tids {
		cmds[i] = pipe.ZScore(ctx, key, member(tid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read scores from %s: %w", key, err)
	}
	for i, cmd := range cmds {
		score, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read score of %d from %s: %w", tids[i], key, err)
		}
		out[tids[i]] = score
	}
	return out, nil
}

func (s *redisIndexStore) Add(ctx context.Context, key string, score float64, tid int64) error {
	if err := s.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member(tid)}).Err(); err != nil {
		return fmt.Errorf("failed to add %d to %s: %w", tid, key, err)
	}
	return nil
}

func (s *redisIndexStore) AddBulk(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, e := range entries {
		pipe.ZAdd(ctx, e.Key, redis.Z{Score: e.Score, Member: member(e.TID)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to bulk add %d entries: %w", len(entries), err)
	}
	return nil
}

func (s *redisIndexStore) Remove(ctx context.Context, key string, tids ...int64) error {
	if len(tids) == 0 {
		return nil
	}
	if err := s.rdb.ZRem(ctx, key, members(tids)...).Err(); err != nil {
		return fmt.Errorf("failed to remove from %s: %w", key, err)
	}
	return nil
}

func (s *redisIndexStore) RemoveFromAll(ctx context.Context, keys []string, tid int64) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, key := range keys {
		pipe.ZRem(ctx, key, member(tid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove %d from %d sets: %w", tid, len(keys), err)
	}
	return nil
}

func (s *redisIndexStore) RemoveRangeByScore(ctx context.Context, key string, min, max float64) error {
	if err := s.rdb.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err(); err != nil {
		return fmt.Errorf("failed to remove score range from %s: %w", key, err)
	}
	return nil
}

func (s *redisIndexStore) DeleteSet(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *redisIndexStore) Batch(ctx context.Context, fn func(b WriteBatch)) error {
	cmds, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		fn(&txBatch{ctx: ctx, p: p})
		return nil
	})
	if errors.Is(err, redis.Nil) {
		// XX INCR 命中非成员时返回 nil，不算失败
		err = nil
		for _, c := range cmds {
			if cerr := c.Err(); cerr != nil && !errors.Is(cerr, redis.Nil) {
				err = cerr
				break
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to apply batch: %w", err)
	}
	return nil
}

type txBatch struct {
	ctx context.Context
	p   redis.Pipeliner
}

func (b *txBatch) Add(key string, score float64, tid int64) {
	b.p.ZAdd(b.ctx, key, redis.Z{Score: score, Member: member(tid)})
}

func (b *txBatch) Update(key string, score float64, tid int64) {
	b.p.ZAddXX(b.ctx, key, redis.Z{Score: score, Member: member(tid)})
}

func (b *txBatch) IncrIfMember(key string, delta float64, tid int64) {
	b.p.ZAddArgsIncr(b.ctx, key, redis.ZAddArgs{
		XX:      true,
		Members: []redis.Z{{Score: delta, Member: member(tid)}},
	})
}

func (b *txBatch) Remove(key string, tids ...int64) {
	if len(tids) > 0 {
		b.p.ZRem(b.ctx, key, members(tids)...)
	}
}

func (b *txBatch) RemoveFromAll(keys []string, tid int64) {
	for _, key := range keys {
		b.p.ZRem(b.ctx, key, member(tid))
	}
}

func (b *txBatch) SetFields(key string, fields map[string]interface{}) {
	if len(fields) > 0 {
		b.p.HSet(b.ctx, key, fields)
	}
}

func (b *txBatch) DeleteFields(key string, fields ...string) {
	if len(fields) > 0 {
		b.p.HDel(b.ctx, key, fields...)
	}
}

func (b *txBatch) IncrBy(key, field string, n int64) {
	b.p.HIncrBy(b.ctx, key, field, n)
}

func (b *txBatch) SetAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	b.p.SAdd(b.ctx, key, vals...)
}

func (b *txBatch) Delete(keys ...string) {
	if len(keys) > 0 {
		b.p.Del(b.ctx, keys...)
	}
}
