package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupBenchStore(b *testing.B) IndexStore {
	mr := miniredis.RunT(b)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = rdb.Close() })
	return NewIndexStore(rdb)
}

func seedCategory(b *testing.B, store IndexStore, cid int64, n int, tags int) {
	ctx := context.Background()
	entries := make([]Entry, 0, n*2)
	for i := 1; i <= n; i++ {
		tid := int64(i)
		score := float64(1_700_000_000_000 + i*1000)
		entries = append(entries, Entry{Key: CategoryTidsKey(cid), Score: score, TID: tid})
		if tags > 0 {
			entries = append(entries, Entry{Key: TagTopicsKey(fmt.Sprintf("t%d", i%tags)), Score: score, TID: tid})
		}
	}
	if err := store.AddBulk(ctx, entries); err != nil {
		b.Fatalf("seed: %v", err)
	}
}

func BenchmarkRevRange_Page(b *testing.B) {
	store := setupBenchStore(b)
	ctx := context.Background()
	const N = 5000
	seedCategory(b, store, 1, N, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := int64(rand.Intn(N - 20))
		_, _ = store.RevRange(ctx, CategoryTidsKey(1), start, start+19)
	}
}

func BenchmarkRevWeightedIntersect_Tag(b *testing.B) {
	store := setupBenchStore(b)
	ctx := context.Background()
	const N = 5000
	seedCategory(b, store, 1, N, 10)
	keys := []string{CategoryTidsKey(1), TagTopicsKey("t3")}

	b.ResetTimer()
	b.Run("Page", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = store.RevWeightedIntersect(ctx, keys, []float64{1, 0}, 0, 19)
		}
	})
	b.Run("Card", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = store.IntersectCard(ctx, keys)
		}
	})
}

func BenchmarkBatch_Transition(b *testing.B) {
	store := setupBenchStore(b)
	ctx := context.Background()
	const N = 1000
	seedCategory(b, store, 1, N, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tid := int64(rand.Intn(N) + 1)
		_ = store.Batch(ctx, func(w WriteBatch) {
			w.SetFields(TopicKey(tid), map[string]interface{}{FieldPinned: 1})
			w.Add(CategoryPinnedKey(1), float64(i), tid)
			w.RemoveFromAll(NormalDomainKeys(1), tid)
		})
	}
}
