package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/expiration"
)

func newBenchmarkCache(b *testing.B) *cache.Cache[string, string] {
	store := NewTestStore()

	c, err := cache.New("bench", cache.Config[string, string]{
		ReadThrough:       true,
		Loader:            store,
		Expiry:            expiration.AfterAccess{TTL: 10 * time.Second},
		StatisticsEnabled: true,
		Shards:            8,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

//
// ================= SINGLE THREAD BENCH =================
//

func BenchmarkCacheGetHit(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	c.Put(ctx, "key", "value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, "key")
	}
}

func BenchmarkCacheGetMiss(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("miss-%d", i)
		c.Get(ctx, key)
	}
}

//
// ================= PARALLEL BENCH =================
//

func BenchmarkCacheParallelGet(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	for i := 0; i < 1000; i++ {
		c.Put(ctx, fmt.Sprintf("key-%d", i), fmt.Sprint(i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Get(ctx, "key-42")
		}
	})
}

//
// ================= WRITE BENCH =================
//

func BenchmarkCachePut(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(ctx, fmt.Sprintf("key-%d", i), "v")
	}
}

func BenchmarkCachePutSameKeyParallel(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Put(ctx, "hot", "v")
		}
	})
}

//
// ================= HIGH CONCURRENCY TEST =================
//

func BenchmarkCacheHighConcurrency(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	keys := make([]string, 10000)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		c.Put(ctx, keys[i], fmt.Sprint(i))
	}

	b.ResetTimer()

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < b.N/100; j++ {
				c.Get(ctx, keys[(id+j)%len(keys)])
			}
		}(i)
	}
	wg.Wait()
}
