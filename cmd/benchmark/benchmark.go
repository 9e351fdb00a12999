package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/expiration"
	"github.com/krisalay/cache-facade/types"
)

// ================= BACKING STORE =================

type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]int)}
}

func (s *InMemoryStore) Load(ctx context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return 0, types.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) Write(ctx context.Context, key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// ================= BENCHMARK =================

func main() {
	var (
		shards      = flag.Int("shards", 8, "store shards")
		preloadKeys = flag.Int("keys", 100000, "keys preloaded through the writer")
		goroutines  = flag.Int("goroutines", 200, "concurrent readers")
		opsPerG     = flag.Int("ops", 5000, "reads per goroutine")
		writeEvery  = flag.Int("write-every", 10, "one put per this many reads (0 disables writes)")
	)
	flag.Parse()

	ctx := context.Background()

	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")

	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", *shards)
	fmt.Println("Preload Keys :", humanize.Comma(int64(*preloadKeys)))
	fmt.Println("Goroutines   :", *goroutines)
	fmt.Println("Ops/Goroutine:", humanize.Comma(int64(*opsPerG)))
	fmt.Println("Write Every  :", *writeEvery)
	fmt.Println("---------------------------------")

	// ---------------- Backing Store ----------------
	store := NewInMemoryStore()

	// ---------------- Cache ----------------
	m := cache.NewManager(cache.WithLogger(log.New(io.Discard)))
	defer m.Close()

	c, err := cache.CreateCache(m, "benchmark", cache.Config[string, int]{
		ReadThrough:       true,
		WriteThrough:      true,
		Loader:            store,
		Writer:            types.WriterFuncs[string, int]{WriteFunc: store.Write},
		Expiry:            expiration.AfterAccess{TTL: 60 * time.Second},
		StatisticsEnabled: true,
		Shards:            *shards,
	})
	if err != nil {
		log.Fatal("Could not create cache", "err", err)
	}

	// ---------------- Preload Cache ----------------
	fmt.Println("Preloading cache...")
	for i := 0; i < *preloadKeys; i++ {
		c.Put(ctx, fmt.Sprintf("key-%d", i), i)
	}
	fmt.Println("Preload complete.")

	// ---------------- Warmup ----------------
	fmt.Println("Warming up cache...")
	for i := 0; i < 10000; i++ {
		c.Get(ctx, fmt.Sprintf("key-%d", i%*preloadKeys))
	}
	c.ResetStatistics()
	fmt.Println("Warmup complete.")

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(*goroutines)

	for i := 0; i < *goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < *opsPerG; j++ {
				key := fmt.Sprintf("key-%d", (id*(*opsPerG)+j)%*preloadKeys)
				if *writeEvery > 0 && j%*writeEvery == 0 {
					c.Put(ctx, key, j)
					continue
				}
				c.Get(ctx, key)
			}
		}(i)
	}

	wg.Wait()

	duration := time.Since(start)
	totalOps := *goroutines * *opsPerG
	s := c.Statistics()

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %s\n", humanize.Comma(int64(totalOps)))
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %s ops/sec\n", humanize.Commaf(float64(totalOps)/duration.Seconds()))
	fmt.Printf("Hit Ratio        : %.2f%%\n", s.HitRatio()*100)
	fmt.Printf("Avg Get Time     : %v\n", s.AverageGetTime())
	fmt.Printf("Avg Put Time     : %v\n", s.AveragePutTime())
	fmt.Println("=========================================")
}
