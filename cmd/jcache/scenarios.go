package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/expiration"
	"github.com/krisalay/cache-facade/listener"
	"github.com/krisalay/cache-facade/stats"
	"github.com/krisalay/cache-facade/types"
)

// ================= BASIC =================

var basicCmd = &cobra.Command{
	Use:   "basic",
	Short: "Put, iterate, get and remove on a plain cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newCache("basicCache", cache.Config[string, string]{})
		if err != nil {
			return err
		}

		banner("1) PUT")
		if err := c.Put(ctx, "key1", "value1"); err != nil {
			return err
		}
		printEntries(c)

		banner("2) GET")
		v, ok, err := c.Get(ctx, "key1")
		if err != nil {
			return err
		}
		fmt.Printf("CACHE  → GET key1 = %q (found: %v)\n", v, ok)

		banner("3) REMOVE")
		removed, err := c.Remove(ctx, "key1")
		if err != nil {
			return err
		}
		fmt.Println("CACHE  → REMOVE key1 =", removed)
		printEntries(c)
		return nil
	},
}

func printEntries[K comparable, V any](c *cache.Cache[K, V]) {
	n := 0
	for k, v := range c.All() {
		fmt.Printf("ENTRY  → %v = %v\n", k, v)
		n++
	}
	if n == 0 {
		fmt.Println("ENTRY  → (empty)")
	}
}

// ================= LOADER =================

var loaderCmd = &cobra.Command{
	Use:   "loader",
	Short: "Read-through: misses are loaded by the cache itself",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var loads atomic.Int32
		c, err := newCache("loaderCache", cache.Config[string, string]{
			ReadThrough:       true,
			StatisticsEnabled: true,
			Loader: types.LoaderFunc[string, string](func(ctx context.Context, key string) (string, error) {
				loads.Add(1)
				fmt.Println("STORE  → load:", key)
				return "Value for " + key, nil
			}),
		})
		if err != nil {
			return err
		}

		banner("1) CACHE MISS")
		v, _, err := c.Get(ctx, "key1")
		if err != nil {
			return err
		}
		fmt.Println("CACHE  → GET key1 =", v)

		banner("2) CACHE HIT")
		v, _, _ = c.Get(ctx, "key1")
		fmt.Println("CACHE  → GET key1 =", v)

		banner("3) GET ALL")
		all, err := c.GetAll(ctx, []string{"key1", "key2", "key3"})
		if err != nil {
			return err
		}
		for _, k := range []string{"key1", "key2", "key3"} {
			fmt.Printf("CACHE  → %s = %s\n", k, all[k])
		}

		fmt.Println("\nloader calls:", loads.Load())
		printStats(c.Name(), c.Statistics())
		return nil
	},
}

// ================= WRITER =================

type Book struct {
	Title  string
	Author string
}

type bookWriter struct {
	mu     sync.Mutex
	writes int
}

func (w *bookWriter) Write(ctx context.Context, id int, b Book) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	fmt.Printf("STORE  → write: %d = %+v\n", id, b)
	return nil
}

func (w *bookWriter) WriteAll(ctx context.Context, books map[int]Book) error {
	for id, b := range books {
		w.Write(ctx, id, b)
	}
	return nil
}

func (w *bookWriter) Delete(ctx context.Context, id int) error {
	fmt.Printf("STORE  → delete: %d\n", id)
	return nil
}

func (w *bookWriter) DeleteAll(ctx context.Context, ids []int) error {
	for _, id := range ids {
		w.Delete(ctx, id)
	}
	return nil
}

var writerCmd = &cobra.Command{
	Use:   "writer",
	Short: "Write-through: every put and remove reaches the backing store first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w := &bookWriter{}
		c, err := newCache("bookCache", cache.Config[int, Book]{
			WriteThrough: true,
			Writer:       w,
			Listeners:    []cache.ListenerConfig[int, Book]{{Listener: printListener[int, Book]()}},
		})
		if err != nil {
			return err
		}

		banner("1) PUT")
		if err := c.Put(ctx, 1, Book{Title: "Effective Java", Author: "Bloch"}); err != nil {
			return err
		}

		banner("2) UPDATE")
		if err := c.Put(ctx, 1, Book{Title: "Effective Java, 3rd Edition", Author: "Bloch"}); err != nil {
			return err
		}

		banner("3) REMOVE")
		if _, err := c.Remove(ctx, 1); err != nil {
			return err
		}

		fmt.Println("\nwriter calls:", w.writes)
		return nil
	},
}

// ================= EXPIRY =================

var expiryCmd = &cobra.Command{
	Use:   "expiry",
	Short: "Created-expiry of 60s on a simulated clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		clock := types.NewManualClock(time.Now())
		c, err := newCache("expiryCache", cache.Config[string, string]{
			Expiry:    expiration.AfterCreate{TTL: time.Minute},
			Clock:     clock,
			Listeners: []cache.ListenerConfig[string, string]{{Listener: printListener[string, string]()}},
		})
		if err != nil {
			return err
		}

		banner("1) PUT")
		c.Put(ctx, "k", "v")
		written := clock.Now()

		banner("2) GET RIGHT AWAY")
		v, ok, _ := c.Get(ctx, "k")
		fmt.Printf("CACHE  → GET k = %q (found: %v)\n", v, ok)

		banner("3) GET AFTER 61s")
		clock.Advance(61 * time.Second)
		fmt.Println("CLOCK  → entry written", humanize.RelTime(written, clock.Now(), "ago", "from now"))
		v, ok, _ = c.Get(ctx, "k")
		fmt.Printf("CACHE  → GET k = %q (found: %v)\n", v, ok)
		return nil
	},
}

// ================= LISTENER =================

func printListener[K comparable, V any]() listener.Listener[K, V] {
	return listener.Func[K, V](func(ev types.Event[K, V]) error {
		switch ev.Type {
		case types.Created:
			fmt.Printf("EVENT  → created %v = %v\n", ev.Key, ev.Value)
		case types.Updated:
			fmt.Printf("EVENT  → updated %v: %v → %v\n", ev.Key, ev.OldValue, ev.Value)
		case types.Removed:
			fmt.Printf("EVENT  → removed %v (was %v)\n", ev.Key, ev.Value)
		case types.Expired:
			fmt.Printf("EVENT  → expired %v (was %v)\n", ev.Key, ev.Value)
		}
		return nil
	})
}

var listenerCmd = &cobra.Command{
	Use:   "listener",
	Short: "Created, updated and removed events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newCache("listenerCache", cache.Config[string, string]{
			Listeners: []cache.ListenerConfig[string, string]{{Listener: printListener[string, string]()}},
		})
		if err != nil {
			return err
		}

		banner("1) PUT 15 KEYS")
		for i := 0; i < 15; i++ {
			c.Put(ctx, fmt.Sprintf("key%d", i), fmt.Sprintf("value%d", i))
		}

		banner("2) UPDATE 5 RANDOM KEYS")
		for i := 0; i < 5; i++ {
			key := fmt.Sprintf("key%d", rand.IntN(15))
			v, _, _ := c.Get(ctx, key)
			c.Put(ctx, key, v+"-updated")
		}

		banner("3) REMOVE key1")
		c.Remove(ctx, "key1")
		return nil
	},
}

// ================= STATISTICS =================

var statisticsCmd = &cobra.Command{
	Use:   "statistics",
	Short: "Hit, miss, put and latency counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newCache("statisticsCache", cache.Config[string, string]{
			ReadThrough:       true,
			StatisticsEnabled: true,
			Loader: types.LoaderFunc[string, string](func(ctx context.Context, key string) (string, error) {
				return "Value for " + key, nil
			}),
		})
		if err != nil {
			return err
		}

		c.Put(ctx, "key1", "value1")
		c.Put(ctx, "key2", "value2")
		printEntries(c)

		for i := 0; i < 10; i++ {
			c.Get(ctx, fmt.Sprintf("key%d", i%4))
		}
		c.Remove(ctx, "key2")

		s, _ := manager.Statistics(c.Name())
		printStats(c.Name(), s)
		return nil
	},
}

func printStats(name string, s stats.Snapshot) {
	banner("STATISTICS " + name)
	fmt.Printf("Cache Hits        : %s\n", humanize.Comma(s.Hits))
	fmt.Printf("Cache Misses      : %s\n", humanize.Comma(s.Misses))
	fmt.Printf("Cache Gets        : %s\n", humanize.Comma(s.Gets()))
	fmt.Printf("Cache Puts        : %s\n", humanize.Comma(s.Puts))
	fmt.Printf("Cache Removals    : %s\n", humanize.Comma(s.Removals))
	fmt.Printf("Cache Expirations : %s\n", humanize.Comma(s.Expirations))
	fmt.Printf("Hit Ratio         : %s%%\n", humanize.FormatFloat("#.##", s.HitRatio()*100))
	fmt.Printf("Avg Get Time      : %v\n", s.AverageGetTime())
	fmt.Printf("Avg Put Time      : %v\n", s.AveragePutTime())
	fmt.Printf("Avg Remove Time   : %v\n", s.AverageRemoveTime())
}

// ================= EXTERNAL SERVICE =================

var externalLatency time.Duration

var externalCmd = &cobra.Command{
	Use:   "external",
	Short: "Read-through in front of a slow weather service, with a one minute expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		clock := types.NewManualClock(time.Now())
		var calls atomic.Int32

		c, err := newCache("weatherCache", cache.Config[string, string]{
			ReadThrough:       true,
			StatisticsEnabled: true,
			Expiry:            expiration.AfterCreate{TTL: time.Minute},
			Clock:             clock,
			Loader: types.LoaderFunc[string, string](func(ctx context.Context, city string) (string, error) {
				calls.Add(1)
				fmt.Printf("SERVICE → fetching weather for %s ...\n", city)
				select {
				case <-time.After(externalLatency):
				case <-ctx.Done():
					return "", ctx.Err()
				}
				return fmt.Sprintf("Weather in %s is SUNNY", city), nil
			}),
		})
		if err != nil {
			return err
		}

		banner("1) FIRST CALL GOES TO THE SERVICE")
		if err := timedGet(ctx, c, "Paris"); err != nil {
			return err
		}

		banner("2) SECOND CALL IS SERVED FROM CACHE")
		timedGet(ctx, c, "Paris")

		banner("3) FIVE CONCURRENT CALLERS, ONE FETCH")
		wg := sync.WaitGroup{}
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				v, _, _ := c.Get(ctx, "London")
				fmt.Printf("GOROUTINE-%d → %s\n", id, v)
			}(i)
		}
		wg.Wait()

		banner("4) AFTER 65s THE ENTRY HAS EXPIRED")
		clock.Advance(65 * time.Second)
		timedGet(ctx, c, "Paris")

		fmt.Println("\nservice calls:", calls.Load())
		printStats(c.Name(), c.Statistics())
		return nil
	},
}

func timedGet(ctx context.Context, c *cache.Cache[string, string], key string) error {
	start := time.Now()
	v, _, err := c.Get(ctx, key)
	if err != nil {
		var le *cache.LoadError
		if errors.As(err, &le) {
			fmt.Println("CACHE  → load failed for", le.Keys)
		}
		return err
	}
	fmt.Printf("CACHE  → %s (%v)\n", v, time.Since(start).Round(time.Millisecond))
	return nil
}

// ================= MEMOIZE =================

var memoizeCmd = &cobra.Command{
	Use:   "memoize",
	Short: "Wrap an expensive function so each argument is computed once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newCache("serviceCache", cache.Config[int, string]{StatisticsEnabled: true})
		if err != nil {
			return err
		}

		compute := cache.Memoize(c, func(ctx context.Context, n int) (string, error) {
			fmt.Println("SERVICE → computing", n)
			time.Sleep(50 * time.Millisecond)
			return fmt.Sprintf("result-%d", n*n), nil
		})

		for _, n := range []int{3, 4, 3, 3, 4} {
			v, err := compute(ctx, n)
			if err != nil {
				return err
			}
			fmt.Printf("CALLER → compute(%d) = %s\n", n, v)
		}

		printStats(c.Name(), c.Statistics())
		return nil
	},
}

func init() {
	externalCmd.Flags().DurationVar(&externalLatency, "latency", 500*time.Millisecond, "simulated service latency")
}
