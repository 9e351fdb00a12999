package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/metrics"
	"github.com/krisalay/cache-facade/types"
)

var (
	metricsAddr string
	demoTraffic bool
)

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve cache statistics in Prometheus format",
	Long: `serve-metrics creates every cache named in the config file (string keys and
values, loaded by a demo loader) and serves their statistics on /metrics.
With --demo it keeps reading random keys so the counters move.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !cmd.Flags().Changed("addr") {
			metricsAddr = envCfg.MetricsAddr
		}

		var caches []*cache.Cache[string, string]
		for _, spec := range fileCfg.Caches {
			c, err := newCache(spec.Name, cache.Config[string, string]{
				StatisticsEnabled: true,
				Loader:            demoLoader,
				Writer:            types.WriterFuncs[string, string]{},
			})
			if err != nil {
				return err
			}
			caches = append(caches, c)
		}
		if len(caches) == 0 {
			c, err := newCache("demo", cache.Config[string, string]{
				ReadThrough:       true,
				StatisticsEnabled: true,
				Loader:            demoLoader,
			})
			if err != nil {
				return err
			}
			caches = append(caches, c)
		}

		if demoTraffic {
			go generate(ctx, caches)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(metrics.NewCollector(manager, "jcache")))
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdown)
		}()

		logger.Info("Serving metrics", "addr", metricsAddr, "caches", manager.CacheNames())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var demoLoader = types.LoaderFunc[string, string](func(ctx context.Context, key string) (string, error) {
	return "Value for " + key, nil
})

func generate(ctx context.Context, caches []*cache.Cache[string, string]) {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c := caches[rand.IntN(len(caches))]
			key := fmt.Sprintf("key%d", rand.IntN(50))
			if rand.IntN(10) == 0 {
				c.Remove(ctx, key)
				continue
			}
			c.Get(ctx, key)
		}
	}
}

func init() {
	serveMetricsCmd.Flags().StringVar(&metricsAddr, "addr", ":9090", "listen address; $JCACHE_METRICS_ADDR")
	serveMetricsCmd.Flags().BoolVar(&demoTraffic, "demo", false, "generate random reads against the caches")
}
