// Command jcache walks through the cache facade one feature at a time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/config"
)

var (
	configFile string
	logLevel   string

	logger  *log.Logger
	manager *cache.Manager
	fileCfg = &config.File{}
	envCfg  config.Env
)

var rootCmd = &cobra.Command{
	Use:   "jcache",
	Short: "Read-through, write-through, expiry, listener and statistics examples",
	Long: `jcache runs small, self-contained programs against the cache facade.
Each subcommand shows one feature and prints what the cache and its backing
store did. Cache settings can be overridden per name from a config file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return manager.Close()
	},
}

func setup(cmd *cobra.Command, args []string) error {
	e, err := config.FromEnv()
	if err != nil {
		return err
	}
	envCfg = e

	if !cmd.Flags().Changed("log-level") {
		logLevel = e.LogLevel
	}
	lvl, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})

	path := configFile
	if path == "" {
		path = e.ConfigPath
	}
	if path != "" {
		f, err := config.Load(path)
		if err != nil {
			return err
		}
		fileCfg = f
		logger.Debug("Using configuration file", "path", path, "caches", len(f.Caches))
	}

	manager = cache.NewManager(cache.WithLogger(logger))
	return nil
}

// newCache creates name in the shared manager, applying the config file's settings for it when present.
func newCache[K comparable, V any](name string, cfg cache.Config[K, V]) (*cache.Cache[K, V], error) {
	if spec, ok := fileCfg.Cache(name); ok {
		cfg = config.Apply(spec, cfg)
	}
	if cfg.Shards == 0 {
		cfg.Shards = envCfg.Shards
	}
	return cache.CreateCache(manager, name, cfg)
}

func banner(title string) {
	fmt.Printf("\n==================== %s ====================\n", title)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "cache config file (YAML, TOML or JSON); $JCACHE_CONFIG")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error); $JCACHE_LOG_LEVEL")

	rootCmd.AddCommand(
		basicCmd,
		loaderCmd,
		writerCmd,
		expiryCmd,
		listenerCmd,
		statisticsCmd,
		externalCmd,
		memoizeCmd,
		ormCmd,
		serveMetricsCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
