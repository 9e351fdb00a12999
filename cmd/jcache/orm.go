package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/internal/books"
)

var ormDSN string

var ormCmd = &cobra.Command{
	Use:   "orm",
	Short: "Second-level entity cache in front of a SQLite table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := books.Open(ormDSN)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		repo := books.NewRepository(db)
		cfg := cache.Config[uint, books.Book]{StatisticsEnabled: true}
		if spec, ok := fileCfg.Cache("books"); ok {
			cfg.Expiry = spec.Expiry.Policy()
			cfg.StatisticsEnabled = spec.Statistics
		}
		cached, err := books.NewCachedRepository(manager, repo, cfg)
		if err != nil {
			return err
		}

		banner("1) PERSIST")
		b, err := cached.Create(ctx, "Hibernate Programmatic Cache")
		if err != nil {
			return err
		}
		fmt.Println("DB     → inserted", b)

		banner("2) FIRST FIND HITS THE DATABASE")
		b1, err := cached.Find(ctx, b.ID)
		if err != nil {
			return err
		}
		fmt.Printf("CACHE  → %v (db reads: %d)\n", b1, repo.Selects())

		banner("3) SECOND FIND HITS THE CACHE")
		b2, _ := cached.Find(ctx, b.ID)
		fmt.Printf("CACHE  → %v (db reads: %d)\n", b2, repo.Selects())

		banner("4) EVICT, THEN FIND AGAIN")
		cached.Evict(b.ID)
		b3, _ := cached.Find(ctx, b.ID)
		fmt.Printf("CACHE  → %v (db reads: %d)\n", b3, repo.Selects())

		printStats("books", cached.Cache().Statistics())
		return nil
	},
}

func init() {
	ormCmd.Flags().StringVar(&ormDSN, "dsn", "file:jcache?mode=memory&cache=shared", "SQLite data source")
}
