// Package books is a small GORM-backed entity store with a second-level cache in front of it.
package books

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/types"
)

// --- MODEL ---

type Book struct {
	ID        uint   `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b Book) String() string {
	return fmt.Sprintf("Book{id=%d, title=%q}", b.ID, b.Title)
}

// Open connects to a SQLite database and migrates the schema.
// Use "file:<name>?mode=memory&cache=shared" for a throwaway database.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("books: open %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Book{}); err != nil {
		return nil, fmt.Errorf("books: migrate: %w", err)
	}
	return db, nil
}

// --- REPOSITORY ---

/*
Repository talks to the database. It is the cache's Loader (with batch loading)
and its Writer, so the cache can sit between callers and the table.
*/
type Repository struct {
	db *gorm.DB

	// selects counts read round trips, to show what the cache saves.
	selects atomic.Int64
}

var (
	_ types.BatchLoader[uint, Book] = (*Repository)(nil)
	_ types.Writer[uint, Book]      = (*Repository)(nil)
)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new book and returns it with its generated ID.
func (r *Repository) Create(ctx context.Context, title string) (Book, error) {
	b := Book{Title: title}
	if err := r.db.WithContext(ctx).Create(&b).Error; err != nil {
		return Book{}, err
	}
	return b, nil
}

func (r *Repository) Load(ctx context.Context, id uint) (Book, error) {
	r.selects.Add(1)
	var b Book
	err := r.db.WithContext(ctx).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Book{}, types.ErrNotFound
	}
	return b, err
}

func (r *Repository) LoadAll(ctx context.Context, ids []uint) (map[uint]Book, error) {
	r.selects.Add(1)
	var found []Book
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]Book, len(found))
	for _, b := range found {
		out[b.ID] = b
	}
	return out, nil
}

// Write upserts b under id.
func (r *Repository) Write(ctx context.Context, id uint, b Book) error {
	b.ID = id
	return r.db.WithContext(ctx).Save(&b).Error
}

// WriteAll upserts every book in one transaction. Either all are written or none.
func (r *Repository) WriteAll(ctx context.Context, books map[uint]Book) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, b := range books {
			b.ID = id
			if err := tx.Save(&b).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&Book{}, id).Error
}

func (r *Repository) DeleteAll(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&Book{}, ids).Error
}

// Selects returns how many read queries reached the database.
func (r *Repository) Selects() int64 { return r.selects.Load() }

// --- SECOND-LEVEL CACHE ---

/*
CachedRepository puts a read-through, write-through cache in front of a Repository.
Finds hit the database once per book until the entry expires or is evicted.
*/
type CachedRepository struct {
	repo  *Repository
	cache *cache.Cache[uint, Book]
}

// NewCachedRepository creates the "books" cache in m. Loader and writer settings in cfg are
// replaced by repo; expiry, statistics and listeners are kept.
func NewCachedRepository(m *cache.Manager, repo *Repository, cfg cache.Config[uint, Book]) (*CachedRepository, error) {
	cfg.ReadThrough = true
	cfg.Loader = repo
	cfg.WriteThrough = true
	cfg.Writer = repo

	c, err := cache.CreateCache(m, "books", cfg)
	if err != nil {
		return nil, err
	}
	return &CachedRepository{repo: repo, cache: c}, nil
}

func (r *CachedRepository) Cache() *cache.Cache[uint, Book] { return r.cache }

// Create persists a new book. It is cached on first Find, not here.
func (r *CachedRepository) Create(ctx context.Context, title string) (Book, error) {
	return r.repo.Create(ctx, title)
}

// Find returns the book with id, or types.ErrNotFound.
func (r *CachedRepository) Find(ctx context.Context, id uint) (Book, error) {
	b, ok, err := r.cache.Get(ctx, id)
	if err != nil {
		return Book{}, err
	}
	if !ok {
		return Book{}, types.ErrNotFound
	}
	return b, nil
}

func (r *CachedRepository) FindAll(ctx context.Context, ids []uint) (map[uint]Book, error) {
	return r.cache.GetAll(ctx, ids)
}

// Save writes b to the database and then to the cache.
func (r *CachedRepository) Save(ctx context.Context, b Book) error {
	return r.cache.Put(ctx, b.ID, b)
}

func (r *CachedRepository) Delete(ctx context.Context, id uint) error {
	_, err := r.cache.Remove(ctx, id)
	return err
}

// Evict drops id from the cache only. The next Find goes to the database.
func (r *CachedRepository) Evict(id uint) bool {
	return r.cache.Invalidate(id)
}
