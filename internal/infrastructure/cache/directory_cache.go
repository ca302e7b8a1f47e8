package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
)

// DefaultTTL applies when the configured TTL is not positive
const DefaultTTL = 5 * time.Minute

// DirectoryCache is a read-through cache in front of a DirectoryReader.
// Only records that exist are cached; a miss always reaches the underlying reader.
// Reads made inside a write transaction bypass the cache and refresh the entry,
// so status and role checks that guard a write never see a stale record.
type DirectoryCache struct {
	inner  port.DirectoryReader
	store  *gocache.Cache
	logger *zap.Logger
}

// NewDirectoryCache wraps inner with a cache whose entries live for ttl
func NewDirectoryCache(inner port.DirectoryReader, ttl time.Duration, logger *zap.Logger) *DirectoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DirectoryCache{
		inner:  inner,
		store:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// GetUserByID implements port.DirectoryReader
func (c *DirectoryCache) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	return readThrough(ctx, c, fmt.Sprintf("user:%d", id), func() (*entity.User, error) {
		return c.inner.GetUserByID(ctx, id)
	})
}

// GetDeptByID implements port.DirectoryReader
func (c *DirectoryCache) GetDeptByID(ctx context.Context, id int64) (*entity.Dept, error) {
	return readThrough(ctx, c, fmt.Sprintf("dept:%d", id), func() (*entity.Dept, error) {
		return c.inner.GetDeptByID(ctx, id)
	})
}

// GetPostByID implements port.DirectoryReader
func (c *DirectoryCache) GetPostByID(ctx context.Context, id int64) (*entity.Post, error) {
	return readThrough(ctx, c, fmt.Sprintf("post:%d", id), func() (*entity.Post, error) {
		return c.inner.GetPostByID(ctx, id)
	})
}

// FindUserByRole implements port.DirectoryReader
func (c *DirectoryCache) FindUserByRole(ctx context.Context, roleCode string) (*entity.User, error) {
	return readThrough(ctx, c, "role:"+roleCode, func() (*entity.User, error) {
		return c.inner.FindUserByRole(ctx, roleCode)
	})
}

// Flush drops every cached entry
func (c *DirectoryCache) Flush() {
	c.store.Flush()
	c.logger.Info("Directory cache flushed")
}

// ItemCount returns the number of cached entries, including expired ones not yet evicted
func (c *DirectoryCache) ItemCount() int {
	return c.store.ItemCount()
}

func readThrough[T any](ctx context.Context, c *DirectoryCache, key string, load func() (*T, error)) (*T, error) {
	fresh := sqlite.InTransaction(ctx)
	if !fresh {
		if cached, found := c.store.Get(key); found {
			if record, ok := cached.(*T); ok {
				return record, nil
			}
		}
	}

	record, err := load()
	if err != nil {
		c.logger.Error("Failed to load directory record", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	switch {
	case record != nil:
		c.store.SetDefault(key, record)
	case fresh:
		c.store.Delete(key)
	}
	return record, nil
}
