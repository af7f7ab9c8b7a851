package source

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/postboard/models"
)

const (
	defaultCacheTTL    = time.Hour
	defaultCachePrefix = "postboard:remote:"
	cacheOpTimeout     = 2 * time.Second
)

// Cached serves reads from a Redis snapshot of the wrapped source and fills
// the snapshot on a miss. Redis failures fall through to the wrapped source.
type Cached struct {
	next   Source
	rc     *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// NewCached wraps next. A nil client disables caching.
func NewCached(next Source, rc *redis.Client, ttl time.Duration, log *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{next: next, rc: rc, ttl: ttl, prefix: defaultCachePrefix, log: log}
}

func (c *Cached) FetchAll(ctx context.Context) ([]models.Post, error) {
	key := c.prefix + "posts"
	var posts []models.Post
	if c.getJSON(ctx, key, &posts) {
		return posts, nil
	}
	posts, err := c.next.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, key, posts)
	return posts, nil
}

func (c *Cached) FetchOne(ctx context.Context, id int) (models.Post, error) {
	key := c.prefix + "post:" + strconv.Itoa(id)
	var post models.Post
	if c.getJSON(ctx, key, &post) {
		return post, nil
	}
	post, err := c.next.FetchOne(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	c.setJSON(ctx, key, post)
	return post, nil
}

// Invalidate drops every snapshot key under the cache prefix.
func (c *Cached) Invalidate(ctx context.Context) {
	if c.rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bounded rounds
		keys, cur, err := c.rc.Scan(ctx, cursor, c.prefix+"*", 1000).Result()
		if err != nil {
			c.log.Warn("cache invalidate scan failed", zap.String("prefix", c.prefix), zap.Error(err))
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}

func (c *Cached) getJSON(ctx context.Context, key string, out any) bool {
	if c.rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		c.log.Debug("cache get miss", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		c.log.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cached) setJSON(ctx context.Context, key string, v any) {
	if c.rc == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
