package feeds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/phillip-england/staffplan/internal/store"
)

var ErrCacheMiss = errors.New("feed cache miss")

// Cache keeps the last good payload of each feed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, time.Time, error)
	Put(ctx context.Context, key string, payload []byte) error
}

const cachePrefix = "staffplan:feed:"

type redisEntry struct {
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// RedisCache stores feed snapshots in Redis without expiry; a snapshot is
// only replaced by a newer successful fetch.
type RedisCache struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewRedisCache connects to addr and pings it before returning.
func NewRedisCache(addr string, logger *zap.Logger) (*RedisCache, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connect redis")
	}

	logger.Info("redis feed cache connected", zap.String("addr", addr))

	return &RedisCache{rdb: rdb, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	raw, err := c.rdb.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "redis get")
	}
	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "decode cached feed")
	}
	return entry.Payload, entry.FetchedAt, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, payload []byte) error {
	raw, err := json.Marshal(redisEntry{Payload: payload, FetchedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cachePrefix+key, raw, 0).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// StoreCache keeps snapshots in the sqlite store when Redis is not
// configured.
type StoreCache struct {
	store *store.Store
}

func NewStoreCache(s *store.Store) *StoreCache {
	return &StoreCache{store: s}
}

func (c *StoreCache) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	payload, at, err := c.store.Snapshot(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, time.Time{}, ErrCacheMiss
	}
	return payload, at, err
}

func (c *StoreCache) Put(ctx context.Context, key string, payload []byte) error {
	return c.store.PutSnapshot(ctx, key, payload)
}
