package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshEntry — данные, хранимые по хэшу refresh-токена.
type RefreshEntry struct {
	UserID    string
	Revoked   bool
	ExpiresAt time.Time
}

// RefreshCache — контракт хранилища refresh-токенов.
type RefreshCache interface {
	// Get возвращает запись и признак её наличия.
	Get(ctx context.Context, hash string) (*RefreshEntry, bool, error)
	// Set сохраняет запись с TTL.
	Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error
	// MarkRevoked помечает запись отозванной, сохраняя остаточный TTL.
	MarkRevoked(ctx context.Context, hash string) error
	Close() error
}

// memoryCache — RefreshCache в памяти процесса; истёкшие записи
// удаляются при чтении.
type memoryCache struct {
	mu  sync.Mutex
	m   map[string]memoryEntry
	now func() time.Time
}

type memoryEntry struct {
	RefreshEntry
	deadline time.Time
}

func NewMemoryCache() RefreshCache {
	return &memoryCache{m: make(map[string]memoryEntry), now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, hash string) (*RefreshEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[hash]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(e.deadline) {
		delete(c.m, hash)
		return nil, false, nil
	}

	out := e.RefreshEntry
	return &out, true, nil
}

func (c *memoryCache) Set(_ context.Context, hash string, e *RefreshEntry, ttl time.Duration) error {
	c.mu.Lock()
	c.m[hash] = memoryEntry{RefreshEntry: *e, deadline: c.now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

func (c *memoryCache) MarkRevoked(_ context.Context, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.m[hash]; ok {
		e.Revoked = true
		c.m[hash] = e
	}

	return nil
}

func (c *memoryCache) Close() error { return nil }

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт кэш поверх Redis из URL (redis://:pass@host:6379/0).
// Пустой prefix заменяется на "aihub:refresh:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (RefreshCache, error) {
	if prefix == "" {
		prefix = "aihub:refresh:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

// Храним как Redis Hash с полями: uid, rev (0/1), exp (unix).
func (c *redisCache) Get(ctx context.Context, hash string) (*RefreshEntry, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(hash)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(m) == 0 {
		return nil, false, nil
	}

	exp, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	return &RefreshEntry{
		UserID:    m["uid"],
		Revoked:   m["rev"] == "1",
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error {
	rev := "0"
	if e.Revoked {
		rev = "1"
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(hash), map[string]string{
		"uid": e.UserID,
		"rev": rev,
		"exp": strconv.FormatInt(e.ExpiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, c.key(hash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) MarkRevoked(ctx context.Context, hash string) error {
	// HSET на отсутствующем ключе создал бы запись без TTL.
	n, err := c.rdb.Exists(ctx, c.key(hash)).Result()
	if err != nil || n == 0 {
		return err
	}

	return c.rdb.HSet(ctx, c.key(hash), "rev", "1").Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
