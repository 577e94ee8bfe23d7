// cache — кэш refresh-токенов в Redis перед таблицей refresh_tokens.
package cache

//go:generate mockgen -destination=../../mocks/cache.go -package=mocks github.com/pribylovaa/go-blog/internal/cache RefreshCache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix — префикс ключей по умолчанию.
const DefaultPrefix = "blog:rt:"

// RefreshEntry — то, что храним по хэшу refresh-токена.
type RefreshEntry struct {
	UserID    uuid.UUID
	Revoked   bool
	ExpiresAt time.Time
}

// RefreshCache — контракт кэша refresh-токенов.
type RefreshCache interface {
	// Get возвращает запись и признак её наличия.
	Get(ctx context.Context, hash string) (*RefreshEntry, bool, error)
	// Set сохраняет запись с TTL (обычно ExpiresAt-now).
	Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error
	// MarkRevoked помечает существующую запись revoked=1, сохраняя остаточный TTL.
	MarkRevoked(ctx context.Context, hash string) error
}

// Connect открывает клиент Redis по URL (redis://:pass@host:6379/0) и проверяет его.
// Клиент общий для кэша и ограничителя частоты.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	const op = "cache.Connect"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rdb, nil
}

type redisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedis строит кэш поверх готового клиента; пустой prefix — DefaultPrefix.
func NewRedis(rdb redis.UniversalClient, prefix string) RefreshCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &redisCache{rdb: rdb, prefix: prefix}
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

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return nil, false, fmt.Errorf("cache: bad uid: %w", err)
	}

	expUnix, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("cache: bad exp: %w", err)
	}

	return &RefreshEntry{
		UserID:    uid,
		Revoked:   m["rev"] == "1",
		ExpiresAt: time.Unix(expUnix, 0).UTC(),
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	kv := map[string]string{
		"uid": e.UserID.String(),
		"rev": boolTo01(e.Revoked),
		"exp": strconv.FormatInt(e.ExpiresAt.Unix(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(hash), kv)
	pipe.Expire(ctx, c.key(hash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// markRevoked: HSET только для существующего ключа, чтобы не оставить запись без uid и TTL.
var markRevoked = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HSET", KEYS[1], "rev", "1")
end
return 0
`)

func (c *redisCache) MarkRevoked(ctx context.Context, hash string) error {
	return markRevoked.Run(ctx, c.rdb, []string{c.key(hash)}).Err()
}

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
