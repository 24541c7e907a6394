// cache хранит в Redis "надгробия" изъятых refresh-токенов.
//
// При ротации/логауте хэш секрета помечается на остаток его TTL; повторное
// предъявление того же секрета отбивается без похода в Postgres. Кэш не
// авторитетен: промах означает лишь «спросить БД», попадание — только отказ.
// Ложное принятие невозможно, принятие всегда идёт через атомарное изъятие
// записи в хранилище.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationCache — минимальный контракт кэша изъятых refresh-токенов.
type RevocationCache interface {
	// MarkConsumed помечает хэш изъятым на ttl (обычно ExpiresAt-now).
	MarkConsumed(ctx context.Context, hash string, ttl time.Duration) error
	// IsConsumed сообщает, известен ли хэш как изъятый.
	IsConsumed(ctx context.Context, hash string) (bool, error)
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:rt:consumed:".
func NewRedisCache(redisURL, prefix string) (RevocationCache, error) {
	if prefix == "" {
		prefix = "auth:rt:consumed:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

func (c *redisCache) MarkConsumed(ctx context.Context, hash string, ttl time.Duration) error {
	if ttl <= 0 {
		// Просроченный токен и так не пройдёт логическую проверку в БД.
		return nil
	}

	return c.rdb.Set(ctx, c.key(hash), "1", ttl).Err()
}

func (c *redisCache) IsConsumed(ctx context.Context, hash string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(hash)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (c *redisCache) Close() error { return c.rdb.Close() }
