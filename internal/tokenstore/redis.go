package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis хранит учётные данные тремя ключами под общим префиксом профиля:
// <prefix><profile>:ai_hub_access_token и т.д. Подходит для нескольких
// процессов одного пользователя на разных машинах.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "aihub:". Недоступный Redis — ошибка на старте.
func NewRedis(ctx context.Context, redisURL, prefix, profile string) (*Redis, error) {
	const op = "tokenstore/redis/NewRedis"

	if prefix == "" {
		prefix = "aihub:"
	}
	if profile == "" {
		profile = "default"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
	}

	return &Redis{rdb: rdb, prefix: prefix + profile + ":"}, nil
}

func (r *Redis) key(name string) string { return r.prefix + name }

func (r *Redis) AccessToken(ctx context.Context) (string, error) {
	return r.get(ctx, KeyAccessToken)
}

func (r *Redis) RefreshToken(ctx context.Context) (string, error) {
	return r.get(ctx, KeyRefreshToken)
}

func (r *Redis) Identity(ctx context.Context) ([]byte, error) {
	v, err := r.get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}

	return []byte(v), nil
}

// SetTokens пишет оба ключа в одной транзакции MULTI/EXEC.
func (r *Redis) SetTokens(ctx context.Context, access, refresh string) error {
	const op = "tokenstore/redis/SetTokens"

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.key(KeyAccessToken), access, 0)
	pipe.Set(ctx, r.key(KeyRefreshToken), refresh, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Redis) SetIdentity(ctx context.Context, user []byte) error {
	const op = "tokenstore/redis/SetIdentity"

	if err := r.rdb.Set(ctx, r.key(KeyUser), user, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Clear удаляет все три ключа одной командой DEL.
func (r *Redis) Clear(ctx context.Context) error {
	const op = "tokenstore/redis/Clear"

	err := r.rdb.Del(ctx, r.key(KeyAccessToken), r.key(KeyRefreshToken), r.key(KeyUser)).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает клиент Redis.
func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) get(ctx context.Context, name string) (string, error) {
	const op = "tokenstore/redis/get"

	v, err := r.rdb.Get(ctx, r.key(name)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
	case v == "":
		return "", ErrNotFound
	}

	return v, nil
}
