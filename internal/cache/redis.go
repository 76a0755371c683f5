package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisStore реализует KeyedStore поверх Redis.
type RedisStore struct {
	client *redis.Client
	logger *log.Entry
}

var _ KeyedStore = (*RedisStore)(nil)

// NewRedisStore подключается к Redis и проверяет соединение через PING.
// При недоступном сервере возвращает ошибку: решение о деградации
// принимает вызывающая сторона.
func NewRedisStore(ctx context.Context, addr, password string, db int, logger *log.Entry) (*RedisStore, error) {
	if logger == nil {
		logger = log.New().WithField("component", "redis_cache")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	logger.WithField("addr", addr).Info("redis cache initialized")
	return &RedisStore{client: client, logger: logger}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrWindow использует pipeline INCR + EXPIRE NX, чтобы TTL окна
// выставлялся ровно один раз на первый инкремент.
func (s *RedisStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return incr.Val(), nil
}

// Close закрывает подключение к Redis.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
