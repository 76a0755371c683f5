// Package cache предоставляет key-value хранилище с TTL для кэширования
// ответов и распределённого rate limiting. Основная реализация — Redis,
// in-memory вариант используется в тестах и при локальной разработке.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable возвращается, когда backend кэша недоступен.
// Вызывающий код должен деградировать без кэша, а не падать.
var ErrUnavailable = errors.New("cache backend unavailable")

// KeyedStore описывает минимальный контракт кэша по ключу.
type KeyedStore interface {
	// Get возвращает значение и признак наличия ключа.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set сохраняет значение с TTL. Нулевой TTL означает «без истечения».
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete удаляет ключ. Отсутствие ключа не считается ошибкой.
	Delete(ctx context.Context, key string) error
	// IncrWindow атомарно увеличивает счётчик в пределах фиксированного
	// окна и возвращает новое значение. Первый инкремент задаёт TTL окна.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}
