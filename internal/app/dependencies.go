package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/stanislavgolubev/rbs/internal/cache"
	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/storage/memory"
	"github.com/stanislavgolubev/rbs/internal/storage/postgres"
)

// runtimeDependencies содержит инфраструктурные зависимости приложения,
// собранные согласно выбранному storage driver.
type runtimeDependencies struct {
	store        domain.BookingStore
	outboxRepo   domain.OutboxRepository
	timelineRepo domain.TimelineRepository
	cache        cache.KeyedStore

	closers []func() error
}

// close освобождает ресурсы в обратном порядке инициализации.
func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
}

// initRuntimeDependencies собирает хранилище, outbox, timeline и кэш.
// Redis опционален: при недоступном сервере приложение работает без
// кэша и с пропускающим rate limiter.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		outboxRepo := memory.NewOutboxRepository()
		deps.store = memory.NewBookingStore(outboxRepo)
		deps.outboxRepo = outboxRepo
		deps.timelineRepo = memory.NewTimelineRepository()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires RBS_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				deps.close(logger)
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}

		deps.store = postgres.NewBookingStore(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.timelineRepo = postgres.NewTimelineRepository(store)
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing without cache")
		} else {
			deps.cache = redisStore
			deps.closers = append(deps.closers, redisStore.Close)
		}
	}

	return deps, nil
}
