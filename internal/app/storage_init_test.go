package app

import (
	"context"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	if deps.store == nil {
		t.Fatal("store should not be nil for memory storage")
	}
	if deps.outboxRepo == nil {
		t.Fatal("outboxRepo should not be nil for memory storage")
	}
	if deps.timelineRepo == nil {
		t.Fatal("timelineRepo should not be nil for memory storage")
	}
	// Кэш без Redis не создаётся, HTTP-слой работает и без него.
	if deps.cache != nil {
		t.Fatal("cache should be nil without redis addr")
	}
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "etcd",
	}, log.WithField("test", "bad-driver"))
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestInitRuntimeDependencies_RedisUnavailableDegrades(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
		RedisAddr:     "127.0.0.1:1", // заведомо закрытый порт
	}, log.WithField("test", "redis-degrade"))
	if err != nil {
		t.Fatalf("redis failure must not fail init: %v", err)
	}
	if deps.cache != nil {
		t.Fatal("cache should be nil when redis is unreachable")
	}
}
