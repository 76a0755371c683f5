// Package app собирает приложение из хранилища, сервисов, HTTP API,
// Kafka и outbox-воркера и управляет их жизненным циклом.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/stanislavgolubev/rbs/internal/health"
	"github.com/stanislavgolubev/rbs/internal/messaging/kafka"
	"github.com/stanislavgolubev/rbs/internal/service/booking"
	"github.com/stanislavgolubev/rbs/internal/service/orders"
	"github.com/stanislavgolubev/rbs/internal/service/outbox"
	"github.com/stanislavgolubev/rbs/internal/service/tables"
	"github.com/stanislavgolubev/rbs/internal/transport/rest"
	"github.com/stanislavgolubev/rbs/internal/version"
)

// Run запускает приложение и блокируется до отмены контекста или
// фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	// Kafka опционален: без брокеров события копятся в outbox,
	// воркер не запускается.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	var workerDone chan struct{}
	if kafkaProducer != nil {
		worker := outbox.NewWorker(
			deps.outboxRepo,
			kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicReservationEvents),
			outbox.WithLogger(logger.WithField("component", "outbox_worker")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(kafkaProducer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			worker.Run(workerCtx)
		}()
	}

	bookingSvc := booking.NewService(deps.store, deps.timelineRepo, cfg.SeatingBuffer, logger.WithField("layer", "booking"))
	orderSvc := orders.NewService(deps.store, deps.timelineRepo, logger.WithField("layer", "orders"))
	tableSvc := tables.NewService(deps.store, logger.WithField("layer", "tables"))

	api := rest.NewServer(bookingSvc, orderSvc, tableSvc, deps.cache, logger.WithField("layer", "rest"))
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.Register(e, rest.RateLimitConfig{
		Limit:  cfg.RateLimitPerMinute,
		Window: time.Minute,
	})

	healthHandler := healthcheck.NewHandler(version.String())
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- e.Start(cfg.HTTPAddr)
	}()

	stopServers := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("api shutdown with error")
		}

		stopWorker()
		if workerDone != nil {
			select {
			case <-workerDone:
			case <-time.After(5 * time.Second):
				logger.Warn("outbox worker не остановился за отведённое время")
			}
		}
		shutdownHTTP(metricsSrv, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		stopServers()
		return ctx.Err()
	case err := <-errCh:
		stopServers()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
