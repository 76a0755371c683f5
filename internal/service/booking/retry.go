package booking

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stanislavgolubev/rbs/internal/domain"
)

// RetryConfig конфигурация повторов транзакции букинга.
// Повторяется ТОЛЬКО конфликт сериализации: доменные отказы терминальны,
// их повтор исход не изменит.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// runSerializable выполняет fn в SERIALIZABLE-транзакции с retry логикой.
// После исчерпания попыток возвращается ErrBookingConflict.
func (s *Service) runSerializable(ctx context.Context, operation string, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	delay := s.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		start := time.Now()
		err := s.store.Serializable(ctx, fn)
		if s.metrics != nil {
			s.metrics.RecordTxDuration(operation, time.Since(start))
		}

		if err == nil {
			if attempt > 1 {
				s.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("booking transaction succeeded after retry")
			}
			return nil
		}

		// Доменные отказы и прочие ошибки пробрасываем сразу.
		if !domain.IsSerializationFailure(err) {
			return err
		}
		lastErr = err

		if attempt < s.retry.MaxAttempts {
			if s.metrics != nil {
				s.metrics.RecordSerializationRetry()
			}
			s.logger.WithFields(log.Fields{
				"operation": operation,
				"attempt":   attempt,
				"delay":     delay,
			}).Warn("serialization conflict, retrying booking transaction")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			// Экспоненциальная задержка с ограничением
			delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
			if delay > s.retry.MaxDelay {
				delay = s.retry.MaxDelay
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordBookingConflict()
	}
	s.logger.WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": s.retry.MaxAttempts,
		"error":        lastErr,
	}).Error("booking transaction failed after all retry attempts")

	return fmt.Errorf("%w: %w", domain.ErrBookingConflict, lastErr)
}
