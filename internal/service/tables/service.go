package tables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/messaging/kafka"
	"github.com/stanislavgolubev/rbs/internal/metrics"
)

// Service управляет state machine столов. Освобождение стола защищено
// zombie-проверкой: стол с открытым или неоплаченным счётом освободить нельзя,
// и проверка выполняется той же транзакцией, что и смена статуса.
type Service struct {
	store   domain.BookingStore
	logger  *log.Entry
	metrics *metrics.BookingMetrics

	maxAttempts int
	retryDelay  time.Duration
}

// NewService создаёт рабочий экземпляр сервиса столов.
func NewService(store domain.BookingStore, logger *log.Entry) *Service {
	s := newService(store, logger)
	s.metrics = metrics.NewBookingMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(store domain.BookingStore, logger *log.Entry) *Service {
	return newService(store, logger)
}

func newService(store domain.BookingStore, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "tables")
	}
	return &Service{
		store:       store,
		logger:      logger,
		maxAttempts: 3,
		retryDelay:  100 * time.Millisecond,
	}
}

// SetStatus переводит стол в запрошенный статус. Неизвестный статус —
// ошибка валидации; недопустимый переход — отказ state machine без
// изменения состояния.
func (s *Service) SetStatus(ctx context.Context, tableID, status string) (domain.Table, error) {
	target, err := domain.ParseTableStatus(status)
	if err != nil {
		return domain.Table{}, err
	}

	var result domain.Table
	err = s.runSerializable(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		table, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}

		// Zombie guard: освобождение стола с незакрытым счётом запрещено.
		if target == domain.TableStatusFree {
			blocking, err := tx.BlockingOrderExists(ctx, tableID)
			if err != nil {
				return err
			}
			if blocking {
				return domain.ErrActiveOrderExists
			}
		}

		if err := table.Transition(target); err != nil {
			return err
		}
		if err := tx.SaveTable(ctx, table); err != nil {
			return err
		}

		payload, err := json.Marshal(kafka.TableEvent{
			EventType: kafka.EventTypeTableStatusChanged,
			TableID:   table.ID,
			Status:    string(table.Status),
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := tx.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: kafka.AggregateTable,
			AggregateID:   table.ID,
			EventType:     string(kafka.EventTypeTableStatusChanged),
			Payload:       payload,
		}); err != nil {
			return err
		}

		table.Version++
		result = table
		return nil
	})
	if err != nil {
		if s.metrics != nil && errors.Is(err, domain.ErrActiveOrderExists) {
			s.metrics.RecordZombieFreeBlocked()
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"table_id": tableID,
			"target":   target,
		}).Warn("table status change rejected")
		return domain.Table{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordTableTransition(string(target))
	}
	s.logger.WithFields(log.Fields{
		"table_id": result.ID,
		"status":   result.Status,
	}).Info("table status changed")

	return result, nil
}

// Get возвращает стол по идентификатору.
func (s *Service) Get(ctx context.Context, tableID string) (domain.Table, error) {
	var result domain.Table
	err := s.store.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		table, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		result = table
		return nil
	})
	if err != nil {
		return domain.Table{}, err
	}
	return result, nil
}

func (s *Service) runSerializable(ctx context.Context, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.store.Serializable(ctx, fn)
		if err == nil {
			return nil
		}
		if !domain.IsSerializationFailure(err) {
			return err
		}
		lastErr = err

		if attempt < s.maxAttempts {
			if s.metrics != nil {
				s.metrics.RecordSerializationRetry()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			}
		}
	}
	if s.metrics != nil {
		s.metrics.RecordBookingConflict()
	}
	return fmt.Errorf("%w: %w", domain.ErrBookingConflict, lastErr)
}
