package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/messaging/kafka"
	"github.com/stanislavgolubev/rbs/internal/metrics"
)

// DefaultSeatingBuffer — предполагаемая средняя длительность посадки Δ.
// Окно вместимости брони — [t-Δ, t+Δ].
const DefaultSeatingBuffer = 90 * time.Minute

// Service реализует транзакцию букинга: атомарную последовательность
// проверка вместимости → проверка стола → создание брони, исполняемую
// в SERIALIZABLE-транзакции с ограниченным числом повторов.
type Service struct {
	store    domain.BookingStore
	timeline domain.TimelineRepository
	buffer   time.Duration
	retry    RetryConfig
	logger   *log.Entry
	metrics  *metrics.BookingMetrics

	now   func() time.Time
	newID func() string
}

// NewService создаёт рабочий экземпляр сервиса букинга.
func NewService(store domain.BookingStore, timeline domain.TimelineRepository, buffer time.Duration, logger *log.Entry) *Service {
	s := newService(store, timeline, buffer, logger)
	s.metrics = metrics.NewBookingMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(store domain.BookingStore, timeline domain.TimelineRepository, buffer time.Duration, logger *log.Entry) *Service {
	return newService(store, timeline, buffer, logger)
}

func newService(store domain.BookingStore, timeline domain.TimelineRepository, buffer time.Duration, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "booking")
	}
	if buffer <= 0 {
		buffer = DefaultSeatingBuffer
	}
	return &Service{
		store:    store,
		timeline: timeline,
		buffer:   buffer,
		retry:    DefaultRetryConfig(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateReservationRequest описывает заявку на бронь.
type CreateReservationRequest struct {
	RestaurantID string
	// TableID заполняется, когда гость просит конкретный стол.
	TableID     string
	PartySize   int32
	ReservedFor time.Time
	Notes       string
}

// CreateReservation выполняет транзакцию букинга и возвращает подтверждённую
// бронь. Доменные отказы (нет мест, конфликт стола, ресторан недоступен)
// возвращаются сразу; конфликт сериализации повторяется до исчерпания
// попыток, после чего возвращается ErrBookingConflict.
func (s *Service) CreateReservation(ctx context.Context, req CreateReservationRequest) (domain.Reservation, error) {
	if s.metrics != nil {
		s.metrics.RecordBookingAttempt()
	}

	now := s.now()
	reservation := domain.Reservation{
		ID:           s.newID(),
		RestaurantID: req.RestaurantID,
		TableID:      req.TableID,
		PartySize:    req.PartySize,
		ReservedFor:  req.ReservedFor.UTC(),
		Notes:        req.Notes,
		Status:       domain.ReservationStatusConfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errs := reservation.Validate(); len(errs) > 0 {
		return domain.Reservation{}, errors.Join(errs...)
	}

	err := s.runSerializable(ctx, "create_reservation", func(ctx context.Context, tx domain.BookingTx) error {
		restaurant, err := tx.GetRestaurant(ctx, reservation.RestaurantID)
		if err != nil {
			return err
		}
		if !restaurant.AcceptsBookings() {
			return domain.ErrRestaurantUnavailable
		}

		from, to := reservation.Window(s.buffer)
		if err := checkCapacity(ctx, tx, reservation.RestaurantID, reservation.PartySize, from, to); err != nil {
			return err
		}
		if reservation.TableID != "" {
			if err := checkTable(ctx, tx, reservation.RestaurantID, reservation.TableID, reservation.PartySize, from, to); err != nil {
				return err
			}
		}

		if err := tx.CreateReservation(ctx, reservation); err != nil {
			return err
		}
		return s.enqueueReservationEvent(ctx, tx, reservation, kafka.EventTypeReservationCreated)
	})
	if err != nil {
		s.observeFailure("create_reservation", err)
		return domain.Reservation{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordBookingConfirmed()
	}
	s.appendTimeline(reservation.ID, kafka.EventTypeReservationCreated, "")
	s.logger.WithFields(log.Fields{
		"reservation_id": reservation.ID,
		"restaurant_id":  reservation.RestaurantID,
		"party_size":     reservation.PartySize,
		"reserved_for":   reservation.ReservedFor,
	}).Info("reservation confirmed")

	return reservation, nil
}

// CancelReservation отменяет бронь; места в окне освобождаются автоматически,
// поскольку занятость всегда пересчитывается по статусам confirmed|seated.
func (s *Service) CancelReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return s.transitionReservation(ctx, "cancel_reservation", reservationID,
		domain.ReservationStatusCancelled, kafka.EventTypeReservationCancelled)
}

// MarkNoShow помечает неявку; терминальный статус, бронь места больше не держит.
func (s *Service) MarkNoShow(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return s.transitionReservation(ctx, "mark_no_show", reservationID,
		domain.ReservationStatusNoShow, kafka.EventTypeReservationNoShow)
}

// Complete завершает визит посаженной брони.
func (s *Service) Complete(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return s.transitionReservation(ctx, "complete_reservation", reservationID,
		domain.ReservationStatusCompleted, kafka.EventTypeReservationCompleted)
}

// CheckIn сажает гостей по брони: бронь переходит в seated, стол — в occupied.
// Если бронь была на конкретный стол, tableID может быть пустым.
func (s *Service) CheckIn(ctx context.Context, reservationID, tableID string) (domain.Reservation, error) {
	var result domain.Reservation

	err := s.runSerializable(ctx, "check_in", func(ctx context.Context, tx domain.BookingTx) error {
		reservation, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := reservation.Transition(domain.ReservationStatusSeated); err != nil {
			return err
		}

		seatAt := reservation.TableID
		if tableID != "" {
			seatAt = tableID
		}
		if seatAt == "" {
			return domain.ErrTableIDRequired
		}

		table, err := tx.GetTable(ctx, seatAt)
		if err != nil {
			return err
		}
		if table.RestaurantID != reservation.RestaurantID {
			return domain.ErrTableNotFound
		}
		if table.Capacity < reservation.PartySize {
			return domain.ErrTableTooSmall
		}
		if err := table.Transition(domain.TableStatusOccupied); err != nil {
			return err
		}
		if err := tx.SaveTable(ctx, table); err != nil {
			return err
		}

		reservation.TableID = seatAt
		if err := tx.SaveReservation(ctx, reservation); err != nil {
			return err
		}

		if err := s.enqueueReservationEvent(ctx, tx, reservation, kafka.EventTypeReservationSeated); err != nil {
			return err
		}
		if err := s.enqueueTableEvent(ctx, tx, table, domain.TableStatusOccupied); err != nil {
			return err
		}

		reservation.Version++
		result = reservation
		return nil
	})
	if err != nil {
		s.observeFailure("check_in", err)
		return domain.Reservation{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordTableTransition(string(domain.TableStatusOccupied))
	}
	s.appendTimeline(result.ID, kafka.EventTypeReservationSeated, "")
	s.logger.WithFields(log.Fields{
		"reservation_id": result.ID,
		"table_id":       result.TableID,
	}).Info("reservation seated")

	return result, nil
}

// GetReservation возвращает бронь по идентификатору.
func (s *Service) GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	var result domain.Reservation
	err := s.store.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		reservation, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		result = reservation
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

func (s *Service) transitionReservation(ctx context.Context, operation, reservationID string, target domain.ReservationStatus, eventType kafka.EventType) (domain.Reservation, error) {
	var result domain.Reservation

	err := s.runSerializable(ctx, operation, func(ctx context.Context, tx domain.BookingTx) error {
		reservation, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := reservation.Transition(target); err != nil {
			return err
		}
		if err := tx.SaveReservation(ctx, reservation); err != nil {
			return err
		}
		if err := s.enqueueReservationEvent(ctx, tx, reservation, eventType); err != nil {
			return err
		}

		reservation.Version++
		result = reservation
		return nil
	})
	if err != nil {
		s.observeFailure(operation, err)
		return domain.Reservation{}, err
	}

	s.appendTimeline(result.ID, eventType, "")
	s.logger.WithFields(log.Fields{
		"reservation_id": result.ID,
		"status":         result.Status,
	}).Info("reservation status changed")

	return result, nil
}

func (s *Service) enqueueReservationEvent(ctx context.Context, tx domain.BookingTx, reservation domain.Reservation, eventType kafka.EventType) error {
	payload, err := json.Marshal(kafka.ReservationEvent{
		EventType:     eventType,
		ReservationID: reservation.ID,
		RestaurantID:  reservation.RestaurantID,
		TableID:       reservation.TableID,
		Status:        string(reservation.Status),
		Timestamp:     s.now(),
	})
	if err != nil {
		return err
	}
	if err := tx.EnqueueOutbox(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateReservation,
		AggregateID:   reservation.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
	return nil
}

func (s *Service) enqueueTableEvent(ctx context.Context, tx domain.BookingTx, table domain.Table, status domain.TableStatus) error {
	payload, err := json.Marshal(kafka.TableEvent{
		EventType: kafka.EventTypeTableStatusChanged,
		TableID:   table.ID,
		Status:    string(status),
		Timestamp: s.now(),
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
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
	return nil
}

func (s *Service) appendTimeline(aggregateID string, eventType kafka.EventType, detail string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		AggregateID: aggregateID,
		Type:        string(eventType),
		Detail:      detail,
		Occurred:    s.now(),
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Warn("append timeline event failed")
	} else if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

func (s *Service) observeFailure(operation string, err error) {
	if s.metrics != nil && domain.IsRejection(err) {
		s.metrics.RecordBookingRejected(rejectionReason(err))
	}
	s.logger.WithError(err).WithField("operation", operation).Warn("booking operation failed")
}

// rejectionReason маппит доменный отказ в метку метрики.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRestaurantUnavailable):
		return "restaurant_unavailable"
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, domain.ErrTableConflict):
		return "table_conflict"
	case errors.Is(err, domain.ErrTableTooSmall):
		return "table_too_small"
	case errors.Is(err, domain.ErrActiveOrderExists):
		return "active_order_exists"
	case errors.Is(err, domain.ErrItemUnavailable):
		return "item_unavailable"
	case errors.Is(err, domain.ErrOrderAlreadyOpen):
		return "order_already_open"
	case errors.Is(err, domain.ErrReservationNotCancellable):
		return "not_cancellable"
	}
	return "other"
}
