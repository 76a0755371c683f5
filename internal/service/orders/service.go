package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/messaging/kafka"
	"github.com/stanislavgolubev/rbs/internal/metrics"
)

// Service управляет счетами столов: открытие, позиции, выставление и закрытие.
// Каждая операция исполняется одной SERIALIZABLE-транзакцией, поэтому
// zombie-проверки и пересчёт суммы видят согласованное состояние.
type Service struct {
	store    domain.BookingStore
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.BookingMetrics

	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	newID       func() string
}

// NewService создаёт рабочий экземпляр сервиса счетов.
func NewService(store domain.BookingStore, timeline domain.TimelineRepository, logger *log.Entry) *Service {
	s := newService(store, timeline, logger)
	s.metrics = metrics.NewBookingMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(store domain.BookingStore, timeline domain.TimelineRepository, logger *log.Entry) *Service {
	return newService(store, timeline, logger)
}

func newService(store domain.BookingStore, timeline domain.TimelineRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		store:       store,
		timeline:    timeline,
		logger:      logger,
		maxAttempts: 3,
		retryDelay:  100 * time.Millisecond,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// ItemRequest описывает одну запрошенную позицию счёта.
type ItemRequest struct {
	MenuItemID string
	Qty        int32
}

// Open открывает счёт на столе. На столе может быть только один открытый счёт;
// свободный или ожидающий бронь стол при этом переводится в occupied.
func (s *Service) Open(ctx context.Context, tableID string, items []ItemRequest) (domain.Order, error) {
	var result domain.Order

	err := s.runSerializable(ctx, "open_order", func(ctx context.Context, tx domain.BookingTx) error {
		table, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		restaurant, err := tx.GetRestaurant(ctx, table.RestaurantID)
		if err != nil {
			return err
		}
		if !restaurant.AcceptsBookings() {
			return domain.ErrRestaurantUnavailable
		}

		open, err := tx.OpenOrderExists(ctx, tableID)
		if err != nil {
			return err
		}
		if open {
			return domain.ErrOrderAlreadyOpen
		}

		now := s.now()
		order := domain.Order{
			ID:           s.newID(),
			RestaurantID: table.RestaurantID,
			TableID:      tableID,
			Status:       domain.OrderStatusOpen,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if len(items) > 0 {
			orderItems, err := s.resolveItems(ctx, tx, table.RestaurantID, items, now)
			if err != nil {
				return err
			}
			order.Items = orderItems
		}
		order.RecomputeTotal()

		if errs := order.Validate(); len(errs) > 0 {
			return errors.Join(errs...)
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		if table.Status != domain.TableStatusOccupied {
			if err := table.Transition(domain.TableStatusOccupied); err != nil {
				return err
			}
			if err := tx.SaveTable(ctx, table); err != nil {
				return err
			}
			if err := s.enqueueTableEvent(ctx, tx, table); err != nil {
				return err
			}
		}

		if err := s.enqueueOrderEvent(ctx, tx, order, kafka.EventTypeOrderCreated); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("table_id", tableID).Warn("open order failed")
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderOpened()
	}
	s.appendTimeline(result.ID, kafka.EventTypeOrderCreated, "")
	s.logger.WithFields(log.Fields{
		"order_id": result.ID,
		"table_id": result.TableID,
	}).Info("order opened")

	return result, nil
}

// AddItems добавляет батч позиций в открытый счёт. Батч атомарен:
// одна недоступная позиция меню отклоняет весь запрос.
func (s *Service) AddItems(ctx context.Context, orderID string, items []ItemRequest) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	var result domain.Order
	err := s.runSerializable(ctx, "add_items", func(ctx context.Context, tx domain.BookingTx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsOpen() {
			return domain.ErrOrderNotOpen
		}

		orderItems, err := s.resolveItems(ctx, tx, order.RestaurantID, items, s.now())
		if err != nil {
			return err
		}
		order.Items = append(order.Items, orderItems...)
		order.RecomputeTotal()

		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		order.Version++
		result = order
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("add items failed")
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":    result.ID,
		"items_added": len(items),
		"total_minor": result.TotalMinor,
	}).Info("order items added")

	return result, nil
}

// UpdateItemStatus продвигает позицию по цеху. Переходы только вперёд:
// pending → cooking → ready → served.
func (s *Service) UpdateItemStatus(ctx context.Context, orderID, itemID, status string) (domain.Order, error) {
	target, err := domain.ParseItemStatus(status)
	if err != nil {
		return domain.Order{}, err
	}

	var result domain.Order
	err = s.runSerializable(ctx, "update_item_status", func(ctx context.Context, tx domain.BookingTx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return domain.ErrOrderItemNotFound
		}
		if err := order.Items[idx].Transition(target); err != nil {
			return err
		}

		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if target == domain.ItemStatusReady {
			if err := s.enqueueOrderEvent(ctx, tx, order, kafka.EventTypeOrderItemReady); err != nil {
				return err
			}
		}
		order.Version++
		result = order
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"item_id":  itemID,
		}).Warn("update item status failed")
		return domain.Order{}, err
	}

	return result, nil
}

// RequestBill выставляет счёт: заказ переходит в payment_pending, новые позиции
// больше не принимаются, стол помечается как рассчитывающийся.
func (s *Service) RequestBill(ctx context.Context, orderID string) (domain.Order, error) {
	var result domain.Order

	err := s.runSerializable(ctx, "request_bill", func(ctx context.Context, tx domain.BookingTx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.RequestBill(); err != nil {
			return err
		}
		order.RecomputeTotal()
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}

		table, err := tx.GetTable(ctx, order.TableID)
		if err != nil {
			return err
		}
		if table.CanTransition(domain.TableStatusPaymentPending) {
			if err := table.Transition(domain.TableStatusPaymentPending); err != nil {
				return err
			}
			if err := tx.SaveTable(ctx, table); err != nil {
				return err
			}
			if err := s.enqueueTableEvent(ctx, tx, table); err != nil {
				return err
			}
		}

		order.Version++
		result = order
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("request bill failed")
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":    result.ID,
		"total_minor": result.TotalMinor,
	}).Info("bill requested")

	return result, nil
}

// Close закрывает счёт с чаевыми и скидкой. Стол при этом НЕ освобождается:
// освобождение — отдельное явное действие персонала после уборки.
func (s *Service) Close(ctx context.Context, orderID string, tipMinor int64, discount domain.Discount) (domain.Order, error) {
	var result domain.Order

	err := s.runSerializable(ctx, "close_order", func(ctx context.Context, tx domain.BookingTx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.Close(tipMinor, discount, s.now()); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if err := s.enqueueOrderEvent(ctx, tx, order, kafka.EventTypeOrderClosed); err != nil {
			return err
		}
		order.Version++
		result = order
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("close order failed")
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderClosed()
	}
	s.appendTimeline(result.ID, kafka.EventTypeOrderClosed, "")
	s.logger.WithFields(log.Fields{
		"order_id":    result.ID,
		"final_minor": result.FinalMinor,
	}).Info("order closed")

	return result, nil
}

// Get возвращает счёт с позициями.
func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	var result domain.Order
	err := s.store.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// resolveItems валидирует запрошенные позиции против меню ресторана и
// снимает цену на момент заказа. Отсутствие или недоступность любой позиции
// отклоняет весь батч.
func (s *Service) resolveItems(ctx context.Context, tx domain.BookingTx, restaurantID string, items []ItemRequest, now time.Time) ([]domain.OrderItem, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.Qty <= 0 {
			return nil, domain.ErrItemQtyInvalid
		}
		ids = append(ids, item.MenuItemID)
	}

	menu, err := tx.MenuItems(ctx, restaurantID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	result := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		m, ok := byID[item.MenuItemID]
		if !ok || !m.IsAvailable {
			return nil, fmt.Errorf("%w: %s", domain.ErrItemUnavailable, item.MenuItemID)
		}
		result = append(result, domain.OrderItem{
			ID:         s.newID(),
			MenuItemID: m.ID,
			Name:       m.Name,
			Qty:        item.Qty,
			PriceMinor: m.PriceMinor,
			Station:    m.Station,
			Status:     domain.ItemStatusPending,
			CreatedAt:  now,
		})
	}
	return result, nil
}

func (s *Service) runSerializable(ctx context.Context, operation string, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		start := time.Now()
		err := s.store.Serializable(ctx, fn)
		if s.metrics != nil {
			s.metrics.RecordTxDuration(operation, time.Since(start))
		}
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

func (s *Service) enqueueOrderEvent(ctx context.Context, tx domain.BookingTx, order domain.Order, eventType kafka.EventType) error {
	payload, err := json.Marshal(kafka.OrderEvent{
		EventType: eventType,
		OrderID:   order.ID,
		TableID:   order.TableID,
		Status:    string(order.Status),
		Timestamp: s.now(),
	})
	if err != nil {
		return err
	}
	if err := tx.EnqueueOutbox(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   order.ID,
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

func (s *Service) enqueueTableEvent(ctx context.Context, tx domain.BookingTx, table domain.Table) error {
	payload, err := json.Marshal(kafka.TableEvent{
		EventType: kafka.EventTypeTableStatusChanged,
		TableID:   table.ID,
		Status:    string(table.Status),
		Timestamp: s.now(),
	})
	if err != nil {
		return err
	}
	return tx.EnqueueOutbox(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateTable,
		AggregateID:   table.ID,
		EventType:     string(kafka.EventTypeTableStatusChanged),
		Payload:       payload,
	})
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
