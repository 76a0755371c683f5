package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События бронирования
	EventTypeReservationCreated   EventType = "reservation.created"
	EventTypeReservationSeated    EventType = "reservation.seated"
	EventTypeReservationCancelled EventType = "reservation.cancelled"
	EventTypeReservationNoShow    EventType = "reservation.no_show"
	EventTypeReservationCompleted EventType = "reservation.completed"

	// События счетов
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderClosed    EventType = "order.closed"
	EventTypeOrderItemReady EventType = "order.item_ready"

	// События столов
	EventTypeTableStatusChanged EventType = "table.status_changed"
)

// Topics для Kafka
const (
	TopicReservationEvents = "rbs.reservation.events"
	TopicOrderEvents       = "rbs.order.events"
	TopicTableEvents       = "rbs.table.events"
	TopicDeadLetterQueue   = "rbs.dlq" // Dead Letter Queue для failed messages
)

// AggregateType в outbox-сообщениях; определяет topic при публикации.
const (
	AggregateReservation = "reservation"
	AggregateOrder       = "order"
	AggregateTable       = "table"
)

// ReservationEvent представляет событие брони для внешнего fan-out.
type ReservationEvent struct {
	EventType     EventType `json:"event_type"`
	ReservationID string    `json:"reservation_id"`
	RestaurantID  string    `json:"restaurant_id"`
	TableID       string    `json:"table_id,omitempty"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// OrderEvent представляет событие счёта.
type OrderEvent struct {
	EventType EventType `json:"event_type"`
	OrderID   string    `json:"order_id"`
	TableID   string    `json:"table_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TableEvent представляет смену статуса стола.
type TableEvent struct {
	EventType EventType `json:"event_type"`
	TableID   string    `json:"table_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
