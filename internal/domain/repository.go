package domain

import (
	"context"
	"time"
)

// BookingTx — набор операций, доступных внутри одной транзакции букинга.
// Все проверки вместимости и конфликтов выполняются через этот интерфейс,
// чтобы чтение и запись попадали в одну и ту же область изоляции.
type BookingTx interface {
	// GetRestaurant возвращает ресторан или ErrRestaurantNotFound.
	GetRestaurant(ctx context.Context, id string) (Restaurant, error)
	// GetTable возвращает стол или ErrTableNotFound.
	GetTable(ctx context.Context, id string) (Table, error)
	// SaveTable сохраняет стол с учётом optimistic locking.
	SaveTable(ctx context.Context, table Table) error

	// TotalCapacity возвращает сумму вместимостей всех столов ресторана.
	TotalCapacity(ctx context.Context, restaurantID string) (int32, error)
	// OccupiedSeats возвращает сумму размеров компаний по броням
	// confirmed|seated, чьё время попадает в окно [from, to].
	OccupiedSeats(ctx context.Context, restaurantID string, from, to time.Time) (int32, error)
	// TableHasOverlap сообщает, есть ли у стола активная бронь в окне [from, to].
	TableHasOverlap(ctx context.Context, tableID string, from, to time.Time) (bool, error)

	// CreateReservation сохраняет новую бронь.
	CreateReservation(ctx context.Context, reservation Reservation) error
	// GetReservation возвращает бронь или ErrReservationNotFound.
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// SaveReservation применяет обновления к брони с учётом optimistic locking.
	SaveReservation(ctx context.Context, reservation Reservation) error

	// OpenOrderExists сообщает, есть ли на столе заказ в статусе open.
	OpenOrderExists(ctx context.Context, tableID string) (bool, error)
	// BlockingOrderExists сообщает, есть ли на столе заказ open|payment_pending
	// (zombie-проверка перед освобождением стола).
	BlockingOrderExists(ctx context.Context, tableID string) (bool, error)
	// CreateOrder сохраняет новый счёт вместе с позициями.
	CreateOrder(ctx context.Context, order Order) error
	// GetOrder возвращает счёт с позициями или ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (Order, error)
	// SaveOrder применяет обновления к счёту и его позициям с учётом
	// optimistic locking.
	SaveOrder(ctx context.Context, order Order) error

	// MenuItems возвращает позиции меню ресторана по идентификаторам.
	// Отсутствующие идентификаторы в результат не попадают.
	MenuItems(ctx context.Context, restaurantID string, ids []string) ([]MenuItem, error)

	// EnqueueOutbox кладёт событие в transactional outbox той же транзакцией,
	// что и доменная запись: событие видно воркеру только после commit.
	EnqueueOutbox(ctx context.Context, msg OutboxMessage) error
}

// BookingStore выполняет замыкания в транзакциях хранилища.
type BookingStore interface {
	// Serializable выполняет fn в транзакции уровня SERIALIZABLE.
	// Конфликт сериализации возвращается как ErrTxSerialization;
	// доменные ошибки пробрасываются как есть, транзакция откатывается.
	Serializable(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
	// View выполняет fn в read-only транзакции с изоляцией по умолчанию.
	View(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}
