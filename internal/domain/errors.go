package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора ресторана.
	ErrRestaurantIDRequired = errors.New("restaurant_id is required")
	// Ошибка отсутствующего идентификатора стола.
	ErrTableIDRequired = errors.New("table_id is required")
	// Ошибка некорректного размера компании (< 1).
	ErrPartySizeInvalid = errors.New("party size must be greater than zero")
	// Ошибка отсутствующего времени брони.
	ErrReservedForRequired = errors.New("reserved_for time is required")
	// Ошибка некорректной вместимости стола (< 1 места).
	ErrTableCapacityInvalid = errors.New("table capacity must be at least one seat")
	// Ошибка некорректного количества позиции (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка пустого списка позиций.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка неизвестного целевого статуса стола. Это ошибка валидации,
	// а не отказ state machine.
	ErrInvalidTableStatus = errors.New("unknown table status")
	// Ошибка неизвестного статуса позиции заказа.
	ErrInvalidItemStatus = errors.New("unknown order item status")
	// Ошибка некорректной скидки (отрицательная сумма или процент вне (0,100]).
	ErrInvalidDiscount = errors.New("discount must be a non-negative amount or a percent in (0,100]")
	// Ошибка отрицательных чаевых.
	ErrInvalidTip = errors.New("tip must be non-negative")

	// ErrRestaurantNotFound возвращается, если ресторан не найден в хранилище.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrTableNotFound возвращается, если стол не найден.
	ErrTableNotFound = errors.New("table not found")
	// ErrReservationNotFound возвращается, если бронь не найдена.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderItemNotFound возвращается, если позиция заказа не найдена.
	ErrOrderItemNotFound = errors.New("order item not found")

	// ErrRestaurantUnavailable — ресторан не в статусе active и брони не принимает.
	ErrRestaurantUnavailable = errors.New("restaurant is not accepting bookings")
	// ErrInsufficientCapacity — в запрошенном окне не хватает посадочных мест.
	ErrInsufficientCapacity = errors.New("insufficient seating capacity for requested window")
	// ErrTableConflict — у стола уже есть активная бронь в пересекающемся окне.
	ErrTableConflict = errors.New("table already reserved for overlapping window")
	// ErrTableTooSmall — вместимость стола меньше размера компании.
	ErrTableTooSmall = errors.New("table capacity is smaller than party size")
	// ErrItemUnavailable — хотя бы одна позиция меню недоступна; батч отклоняется целиком.
	ErrItemUnavailable = errors.New("menu item is unavailable")
	// ErrActiveOrderExists — попытка освободить стол с незакрытым счётом (zombie guard).
	ErrActiveOrderExists = errors.New("table has an open or unpaid order")
	// ErrOrderAlreadyOpen — на столе уже есть открытый заказ.
	ErrOrderAlreadyOpen = errors.New("table already has an open order")
	// ErrOrderNotOpen — операция допустима только для открытого заказа.
	ErrOrderNotOpen = errors.New("order is not open")
	// ErrReservationNotCancellable — бронь можно отменить только из confirmed/seated.
	ErrReservationNotCancellable = errors.New("reservation cannot be cancelled from its current status")
	// ErrReservationTransition — недопустимый переход статуса брони.
	ErrReservationTransition = errors.New("invalid reservation status transition")
	// ErrTableTransition — недопустимый переход статуса стола.
	ErrTableTransition = errors.New("invalid table status transition")
	// ErrItemTransition — недопустимый переход статуса позиции заказа.
	ErrItemTransition = errors.New("invalid order item status transition")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении агрегата.
	ErrVersionConflict = errors.New("aggregate version conflict")

	// ErrTxSerialization — транзакция прервана из-за конфликта сериализации;
	// единственная ошибка букинга, которую имеет смысл повторять.
	ErrTxSerialization = errors.New("transaction serialization failure")
	// ErrBookingConflict — лимит повторов исчерпан, букинг завершился конфликтом.
	ErrBookingConflict = errors.New("booking aborted after repeated serialization conflicts")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// rejections перечисляет терминальные доменные отказы: их нельзя ретраить,
// повтор не изменит исход.
var rejections = []error{
	ErrRestaurantUnavailable,
	ErrInsufficientCapacity,
	ErrTableConflict,
	ErrTableTooSmall,
	ErrItemUnavailable,
	ErrActiveOrderExists,
	ErrOrderAlreadyOpen,
	ErrOrderNotOpen,
	ErrReservationNotCancellable,
	ErrReservationTransition,
	ErrTableTransition,
	ErrItemTransition,
}

// IsRejection проверяет, является ли ошибка терминальным доменным отказом.
func IsRejection(err error) bool {
	for _, rejection := range rejections {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

// IsSerializationFailure проверяет, является ли ошибка конфликтом сериализации.
func IsSerializationFailure(err error) bool {
	return errors.Is(err, ErrTxSerialization)
}
