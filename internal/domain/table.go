package domain

import "time"

// TableStatus описывает текущее состояние стола в зале.
type TableStatus string

const (
	// TableStatusFree — стол свободен и может быть назначен новой компании.
	TableStatusFree TableStatus = "free"
	// TableStatusOccupied — за столом сидят гости, заказ открыт или открывается.
	TableStatusOccupied TableStatus = "occupied"
	// TableStatusReserved — стол помечен персоналом под ожидаемую бронь.
	TableStatusReserved TableStatus = "reserved"
	// TableStatusPaymentPending — заказ закрыт, гости рассчитываются, стол ещё не убран.
	TableStatusPaymentPending TableStatus = "payment_pending"
)

// ParseTableStatus валидирует строковое значение статуса стола.
// Неизвестное значение — ошибка валидации, а не отказ state machine.
func ParseTableStatus(s string) (TableStatus, error) {
	switch TableStatus(s) {
	case TableStatusFree, TableStatusOccupied, TableStatusReserved, TableStatusPaymentPending:
		return TableStatus(s), nil
	}
	return "", ErrInvalidTableStatus
}

// Table — физический стол; единица, за которую конкурируют брони и заказы.
type Table struct {
	ID           string
	RestaurantID string
	Label        string
	Capacity     int32
	Status       TableStatus
	// PosX/PosY используются только для отображения плана зала.
	PosX      int32
	PosY      int32
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// tableTransitions задаёт допустимые переходы статуса стола.
// Переход в free разрешён из любого состояния, но сервисный слой обязан
// предварительно выполнить zombie-проверку открытых заказов.
var tableTransitions = map[TableStatus][]TableStatus{
	TableStatusFree:           {TableStatusOccupied, TableStatusReserved},
	TableStatusReserved:       {TableStatusOccupied, TableStatusFree},
	TableStatusOccupied:       {TableStatusPaymentPending, TableStatusFree},
	TableStatusPaymentPending: {TableStatusFree},
}

// CanTransition проверяет, допустим ли переход стола в статус target.
func (t *Table) CanTransition(target TableStatus) bool {
	if t.Status == target {
		return false
	}
	for _, allowed := range tableTransitions[t.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition переводит стол в статус target или возвращает ErrTableTransition.
// Гарантию отсутствия открытых счетов при освобождении стола даёт вызывающая
// транзакция, здесь проверяется только сама матрица переходов.
func (t *Table) Transition(target TableStatus) error {
	if !t.CanTransition(target) {
		return ErrTableTransition
	}
	t.Status = target
	return nil
}

// Validate проверяет корректность ключевых полей стола.
func (t *Table) Validate() []error {
	var errs []error

	if t.RestaurantID == "" {
		errs = append(errs, ErrRestaurantIDRequired)
	}
	if t.Capacity < 1 {
		errs = append(errs, ErrTableCapacityInvalid)
	}
	if _, err := ParseTableStatus(string(t.Status)); err != nil {
		errs = append(errs, err)
	}

	return errs
}
