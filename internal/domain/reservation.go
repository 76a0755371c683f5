package domain

import "time"

// ReservationStatus отражает жизненный цикл брони.
type ReservationStatus string

const (
	// ReservationStatusConfirmed — бронь создана транзакцией букинга и держит места.
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	// ReservationStatusSeated — гости пришли и посажены за стол.
	ReservationStatusSeated ReservationStatus = "seated"
	// ReservationStatusCancelled — бронь отменена гостем или персоналом.
	ReservationStatusCancelled ReservationStatus = "cancelled"
	// ReservationStatusNoShow — гости не пришли; терминальный статус.
	ReservationStatusNoShow ReservationStatus = "no_show"
	// ReservationStatusCompleted — визит завершён; терминальный статус.
	ReservationStatusCompleted ReservationStatus = "completed"
)

// Reservation — заявка на посадку: конкретный стол или общий пул мест ресторана.
type Reservation struct {
	ID           string
	RestaurantID string
	// TableID заполняется, когда гость просит конкретный стол;
	// пустое значение означает бронь из общего пула вместимости.
	TableID     string
	PartySize   int32
	ReservedFor time.Time
	Notes       string
	Status      ReservationStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// reservationTransitions задаёт допустимые переходы статуса брони.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusConfirmed: {ReservationStatusSeated, ReservationStatusCancelled, ReservationStatusNoShow},
	ReservationStatusSeated:    {ReservationStatusCancelled, ReservationStatusCompleted},
}

// HoldsCapacity возвращает true, если бронь занимает места в окне вместимости.
// Отменённые и терминальные брони освобождают слот без явной нотификации:
// занятость пересчитывается заново при каждой оценке.
func (r *Reservation) HoldsCapacity() bool {
	return r.Status == ReservationStatusConfirmed || r.Status == ReservationStatusSeated
}

// CanTransition проверяет, допустим ли переход брони в статус target.
func (r *Reservation) CanTransition(target ReservationStatus) bool {
	for _, allowed := range reservationTransitions[r.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition переводит бронь в статус target или возвращает ErrReservationTransition.
func (r *Reservation) Transition(target ReservationStatus) error {
	if !r.CanTransition(target) {
		if target == ReservationStatusCancelled {
			return ErrReservationNotCancellable
		}
		return ErrReservationTransition
	}
	r.Status = target
	return nil
}

// Validate проверяет, корректно ли заполнены ключевые поля брони.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.RestaurantID == "" {
		errs = append(errs, ErrRestaurantIDRequired)
	}
	if r.PartySize < 1 {
		errs = append(errs, ErrPartySizeInvalid)
	}
	if r.ReservedFor.IsZero() {
		errs = append(errs, ErrReservedForRequired)
	}

	return errs
}

// Window возвращает окно вместимости [t-Δ, t+Δ] вокруг времени брони.
// Δ — предполагаемая средняя длительность посадки; два запроса на времена
// ближе Δ считаются пересекающимися.
func (r *Reservation) Window(buffer time.Duration) (time.Time, time.Time) {
	return r.ReservedFor.Add(-buffer), r.ReservedFor.Add(buffer)
}
