package domain

import "time"

// RestaurantStatus описывает жизненный цикл ресторана на платформе.
type RestaurantStatus string

const (
	// RestaurantStatusPending — заявка подана, ресторан ещё не активирован.
	RestaurantStatusPending RestaurantStatus = "pending"
	// RestaurantStatusActive — ресторан работает и принимает брони.
	RestaurantStatusActive RestaurantStatus = "active"
	// RestaurantStatusSuspended — ресторан приостановлен администрацией.
	RestaurantStatusSuspended RestaurantStatus = "suspended"
)

// Restaurant — партиция-владелец столов, броней и заказов.
type Restaurant struct {
	ID        string
	Name      string
	Status    RestaurantStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AcceptsBookings возвращает true, если ресторан может принимать новые брони и заказы.
func (r *Restaurant) AcceptsBookings() bool {
	return r.Status == RestaurantStatusActive
}
