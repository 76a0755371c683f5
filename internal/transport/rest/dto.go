package rest

import (
	"time"

	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/service/booking"
)

type reservationView struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	TableID      string    `json:"table_id,omitempty"`
	PartySize    int32     `json:"party_size"`
	ReservedFor  time.Time `json:"reserved_for"`
	Notes        string    `json:"notes,omitempty"`
	Status       string    `json:"status"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toReservationView(r domain.Reservation) reservationView {
	return reservationView{
		ID:           r.ID,
		RestaurantID: r.RestaurantID,
		TableID:      r.TableID,
		PartySize:    r.PartySize,
		ReservedFor:  r.ReservedFor,
		Notes:        r.Notes,
		Status:       string(r.Status),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type availabilityView struct {
	RestaurantID   string    `json:"restaurant_id"`
	WindowFrom     time.Time `json:"window_from"`
	WindowTo       time.Time `json:"window_to"`
	TotalCapacity  int32     `json:"total_capacity"`
	OccupiedSeats  int32     `json:"occupied_seats"`
	AvailableSeats int32     `json:"available_seats"`
}

func toAvailabilityView(a booking.Availability) availabilityView {
	return availabilityView{
		RestaurantID:   a.RestaurantID,
		WindowFrom:     a.WindowFrom,
		WindowTo:       a.WindowTo,
		TotalCapacity:  a.TotalCapacity,
		OccupiedSeats:  a.OccupiedSeats,
		AvailableSeats: a.AvailableSeats,
	}
}

type tableView struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	Label        string    `json:"label"`
	Capacity     int32     `json:"capacity"`
	Status       string    `json:"status"`
	Version      int64     `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toTableView(t domain.Table) tableView {
	return tableView{
		ID:           t.ID,
		RestaurantID: t.RestaurantID,
		Label:        t.Label,
		Capacity:     t.Capacity,
		Status:       string(t.Status),
		Version:      t.Version,
		UpdatedAt:    t.UpdatedAt,
	}
}

type orderItemView struct {
	ID         string `json:"id"`
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
	Station    string `json:"station"`
	Status     string `json:"status"`
}

type orderView struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	TableID      string          `json:"table_id"`
	Status       string          `json:"status"`
	TotalMinor   int64           `json:"total_minor"`
	TipMinor     int64           `json:"tip_minor,omitempty"`
	FinalMinor   int64           `json:"final_minor,omitempty"`
	Items        []orderItemView `json:"items"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
}

func toOrderView(o domain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ID:         item.ID,
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
			Station:    string(item.Station),
			Status:     string(item.Status),
		})
	}

	view := orderView{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		TableID:      o.TableID,
		Status:       string(o.Status),
		TotalMinor:   o.TotalMinor,
		TipMinor:     o.TipMinor,
		FinalMinor:   o.FinalMinor,
		Items:        items,
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if !o.ClosedAt.IsZero() {
		closedAt := o.ClosedAt
		view.ClosedAt = &closedAt
	}
	return view
}
