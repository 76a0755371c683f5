package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stanislavgolubev/rbs/internal/domain"
)

func seedBookingFixtures(t *testing.T, store *Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := store.DB()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO restaurants (id, name, status) VALUES ('rest-1', 'Теремок', 'active')
	`); err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO tables (id, restaurant_id, label, capacity, status)
		VALUES ('table-1', 'rest-1', 'T1', 4, 'free'),
		       ('table-2', 'rest-1', 'T2', 6, 'free')
	`); err != nil {
		t.Fatalf("seed tables: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO menu_items (id, restaurant_id, name, price_minor, station, is_available)
		VALUES ('borscht', 'rest-1', 'Борщ', 45000, 'kitchen', TRUE),
		       ('oysters', 'rest-1', 'Устрицы', 120000, 'kitchen', FALSE)
	`); err != nil {
		t.Fatalf("seed menu: %v", err)
	}
}

func TestBookingStore_PostgresReservationFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedBookingFixtures(t, store)

	bookingStore := NewBookingStore(store)
	ctx := context.Background()
	reservedFor := time.Now().UTC().Add(24 * time.Hour).Round(time.Microsecond)

	err := bookingStore.Serializable(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		restaurant, err := tx.GetRestaurant(ctx, "rest-1")
		if err != nil {
			return err
		}
		if !restaurant.AcceptsBookings() {
			t.Fatalf("seeded restaurant must accept bookings, status=%s", restaurant.Status)
		}

		total, err := tx.TotalCapacity(ctx, "rest-1")
		if err != nil {
			return err
		}
		if total != 10 {
			t.Fatalf("total capacity = %d, want 10", total)
		}

		now := time.Now().UTC()
		if err := tx.CreateReservation(ctx, domain.Reservation{
			ID:           "res-1",
			RestaurantID: "rest-1",
			TableID:      "table-1",
			PartySize:    3,
			ReservedFor:  reservedFor,
			Status:       domain.ReservationStatusConfirmed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return err
		}
		return tx.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: "reservation",
			AggregateID:   "res-1",
			EventType:     "reservation.created",
			Payload:       []byte(`{"reservation_id":"res-1"}`),
		})
	})
	if err != nil {
		t.Fatalf("serializable reservation tx: %v", err)
	}

	err = bookingStore.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		res, err := tx.GetReservation(ctx, "res-1")
		if err != nil {
			return err
		}
		if res.TableID != "table-1" || res.PartySize != 3 {
			t.Fatalf("unexpected reservation: %+v", res)
		}

		seats, err := tx.OccupiedSeats(ctx, "rest-1", reservedFor.Add(-90*time.Minute), reservedFor.Add(90*time.Minute))
		if err != nil {
			return err
		}
		if seats != 3 {
			t.Fatalf("occupied seats = %d, want 3", seats)
		}

		overlap, err := tx.TableHasOverlap(ctx, "table-1", reservedFor.Add(-time.Hour), reservedFor.Add(time.Hour))
		if err != nil {
			return err
		}
		if !overlap {
			t.Fatal("expected overlap on booked table")
		}

		free, err := tx.TableHasOverlap(ctx, "table-2", reservedFor.Add(-time.Hour), reservedFor.Add(time.Hour))
		if err != nil {
			return err
		}
		if free {
			t.Fatal("unexpected overlap on free table")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view reservation: %v", err)
	}

	// Outbox-сообщение стало видно воркеру после commit.
	outbox := NewOutboxRepository(store)
	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "reservation.created" {
		t.Fatalf("unexpected pending outbox: %+v", pending)
	}
}

func TestBookingStore_PostgresRollbackKeepsOutboxEmpty(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedBookingFixtures(t, store)

	bookingStore := NewBookingStore(store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := bookingStore.Serializable(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		now := time.Now().UTC()
		if err := tx.CreateReservation(ctx, domain.Reservation{
			ID:           "res-rollback",
			RestaurantID: "rest-1",
			PartySize:    2,
			ReservedFor:  now.Add(time.Hour),
			Status:       domain.ReservationStatusConfirmed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return err
		}
		if err := tx.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: "reservation",
			AggregateID:   "res-rollback",
			EventType:     "reservation.created",
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = bookingStore.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		_, getErr := tx.GetReservation(ctx, "res-rollback")
		if !errors.Is(getErr, domain.ErrReservationNotFound) {
			t.Fatalf("reservation survived rollback: %v", getErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	outbox := NewOutboxRepository(store)
	stats, err := outbox.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("outbox has %d pending after rollback, want 0", stats.PendingCount)
	}
}

func TestBookingStore_PostgresOrderLifecycle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedBookingFixtures(t, store)

	bookingStore := NewBookingStore(store)
	ctx := context.Background()
	now := time.Now().UTC().Round(time.Microsecond)

	err := bookingStore.Serializable(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		return tx.CreateOrder(ctx, domain.Order{
			ID:           "order-1",
			RestaurantID: "rest-1",
			TableID:      "table-1",
			Status:       domain.OrderStatusOpen,
			Items: []domain.OrderItem{
				{ID: "item-1", MenuItemID: "borscht", Name: "Борщ", Qty: 2, PriceMinor: 45000, Station: domain.StationKitchen, Status: domain.ItemStatusPending, CreatedAt: now},
			},
			TotalMinor: 90000,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	err = bookingStore.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		blocking, err := tx.BlockingOrderExists(ctx, "table-1")
		if err != nil {
			return err
		}
		if !blocking {
			t.Fatal("open order must block table")
		}

		menu, err := tx.MenuItems(ctx, "rest-1", []string{"borscht", "oysters", "missing"})
		if err != nil {
			return err
		}
		if len(menu) != 2 {
			t.Fatalf("expected 2 menu rows, got %d", len(menu))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view order: %v", err)
	}

	err = bookingStore.Serializable(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		order, err := tx.GetOrder(ctx, "order-1")
		if err != nil {
			return err
		}
		if len(order.Items) != 1 || order.Items[0].MenuItemID != "borscht" {
			t.Fatalf("unexpected order items: %+v", order.Items)
		}
		if err := order.Close(5000, domain.Discount{}, time.Now().UTC()); err != nil {
			return err
		}
		return tx.SaveOrder(ctx, order)
	})
	if err != nil {
		t.Fatalf("close order: %v", err)
	}

	err = bookingStore.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		order, err := tx.GetOrder(ctx, "order-1")
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusClosed || order.FinalMinor != 95000 {
			t.Fatalf("unexpected closed order: %+v", order)
		}
		if order.ClosedAt.IsZero() {
			t.Fatal("expected closed_at to be set")
		}

		blocking, err := tx.BlockingOrderExists(ctx, "table-1")
		if err != nil {
			return err
		}
		if blocking {
			t.Fatal("closed order must not block table")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view closed order: %v", err)
	}
}

func TestBookingStore_PostgresVersionConflict(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedBookingFixtures(t, store)

	bookingStore := NewBookingStore(store)
	ctx := context.Background()

	err := bookingStore.Serializable(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		table, err := tx.GetTable(ctx, "table-1")
		if err != nil {
			return err
		}

		stale := table
		stale.Version = table.Version + 42
		if saveErr := tx.SaveTable(ctx, stale); !errors.Is(saveErr, domain.ErrVersionConflict) {
			t.Fatalf("stale save error = %v, want ErrVersionConflict", saveErr)
		}

		missing := table
		missing.ID = "missing"
		if saveErr := tx.SaveTable(ctx, missing); !errors.Is(saveErr, domain.ErrTableNotFound) {
			t.Fatalf("missing save error = %v, want ErrTableNotFound", saveErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}
