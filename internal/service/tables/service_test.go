package tables

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.BookingStore) {
	t.Helper()

	store := memory.NewBookingStore(memory.NewOutboxRepository())
	store.SeedRestaurant(domain.Restaurant{ID: "rest-1", Status: domain.RestaurantStatusActive})
	store.SeedTable(domain.Table{ID: "table-1", RestaurantID: "rest-1", Capacity: 4, Status: domain.TableStatusFree})

	svc := NewServiceWithoutMetrics(store, nil)
	svc.retryDelay = 0
	return svc, store
}

func seedOrder(t *testing.T, store *memory.BookingStore, status domain.OrderStatus) {
	t.Helper()

	err := store.Serializable(context.Background(), func(ctx context.Context, tx domain.BookingTx) error {
		return tx.CreateOrder(ctx, domain.Order{
			ID:           "order-1",
			RestaurantID: "rest-1",
			TableID:      "table-1",
			Status:       status,
			CreatedAt:    time.Now().UTC(),
		})
	})
	require.NoError(t, err)
}

func TestSetStatus_ValidTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	steps := []string{"reserved", "occupied", "payment_pending", "free"}
	for _, step := range steps {
		table, err := svc.SetStatus(ctx, "table-1", step)
		require.NoError(t, err, "transition to %s", step)
		require.Equal(t, domain.TableStatus(step), table.Status)
	}
}

func TestSetStatus_InvalidStatusValue(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SetStatus(context.Background(), "table-1", "broken")
	require.ErrorIs(t, err, domain.ErrInvalidTableStatus)
}

func TestSetStatus_InvalidTransition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// free → payment_pending в матрице переходов отсутствует.
	_, err := svc.SetStatus(ctx, "table-1", "payment_pending")
	require.ErrorIs(t, err, domain.ErrTableTransition)

	// Переход в текущий статус тоже отклоняется.
	_, err = svc.SetStatus(ctx, "table-1", "free")
	require.ErrorIs(t, err, domain.ErrTableTransition)

	// Состояние стола не изменилось.
	table, err := svc.Get(ctx, "table-1")
	require.NoError(t, err)
	require.Equal(t, domain.TableStatusFree, table.Status)
}

func TestSetStatus_ZombieGuardBlocksFree(t *testing.T) {
	cases := []struct {
		name    string
		status  domain.OrderStatus
		blocked bool
	}{
		{"open order blocks", domain.OrderStatusOpen, true},
		{"payment pending blocks", domain.OrderStatusPaymentPending, true},
		{"closed order does not block", domain.OrderStatusClosed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newTestService(t)
			ctx := context.Background()

			_, err := svc.SetStatus(ctx, "table-1", "occupied")
			require.NoError(t, err)
			seedOrder(t, store, tc.status)

			_, err = svc.SetStatus(ctx, "table-1", "free")
			if tc.blocked {
				require.ErrorIs(t, err, domain.ErrActiveOrderExists)

				// Стол остался занятым.
				table, getErr := svc.Get(ctx, "table-1")
				require.NoError(t, getErr)
				require.Equal(t, domain.TableStatusOccupied, table.Status)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSetStatus_UnknownTable(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SetStatus(context.Background(), "missing", "occupied")
	require.ErrorIs(t, err, domain.ErrTableNotFound)
}

func TestSetStatus_RetriesSerializationConflict(t *testing.T) {
	svc, store := newTestService(t)
	store.FailNextCommits(1)

	table, err := svc.SetStatus(context.Background(), "table-1", "reserved")
	require.NoError(t, err)
	require.Equal(t, domain.TableStatusReserved, table.Status)
}
