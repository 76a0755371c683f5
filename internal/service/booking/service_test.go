package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/storage/memory"
)

var reservedAt = time.Date(2026, 2, 14, 19, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.BookingStore) {
	t.Helper()

	store := memory.NewBookingStore(memory.NewOutboxRepository())
	store.SeedRestaurant(domain.Restaurant{ID: "rest-1", Status: domain.RestaurantStatusActive})
	store.SeedTable(domain.Table{ID: "table-1", RestaurantID: "rest-1", Capacity: 4, Status: domain.TableStatusFree})
	store.SeedTable(domain.Table{ID: "table-2", RestaurantID: "rest-1", Capacity: 6, Status: domain.TableStatusFree})

	svc := NewServiceWithoutMetrics(store, memory.NewTimelineRepository(), DefaultSeatingBuffer, nil)
	svc.retry.InitialDelay = time.Millisecond
	svc.retry.MaxDelay = time.Millisecond
	return svc, store
}

func TestCreateReservation_Confirms(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusConfirmed, res.Status)
	require.NotEmpty(t, res.ID)
}

func TestCreateReservation_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		RestaurantID: "",
		PartySize:    0,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrRestaurantIDRequired)
	require.ErrorIs(t, err, domain.ErrPartySizeInvalid)
	require.ErrorIs(t, err, domain.ErrReservedForRequired)
}

func TestCreateReservation_RestaurantUnavailable(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedRestaurant(domain.Restaurant{ID: "rest-2", Status: domain.RestaurantStatusSuspended})

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		RestaurantID: "rest-2",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.ErrorIs(t, err, domain.ErrRestaurantUnavailable)
}

func TestCreateReservation_CapacityConservation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Вместимость ресторана 10 мест: пять компаний по два проходят,
	// шестая в том же окне получает отказ.
	for i := 0; i < 5; i++ {
		_, err := svc.CreateReservation(ctx, CreateReservationRequest{
			RestaurantID: "rest-1",
			PartySize:    2,
			ReservedFor:  reservedAt,
		})
		require.NoError(t, err, "party %d", i+1)
	}

	_, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)
}

func TestCreateReservation_CapacityFreedByCancel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var last domain.Reservation
	for i := 0; i < 5; i++ {
		res, err := svc.CreateReservation(ctx, CreateReservationRequest{
			RestaurantID: "rest-1",
			PartySize:    2,
			ReservedFor:  reservedAt,
		})
		require.NoError(t, err)
		last = res
	}

	_, err := svc.CancelReservation(ctx, last.ID)
	require.NoError(t, err)

	// Отмена освобождает места без явной нотификации.
	_, err = svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)
}

func TestCreateReservation_TableConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	// Второй запрос на тот же стол на 45 минут позже — внутри окна Δ.
	_, err = svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		PartySize:    2,
		ReservedFor:  reservedAt.Add(45 * time.Minute),
	})
	require.ErrorIs(t, err, domain.ErrTableConflict)

	// Тот же стол вне окна — без конфликта.
	_, err = svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		PartySize:    2,
		ReservedFor:  reservedAt.Add(4 * time.Hour),
	})
	require.NoError(t, err)
}

func TestCreateReservation_TableTooSmall(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		PartySize:    6,
		ReservedFor:  reservedAt,
	})
	require.ErrorIs(t, err, domain.ErrTableTooSmall)
}

func TestCreateReservation_RetryOnSerializationConflict(t *testing.T) {
	svc, store := newTestService(t)
	store.FailNextCommits(1)

	res, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	// Ровно одна бронь, несмотря на повтор транзакции.
	got, err := svc.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusConfirmed, got.Status)

	avail, err := svc.Availability(context.Background(), "rest-1", reservedAt)
	require.NoError(t, err)
	require.Equal(t, int32(2), avail.OccupiedSeats)
}

func TestCreateReservation_ConflictAfterRetriesExhausted(t *testing.T) {
	svc, store := newTestService(t)
	store.FailNextCommits(3)

	_, err := svc.CreateReservation(context.Background(), CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.ErrorIs(t, err, domain.ErrBookingConflict)

	// После исчерпания попыток хранилище остаётся чистым.
	avail, availErr := svc.Availability(context.Background(), "rest-1", reservedAt)
	require.NoError(t, availErr)
	require.Equal(t, int32(0), avail.OccupiedSeats)
}

func TestCreateReservation_NoRetryOnRejection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	// Доменный отказ не ретраится: запланированный конфликт сериализации
	// не должен быть израсходован.
	store.FailNextCommits(1)
	_, err = svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.ErrorIs(t, err, domain.ErrTableConflict)
	require.NotErrorIs(t, err, domain.ErrBookingConflict)
}

func TestCheckIn_SeatsReservationAndOccupiesTable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	seated, err := svc.CheckIn(ctx, res.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusSeated, seated.Status)
	require.Equal(t, "table-1", seated.TableID)
}

func TestCheckIn_PoolReservationRequiresTable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	_, err = svc.CheckIn(ctx, res.ID, "")
	require.ErrorIs(t, err, domain.ErrTableIDRequired)

	seated, err := svc.CheckIn(ctx, res.ID, "table-2")
	require.NoError(t, err)
	require.Equal(t, "table-2", seated.TableID)
}

func TestCancelReservation_Transitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	cancelled, err := svc.CancelReservation(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusCancelled, cancelled.Status)

	// Повторная отмена и отмена из терминального статуса отклоняются.
	_, err = svc.CancelReservation(ctx, res.ID)
	require.ErrorIs(t, err, domain.ErrReservationNotCancellable)
}

func TestMarkNoShowAndComplete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	noShow, err := svc.MarkNoShow(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusNoShow, noShow.Status)

	second, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		TableID:      "table-2",
		PartySize:    2,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	_, err = svc.CheckIn(ctx, second.ID, "")
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusCompleted, completed.Status)

	// no_show терминален: завершить его нельзя.
	_, err = svc.Complete(ctx, first.ID)
	require.ErrorIs(t, err, domain.ErrReservationTransition)
}

func TestAvailability_Snapshot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateReservation(ctx, CreateReservationRequest{
		RestaurantID: "rest-1",
		PartySize:    4,
		ReservedFor:  reservedAt,
	})
	require.NoError(t, err)

	avail, err := svc.Availability(ctx, "rest-1", reservedAt)
	require.NoError(t, err)
	require.Equal(t, int32(10), avail.TotalCapacity)
	require.Equal(t, int32(4), avail.OccupiedSeats)
	require.Equal(t, int32(6), avail.AvailableSeats)

	_, err = svc.Availability(ctx, "missing", reservedAt)
	require.ErrorIs(t, err, domain.ErrRestaurantNotFound)
}

func TestConcurrentBooking_ExactlyOneWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const workers = 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			_, err := svc.CreateReservation(ctx, CreateReservationRequest{
				RestaurantID: "rest-1",
				TableID:      "table-1",
				PartySize:    2,
				ReservedFor:  reservedAt,
				Notes:        fmt.Sprintf("party-%d", i),
			})
			results <- err
		}(i)
	}

	var confirmed, conflicted int
	for i := 0; i < workers; i++ {
		err := <-results
		switch {
		case err == nil:
			confirmed++
		case errors.Is(err, domain.ErrTableConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, confirmed, "exactly one booking must win the table")
	require.Equal(t, workers-1, conflicted)
}
