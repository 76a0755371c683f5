package booking

import (
	"context"
	"time"

	"github.com/stanislavgolubev/rbs/internal/domain"
)

// Availability — снимок занятости ресторана в окне вместимости.
// Снимок носит информационный характер: решение о подтверждении брони
// принимается только внутри SERIALIZABLE-транзакции на свежих данных.
type Availability struct {
	RestaurantID   string
	WindowFrom     time.Time
	WindowTo       time.Time
	TotalCapacity  int32
	OccupiedSeats  int32
	AvailableSeats int32
}

// checkCapacity сверяет запрошенную компанию с суммарной вместимостью
// ресторана в окне [from, to]. Занятость всегда пересчитывается заново:
// отмены освобождают места без какой-либо явной нотификации.
func checkCapacity(ctx context.Context, tx domain.BookingTx, restaurantID string, partySize int32, from, to time.Time) error {
	total, err := tx.TotalCapacity(ctx, restaurantID)
	if err != nil {
		return err
	}
	occupied, err := tx.OccupiedSeats(ctx, restaurantID, from, to)
	if err != nil {
		return err
	}
	if occupied+partySize > total {
		return domain.ErrInsufficientCapacity
	}
	return nil
}

// checkTable проверяет запрошенный стол: принадлежность ресторану,
// вместимость относительно компании и отсутствие пересекающихся броней.
func checkTable(ctx context.Context, tx domain.BookingTx, restaurantID, tableID string, partySize int32, from, to time.Time) error {
	table, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if table.RestaurantID != restaurantID {
		return domain.ErrTableNotFound
	}
	if table.Capacity < partySize {
		return domain.ErrTableTooSmall
	}
	overlap, err := tx.TableHasOverlap(ctx, tableID, from, to)
	if err != nil {
		return err
	}
	if overlap {
		return domain.ErrTableConflict
	}
	return nil
}

// Availability возвращает снимок занятости ресторана вокруг времени at.
func (s *Service) Availability(ctx context.Context, restaurantID string, at time.Time) (Availability, error) {
	var result Availability

	err := s.store.View(ctx, func(ctx context.Context, tx domain.BookingTx) error {
		if _, err := tx.GetRestaurant(ctx, restaurantID); err != nil {
			return err
		}

		from, to := at.Add(-s.buffer), at.Add(s.buffer)
		total, err := tx.TotalCapacity(ctx, restaurantID)
		if err != nil {
			return err
		}
		occupied, err := tx.OccupiedSeats(ctx, restaurantID, from, to)
		if err != nil {
			return err
		}

		available := total - occupied
		if available < 0 {
			available = 0
		}
		result = Availability{
			RestaurantID:   restaurantID,
			WindowFrom:     from,
			WindowTo:       to,
			TotalCapacity:  total,
			OccupiedSeats:  occupied,
			AvailableSeats: available,
		}
		return nil
	})
	if err != nil {
		return Availability{}, err
	}
	return result, nil
}
