package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stanislavgolubev/rbs/internal/domain"
)

// BookingStore — PostgreSQL-реализация domain.BookingStore.
// Транзакции букинга исполняются на уровне SERIALIZABLE: предикатные
// блокировки Postgres абортят одну из пересекающихся транзакций кодом
// 40001, который наверх уходит как domain.ErrTxSerialization.
type BookingStore struct {
	db *sql.DB
}

// NewBookingStore создаёт стор поверх открытого подключения.
func NewBookingStore(store *Store) *BookingStore {
	return &BookingStore{db: store.DB()}
}

// Serializable выполняет fn в транзакции SERIALIZABLE.
func (s *BookingStore) Serializable(ctx context.Context, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	return s.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
}

// View выполняет fn в read-only транзакции с изоляцией по умолчанию.
func (s *BookingStore) View(ctx context.Context, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	return s.runTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *BookingStore) runTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}

	if err := fn(ctx, &bookingTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return mapSerializationError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapSerializationError(fmt.Errorf("commit booking tx: %w", err))
	}
	return nil
}

// mapSerializationError переводит аборты сериализации (40001) и deadlock
// (40P01) в domain.ErrTxSerialization; остальные ошибки проходят как есть.
func mapSerializationError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%w: %v", domain.ErrTxSerialization, err)
		}
	}
	return err
}

type bookingTx struct {
	tx *sql.Tx
}

func (t *bookingTx) GetRestaurant(ctx context.Context, id string) (domain.Restaurant, error) {
	var r domain.Restaurant
	var status string

	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM restaurants
		WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Restaurant{}, domain.ErrRestaurantNotFound
		}
		return domain.Restaurant{}, fmt.Errorf("select restaurant: %w", err)
	}
	r.Status = domain.RestaurantStatus(status)
	return r, nil
}

func (t *bookingTx) GetTable(ctx context.Context, id string) (domain.Table, error) {
	var table domain.Table
	var status string

	err := t.tx.QueryRowContext(ctx, `
		SELECT id, restaurant_id, label, capacity, status, pos_x, pos_y, version, created_at, updated_at
		FROM tables
		WHERE id = $1
	`, id).Scan(
		&table.ID, &table.RestaurantID, &table.Label, &table.Capacity, &status,
		&table.PosX, &table.PosY, &table.Version, &table.CreatedAt, &table.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Table{}, domain.ErrTableNotFound
		}
		return domain.Table{}, fmt.Errorf("select table: %w", err)
	}
	table.Status = domain.TableStatus(status)
	return table, nil
}

func (t *bookingTx) SaveTable(ctx context.Context, table domain.Table) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tables
		SET label = $1,
		    capacity = $2,
		    status = $3,
		    pos_x = $4,
		    pos_y = $5,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $6
		  AND version = $7
	`,
		table.Label, table.Capacity, string(table.Status),
		table.PosX, table.PosY, table.ID, table.Version,
	)
	if err != nil {
		return fmt.Errorf("update table: %w", err)
	}
	return t.checkAffected(ctx, res, "tables", table.ID, domain.ErrTableNotFound)
}

func (t *bookingTx) TotalCapacity(ctx context.Context, restaurantID string) (int32, error) {
	var total int32
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(capacity), 0)
		FROM tables
		WHERE restaurant_id = $1
	`, restaurantID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum table capacity: %w", err)
	}
	return total, nil
}

func (t *bookingTx) OccupiedSeats(ctx context.Context, restaurantID string, from, to time.Time) (int32, error) {
	var seats int32
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(party_size), 0)
		FROM reservations
		WHERE restaurant_id = $1
		  AND status IN ('confirmed', 'seated')
		  AND reserved_for BETWEEN $2 AND $3
	`, restaurantID, from, to).Scan(&seats)
	if err != nil {
		return 0, fmt.Errorf("sum occupied seats: %w", err)
	}
	return seats, nil
}

func (t *bookingTx) TableHasOverlap(ctx context.Context, tableID string, from, to time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM reservations
			WHERE table_id = $1
			  AND status IN ('confirmed', 'seated')
			  AND reserved_for BETWEEN $2 AND $3
		)
	`, tableID, from, to).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table overlap: %w", err)
	}
	return exists, nil
}

func (t *bookingTx) CreateReservation(ctx context.Context, reservation domain.Reservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (
			id, restaurant_id, table_id, party_size, reserved_for,
			notes, status, version, created_at, updated_at
		) VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)
	`,
		reservation.ID, reservation.RestaurantID, reservation.TableID,
		reservation.PartySize, reservation.ReservedFor, reservation.Notes,
		string(reservation.Status), reservation.Version,
		reservation.CreatedAt, reservation.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (t *bookingTx) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	var r domain.Reservation
	var status string

	err := t.tx.QueryRowContext(ctx, `
		SELECT id, restaurant_id, COALESCE(table_id, ''), party_size, reserved_for,
		       notes, status, version, created_at, updated_at
		FROM reservations
		WHERE id = $1
	`, id).Scan(
		&r.ID, &r.RestaurantID, &r.TableID, &r.PartySize, &r.ReservedFor,
		&r.Notes, &status, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	r.Status = domain.ReservationStatus(status)
	return r, nil
}

func (t *bookingTx) SaveReservation(ctx context.Context, reservation domain.Reservation) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE reservations
		SET table_id = NULLIF($1, ''),
		    party_size = $2,
		    reserved_for = $3,
		    notes = $4,
		    status = $5,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $6
		  AND version = $7
	`,
		reservation.TableID, reservation.PartySize, reservation.ReservedFor,
		reservation.Notes, string(reservation.Status),
		reservation.ID, reservation.Version,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return t.checkAffected(ctx, res, "reservations", reservation.ID, domain.ErrReservationNotFound)
}

func (t *bookingTx) OpenOrderExists(ctx context.Context, tableID string) (bool, error) {
	return t.orderExistsWithStatuses(ctx, tableID, []string{string(domain.OrderStatusOpen)})
}

func (t *bookingTx) BlockingOrderExists(ctx context.Context, tableID string) (bool, error) {
	return t.orderExistsWithStatuses(ctx, tableID, []string{
		string(domain.OrderStatusOpen),
		string(domain.OrderStatusPaymentPending),
	})
}

func (t *bookingTx) orderExistsWithStatuses(ctx context.Context, tableID string, statuses []string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM orders
			WHERE table_id = $1
			  AND status = ANY($2)
		)
	`, tableID, statuses).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blocking order: %w", err)
	}
	return exists, nil
}

func (t *bookingTx) CreateOrder(ctx context.Context, order domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	var closedAt any
	if !order.ClosedAt.IsZero() {
		closedAt = order.ClosedAt
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, restaurant_id, table_id, status, total_minor, tip_minor,
			discount_minor, discount_percent, final_minor, version,
			created_at, updated_at, closed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		order.ID, order.RestaurantID, order.TableID, string(order.Status),
		order.TotalMinor, order.TipMinor,
		order.Discount.AmountMinor, order.Discount.Percent, order.FinalMinor,
		order.Version, order.CreatedAt, order.UpdatedAt, closedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return t.replaceOrderItems(ctx, order)
}

func (t *bookingTx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var (
		order    domain.Order
		status   string
		closedAt sql.NullTime
	)

	err := t.tx.QueryRowContext(ctx, `
		SELECT id, restaurant_id, table_id, status, total_minor, tip_minor,
		       discount_minor, discount_percent, final_minor, version,
		       created_at, updated_at, closed_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.RestaurantID, &order.TableID, &status,
		&order.TotalMinor, &order.TipMinor,
		&order.Discount.AmountMinor, &order.Discount.Percent, &order.FinalMinor,
		&order.Version, &order.CreatedAt, &order.UpdatedAt, &closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	if closedAt.Valid {
		order.ClosedAt = closedAt.Time.UTC()
	}

	items, err := t.loadOrderItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (t *bookingTx) SaveOrder(ctx context.Context, order domain.Order) error {
	var closedAt any
	if !order.ClosedAt.IsZero() {
		closedAt = order.ClosedAt
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    total_minor = $2,
		    tip_minor = $3,
		    discount_minor = $4,
		    discount_percent = $5,
		    final_minor = $6,
		    version = version + 1,
		    updated_at = NOW(),
		    closed_at = $7
		WHERE id = $8
		  AND version = $9
	`,
		string(order.Status), order.TotalMinor, order.TipMinor,
		order.Discount.AmountMinor, order.Discount.Percent, order.FinalMinor,
		closedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := t.checkAffected(ctx, res, "orders", order.ID, domain.ErrOrderNotFound); err != nil {
		return err
	}
	return t.replaceOrderItems(ctx, order)
}

func (t *bookingTx) MenuItems(ctx context.Context, restaurantID string, ids []string) ([]domain.MenuItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, restaurant_id, name, price_minor, station, is_available
		FROM menu_items
		WHERE restaurant_id = $1
		  AND id = ANY($2)
		ORDER BY id
	`, restaurantID, ids)
	if err != nil {
		return nil, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	result := make([]domain.MenuItem, 0, len(ids))
	for rows.Next() {
		var item domain.MenuItem
		var station string
		if err := rows.Scan(&item.ID, &item.RestaurantID, &item.Name, &item.PriceMinor, &station, &item.IsAvailable); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		item.Station = domain.Station(station)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu items: %w", err)
	}
	return result, nil
}

func (t *bookingTx) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now)
	if err != nil {
		return fmt.Errorf("enqueue outbox in tx: %w", err)
	}
	return nil
}

// replaceOrderItems перезаписывает позиции счёта целиком; внутри
// SERIALIZABLE-транзакции это безопасно и проще точечных апдейтов.
func (t *bookingTx) replaceOrderItems(ctx context.Context, order domain.Order) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("clear order items: %w", err)
	}

	for _, item := range order.Items {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, menu_item_id, name, qty, price_minor, station, status, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			id, order.ID, item.MenuItemID, item.Name, item.Qty,
			item.PriceMinor, string(item.Station), string(item.Status), item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *bookingTx) loadOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, menu_item_id, name, qty, price_minor, station, status, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		var station, status string
		if err := rows.Scan(&item.ID, &item.MenuItemID, &item.Name, &item.Qty, &item.PriceMinor, &station, &status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Station = domain.Station(station)
		item.Status = domain.ItemStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// checkAffected различает отсутствие строки и конфликт версии при update
// с optimistic locking.
func (t *bookingTx) checkAffected(ctx context.Context, res sql.Result, table, id string, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := t.tx.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check row exists: %w", err)
	}
	if !exists {
		return notFound
	}
	return domain.ErrVersionConflict
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var (
	_ domain.BookingStore = (*BookingStore)(nil)
	_ domain.BookingTx    = (*bookingTx)(nil)
)
