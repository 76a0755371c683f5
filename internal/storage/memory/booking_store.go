package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stanislavgolubev/rbs/internal/domain"
)

// BookingStore — in-memory реализация domain.BookingStore для разработки и тестов.
// Транзакции исполняются под одним мьютексом, то есть строго по очереди —
// это и есть сериализуемое исполнение. Все мутации буферизуются в копии
// данных и применяются только при успешном завершении замыкания.
type BookingStore struct {
	mu           sync.Mutex
	restaurants  map[string]domain.Restaurant
	tables       map[string]domain.Table
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
	menu         map[string]domain.MenuItem
	outbox       domain.OutboxRepository

	// failCommits заставляет следующие N сериализуемых транзакций завершиться
	// ErrTxSerialization уже после успешного выполнения замыкания — имитация
	// аборта на commit для проверки retry-логики.
	failCommits int
}

// NewBookingStore создаёт пустое in-memory хранилище.
// Outbox-сообщения, поставленные внутри транзакций, попадают в sink после commit.
func NewBookingStore(sink domain.OutboxRepository) *BookingStore {
	return &BookingStore{
		restaurants:  make(map[string]domain.Restaurant),
		tables:       make(map[string]domain.Table),
		reservations: make(map[string]domain.Reservation),
		orders:       make(map[string]domain.Order),
		menu:         make(map[string]domain.MenuItem),
		outbox:       sink,
	}
}

// FailNextCommits планирует n искусственных конфликтов сериализации.
func (s *BookingStore) FailNextCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = n
}

// SeedRestaurant кладёт ресторан в хранилище напрямую (для тестов и демо-данных).
func (s *BookingStore) SeedRestaurant(r domain.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restaurants[r.ID] = r
}

// SeedTable кладёт стол в хранилище напрямую.
func (s *BookingStore) SeedTable(t domain.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.ID] = t
}

// SeedMenuItem кладёт позицию меню в хранилище напрямую.
func (s *BookingStore) SeedMenuItem(m domain.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu[m.ID] = m
}

// Serializable выполняет fn как одну сериализуемую транзакцию.
func (s *BookingStore) Serializable(ctx context.Context, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	return s.run(ctx, fn, true)
}

// View выполняет fn в read-only режиме; мутации отбрасываются.
func (s *BookingStore) View(ctx context.Context, fn func(ctx context.Context, tx domain.BookingTx) error) error {
	return s.run(ctx, fn, false)
}

func (s *BookingStore) run(ctx context.Context, fn func(ctx context.Context, tx domain.BookingTx) error, commit bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &bookingTx{store: s, snapshot: s.copyState()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if !commit {
		return nil
	}

	if s.failCommits > 0 {
		s.failCommits--
		return domain.ErrTxSerialization
	}

	s.restaurants = tx.snapshot.restaurants
	s.tables = tx.snapshot.tables
	s.reservations = tx.snapshot.reservations
	s.orders = tx.snapshot.orders
	s.menu = tx.snapshot.menu

	if s.outbox != nil {
		for _, msg := range tx.pendingOutbox {
			if _, err := s.outbox.Enqueue(msg); err != nil {
				return err
			}
		}
	}

	return nil
}

type state struct {
	restaurants  map[string]domain.Restaurant
	tables       map[string]domain.Table
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
	menu         map[string]domain.MenuItem
}

func (s *BookingStore) copyState() state {
	snap := state{
		restaurants:  make(map[string]domain.Restaurant, len(s.restaurants)),
		tables:       make(map[string]domain.Table, len(s.tables)),
		reservations: make(map[string]domain.Reservation, len(s.reservations)),
		orders:       make(map[string]domain.Order, len(s.orders)),
		menu:         make(map[string]domain.MenuItem, len(s.menu)),
	}
	for k, v := range s.restaurants {
		snap.restaurants[k] = v
	}
	for k, v := range s.tables {
		snap.tables[k] = v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = copyOrder(v)
	}
	for k, v := range s.menu {
		snap.menu[k] = v
	}
	return snap
}

func copyOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// bookingTx работает с копией состояния; store не трогается до commit.
type bookingTx struct {
	store         *BookingStore
	snapshot      state
	pendingOutbox []domain.OutboxMessage
}

func (t *bookingTx) GetRestaurant(_ context.Context, id string) (domain.Restaurant, error) {
	r, ok := t.snapshot.restaurants[id]
	if !ok {
		return domain.Restaurant{}, domain.ErrRestaurantNotFound
	}
	return r, nil
}

func (t *bookingTx) GetTable(_ context.Context, id string) (domain.Table, error) {
	table, ok := t.snapshot.tables[id]
	if !ok {
		return domain.Table{}, domain.ErrTableNotFound
	}
	return table, nil
}

func (t *bookingTx) SaveTable(_ context.Context, table domain.Table) error {
	current, ok := t.snapshot.tables[table.ID]
	if !ok {
		return domain.ErrTableNotFound
	}
	if current.Version != table.Version {
		return domain.ErrVersionConflict
	}
	table.Version++
	table.UpdatedAt = time.Now().UTC()
	t.snapshot.tables[table.ID] = table
	return nil
}

func (t *bookingTx) TotalCapacity(_ context.Context, restaurantID string) (int32, error) {
	var total int32
	for _, table := range t.snapshot.tables {
		if table.RestaurantID == restaurantID {
			total += table.Capacity
		}
	}
	return total, nil
}

func (t *bookingTx) OccupiedSeats(_ context.Context, restaurantID string, from, to time.Time) (int32, error) {
	var seats int32
	for _, r := range t.snapshot.reservations {
		if r.RestaurantID != restaurantID || !r.HoldsCapacity() {
			continue
		}
		if inWindow(r.ReservedFor, from, to) {
			seats += r.PartySize
		}
	}
	return seats, nil
}

func (t *bookingTx) TableHasOverlap(_ context.Context, tableID string, from, to time.Time) (bool, error) {
	for _, r := range t.snapshot.reservations {
		if r.TableID != tableID || !r.HoldsCapacity() {
			continue
		}
		if inWindow(r.ReservedFor, from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (t *bookingTx) CreateReservation(_ context.Context, reservation domain.Reservation) error {
	if _, exists := t.snapshot.reservations[reservation.ID]; exists {
		return domain.ErrVersionConflict
	}
	t.snapshot.reservations[reservation.ID] = reservation
	return nil
}

func (t *bookingTx) GetReservation(_ context.Context, id string) (domain.Reservation, error) {
	r, ok := t.snapshot.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (t *bookingTx) SaveReservation(_ context.Context, reservation domain.Reservation) error {
	current, ok := t.snapshot.reservations[reservation.ID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if current.Version != reservation.Version {
		return domain.ErrVersionConflict
	}
	reservation.Version++
	reservation.UpdatedAt = time.Now().UTC()
	t.snapshot.reservations[reservation.ID] = reservation
	return nil
}

func (t *bookingTx) OpenOrderExists(_ context.Context, tableID string) (bool, error) {
	for _, o := range t.snapshot.orders {
		if o.TableID == tableID && o.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (t *bookingTx) BlockingOrderExists(_ context.Context, tableID string) (bool, error) {
	for _, o := range t.snapshot.orders {
		if o.TableID == tableID && o.Blocks() {
			return true, nil
		}
	}
	return false, nil
}

func (t *bookingTx) CreateOrder(_ context.Context, order domain.Order) error {
	if _, exists := t.snapshot.orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	t.snapshot.orders[order.ID] = copyOrder(order)
	return nil
}

func (t *bookingTx) GetOrder(_ context.Context, id string) (domain.Order, error) {
	o, ok := t.snapshot.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (t *bookingTx) SaveOrder(_ context.Context, order domain.Order) error {
	current, ok := t.snapshot.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	t.snapshot.orders[order.ID] = copyOrder(order)
	return nil
}

func (t *bookingTx) MenuItems(_ context.Context, restaurantID string, ids []string) ([]domain.MenuItem, error) {
	result := make([]domain.MenuItem, 0, len(ids))
	for _, id := range ids {
		item, ok := t.snapshot.menu[id]
		if !ok || item.RestaurantID != restaurantID {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (t *bookingTx) EnqueueOutbox(_ context.Context, msg domain.OutboxMessage) error {
	t.pendingOutbox = append(t.pendingOutbox, msg)
	return nil
}

// inWindow проверяет попадание времени брони в закрытое окно [from, to].
func inWindow(at, from, to time.Time) bool {
	return !at.Before(from) && !at.After(to)
}

var (
	_ domain.BookingStore = (*BookingStore)(nil)
	_ domain.BookingTx    = (*bookingTx)(nil)
)
