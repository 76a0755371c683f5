package domain

import "time"

// OrderStatus описывает жизненный цикл открытого счёта на столе.
type OrderStatus string

const (
	// OrderStatusOpen — счёт открыт, позиции можно добавлять.
	OrderStatusOpen OrderStatus = "open"
	// OrderStatusPaymentPending — счёт выставлен, ожидаем оплату.
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	// OrderStatusClosed — счёт закрыт; терминальный статус.
	OrderStatusClosed OrderStatus = "closed"
)

// Station определяет цех, готовящий позицию.
type Station string

const (
	StationKitchen Station = "kitchen"
	StationBar     Station = "bar"
)

// ItemStatus отражает продвижение позиции по цеху.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusCooking ItemStatus = "cooking"
	ItemStatusReady   ItemStatus = "ready"
	ItemStatusServed  ItemStatus = "served"
)

// ParseItemStatus валидирует строковое значение статуса позиции.
func ParseItemStatus(s string) (ItemStatus, error) {
	switch ItemStatus(s) {
	case ItemStatusPending, ItemStatusCooking, ItemStatusReady, ItemStatusServed:
		return ItemStatus(s), nil
	}
	return "", ErrInvalidItemStatus
}

// itemTransitions задаёт движение позиции по цеху строго вперёд.
var itemTransitions = map[ItemStatus]ItemStatus{
	ItemStatusPending: ItemStatusCooking,
	ItemStatusCooking: ItemStatusReady,
	ItemStatusReady:   ItemStatusServed,
}

// OrderItem представляет одну позицию счёта.
type OrderItem struct {
	ID         string
	MenuItemID string
	Name       string
	Qty        int32
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	Station    Station
	Status     ItemStatus
	CreatedAt  time.Time
}

// Transition продвигает позицию по цеху или возвращает ErrItemTransition.
func (i *OrderItem) Transition(target ItemStatus) error {
	if itemTransitions[i.Status] != target {
		return ErrItemTransition
	}
	i.Status = target
	return nil
}

// Discount описывает скидку при закрытии счёта: либо фиксированная сумма,
// либо процент, но не то и другое сразу.
type Discount struct {
	AmountMinor int64
	Percent     int32
}

// Validate проверяет корректность скидки.
func (d Discount) Validate() error {
	if d.AmountMinor < 0 || d.Percent < 0 || d.Percent > 100 {
		return ErrInvalidDiscount
	}
	if d.AmountMinor > 0 && d.Percent > 0 {
		return ErrInvalidDiscount
	}
	return nil
}

// Apply возвращает сумму после вычета скидки, не опускаясь ниже нуля.
func (d Discount) Apply(totalMinor int64) int64 {
	discounted := totalMinor
	switch {
	case d.Percent > 0:
		discounted = totalMinor * int64(100-d.Percent) / 100
	case d.AmountMinor > 0:
		discounted = totalMinor - d.AmountMinor
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}

// Order агрегирует открытый счёт стола и его позиции.
type Order struct {
	ID           string
	RestaurantID string
	TableID      string
	Status       OrderStatus
	// TotalMinor всегда пересчитывается из позиций и никогда не берётся
	// из клиентского ввода.
	TotalMinor    int64
	TipMinor      int64
	Discount      Discount
	FinalMinor    int64
	Items         []OrderItem
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      time.Time
}

// IsOpen возвращает true, если в счёт ещё можно добавлять позиции.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

// Blocks возвращает true, если счёт не даёт освободить стол (zombie guard).
func (o *Order) Blocks() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPaymentPending
}

// RecomputeTotal детерминированно пересчитывает сумму счёта из позиций.
// Повторный пересчёт на том же наборе позиций даёт то же значение.
func (o *Order) RecomputeTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += int64(item.Qty) * item.PriceMinor
	}
	o.TotalMinor = total
	return total
}

// RequestBill переводит счёт в ожидание оплаты; позиции больше не добавляются.
func (o *Order) RequestBill() error {
	if !o.IsOpen() {
		return ErrOrderNotOpen
	}
	o.Status = OrderStatusPaymentPending
	return nil
}

// Close закрывает счёт с чаевыми и скидкой. Статус стола здесь не меняется:
// освобождение — отдельное явное действие персонала.
func (o *Order) Close(tipMinor int64, discount Discount, now time.Time) error {
	if o.Status == OrderStatusClosed {
		return ErrOrderNotOpen
	}
	if tipMinor < 0 {
		return ErrInvalidTip
	}
	if err := discount.Validate(); err != nil {
		return err
	}

	o.RecomputeTotal()
	o.TipMinor = tipMinor
	o.Discount = discount
	o.FinalMinor = discount.Apply(o.TotalMinor) + tipMinor
	o.Status = OrderStatusClosed
	o.ClosedAt = now
	return nil
}

// Validate проверяет базовые инварианты счёта и возвращает список замечаний.
func (o *Order) Validate() []error {
	var errs []error

	if o.RestaurantID == "" {
		errs = append(errs, ErrRestaurantIDRequired)
	}
	if o.TableID == "" {
		errs = append(errs, ErrTableIDRequired)
	}
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}
