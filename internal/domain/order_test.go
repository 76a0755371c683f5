package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stanislavgolubev/rbs/internal/domain"
)

func TestOrder_RecomputeTotal(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.OrderItem
		want  int64
	}{
		{
			name:  "empty order",
			items: nil,
			want:  0,
		},
		{
			name: "single item",
			items: []domain.OrderItem{
				{Qty: 2, PriceMinor: 1500},
			},
			want: 3000,
		},
		{
			name: "mixed stations",
			items: []domain.OrderItem{
				{Qty: 1, PriceMinor: 45900, Station: domain.StationKitchen},
				{Qty: 3, PriceMinor: 700, Station: domain.StationBar},
				{Qty: 2, PriceMinor: 1250, Station: domain.StationKitchen},
			},
			want: 50500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &domain.Order{Items: tt.items}
			if got := order.RecomputeTotal(); got != tt.want {
				t.Errorf("RecomputeTotal() = %d, want %d", got, tt.want)
			}
			// Повторный пересчёт не должен накапливать дрейф.
			if got := order.RecomputeTotal(); got != tt.want {
				t.Errorf("second RecomputeTotal() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOrder_Close(t *testing.T) {
	now := time.Date(2025, 11, 3, 21, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    domain.OrderStatus
		tipMinor  int64
		discount  domain.Discount
		wantErr   error
		wantFinal int64
	}{
		{
			name:      "no tip no discount",
			status:    domain.OrderStatusOpen,
			wantFinal: 10000,
		},
		{
			name:      "flat discount",
			status:    domain.OrderStatusOpen,
			discount:  domain.Discount{AmountMinor: 2500},
			wantFinal: 7500,
		},
		{
			name:      "percent discount with tip",
			status:    domain.OrderStatusOpen,
			tipMinor:  1000,
			discount:  domain.Discount{Percent: 10},
			wantFinal: 10000,
		},
		{
			name:      "discount larger than total clamps to zero",
			status:    domain.OrderStatusOpen,
			tipMinor:  500,
			discount:  domain.Discount{AmountMinor: 50000},
			wantFinal: 500,
		},
		{
			name:      "close from payment_pending",
			status:    domain.OrderStatusPaymentPending,
			wantFinal: 10000,
		},
		{
			name:    "already closed",
			status:  domain.OrderStatusClosed,
			wantErr: domain.ErrOrderNotOpen,
		},
		{
			name:     "negative tip",
			status:   domain.OrderStatusOpen,
			tipMinor: -1,
			wantErr:  domain.ErrInvalidTip,
		},
		{
			name:     "both discount forms set",
			status:   domain.OrderStatusOpen,
			discount: domain.Discount{AmountMinor: 100, Percent: 5},
			wantErr:  domain.ErrInvalidDiscount,
		},
		{
			name:     "percent above hundred",
			status:   domain.OrderStatusOpen,
			discount: domain.Discount{Percent: 101},
			wantErr:  domain.ErrInvalidDiscount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &domain.Order{
				Status: tt.status,
				Items: []domain.OrderItem{
					{Qty: 2, PriceMinor: 5000},
				},
			}

			err := order.Close(tt.tipMinor, tt.discount, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Close() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Close() unexpected error: %v", err)
			}
			if order.Status != domain.OrderStatusClosed {
				t.Errorf("status = %s, want closed", order.Status)
			}
			if order.FinalMinor != tt.wantFinal {
				t.Errorf("FinalMinor = %d, want %d", order.FinalMinor, tt.wantFinal)
			}
			if !order.ClosedAt.Equal(now) {
				t.Errorf("ClosedAt = %v, want %v", order.ClosedAt, now)
			}
		})
	}
}

func TestOrder_RequestBill(t *testing.T) {
	order := &domain.Order{Status: domain.OrderStatusOpen}
	if err := order.RequestBill(); err != nil {
		t.Fatalf("RequestBill() unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusPaymentPending {
		t.Errorf("status = %s, want payment_pending", order.Status)
	}
	if err := order.RequestBill(); !errors.Is(err, domain.ErrOrderNotOpen) {
		t.Errorf("second RequestBill() error = %v, want ErrOrderNotOpen", err)
	}
}

func TestOrder_Blocks(t *testing.T) {
	tests := []struct {
		status domain.OrderStatus
		want   bool
	}{
		{domain.OrderStatusOpen, true},
		{domain.OrderStatusPaymentPending, true},
		{domain.OrderStatusClosed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			order := &domain.Order{Status: tt.status}
			if got := order.Blocks(); got != tt.want {
				t.Errorf("Blocks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderItem_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.ItemStatus
		to      domain.ItemStatus
		wantErr bool
	}{
		{"pending to cooking", domain.ItemStatusPending, domain.ItemStatusCooking, false},
		{"cooking to ready", domain.ItemStatusCooking, domain.ItemStatusReady, false},
		{"ready to served", domain.ItemStatusReady, domain.ItemStatusServed, false},
		{"pending to ready skips cooking", domain.ItemStatusPending, domain.ItemStatusReady, true},
		{"served is terminal", domain.ItemStatusServed, domain.ItemStatusPending, true},
		{"backwards", domain.ItemStatusReady, domain.ItemStatusCooking, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &domain.OrderItem{Status: tt.from}
			err := item.Transition(tt.to)
			if tt.wantErr && !errors.Is(err, domain.ErrItemTransition) {
				t.Errorf("Transition(%s) error = %v, want ErrItemTransition", tt.to, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Transition(%s) unexpected error: %v", tt.to, err)
			}
		})
	}
}

func TestOrder_Validate(t *testing.T) {
	order := &domain.Order{
		RestaurantID: "rest-1",
		TableID:      "table-1",
		Items: []domain.OrderItem{
			{Qty: 1, PriceMinor: 100},
		},
	}
	if errs := order.Validate(); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}

	bad := &domain.Order{
		Items: []domain.OrderItem{
			{Qty: 0, PriceMinor: -5},
		},
	}
	if errs := bad.Validate(); len(errs) != 4 {
		t.Errorf("expected 4 errors, got %d: %v", len(errs), errs)
	}
}
