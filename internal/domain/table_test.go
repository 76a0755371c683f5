package domain

import (
	"errors"
	"testing"
)

func TestParseTableStatus(t *testing.T) {
	valid := []string{"free", "occupied", "reserved", "payment_pending"}
	for _, s := range valid {
		if _, err := ParseTableStatus(s); err != nil {
			t.Errorf("ParseTableStatus(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "FREE", "cleaning", "zombie"}
	for _, s := range invalid {
		if _, err := ParseTableStatus(s); !errors.Is(err, ErrInvalidTableStatus) {
			t.Errorf("ParseTableStatus(%q) error = %v, want ErrInvalidTableStatus", s, err)
		}
	}
}

func TestTable_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    TableStatus
		to      TableStatus
		wantErr bool
	}{
		{"free to occupied", TableStatusFree, TableStatusOccupied, false},
		{"free to reserved", TableStatusFree, TableStatusReserved, false},
		{"reserved to occupied", TableStatusReserved, TableStatusOccupied, false},
		{"reserved back to free", TableStatusReserved, TableStatusFree, false},
		{"occupied to payment_pending", TableStatusOccupied, TableStatusPaymentPending, false},
		{"occupied to free", TableStatusOccupied, TableStatusFree, false},
		{"payment_pending to free", TableStatusPaymentPending, TableStatusFree, false},
		{"free to payment_pending", TableStatusFree, TableStatusPaymentPending, true},
		{"payment_pending to occupied", TableStatusPaymentPending, TableStatusOccupied, true},
		{"occupied to reserved", TableStatusOccupied, TableStatusReserved, true},
		{"no-op transition", TableStatusFree, TableStatusFree, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &Table{Status: tt.from}
			err := table.Transition(tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrTableTransition) {
					t.Errorf("Transition(%s) error = %v, want ErrTableTransition", tt.to, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition(%s) unexpected error: %v", tt.to, err)
			}
			if table.Status != tt.to {
				t.Errorf("status = %s, want %s", table.Status, tt.to)
			}
		})
	}
}

func TestTable_Validate(t *testing.T) {
	table := &Table{RestaurantID: "rest-1", Capacity: 4, Status: TableStatusFree}
	if errs := table.Validate(); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}

	bad := &Table{Capacity: 0, Status: "broken"}
	if errs := bad.Validate(); len(errs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(errs), errs)
	}
}
