package domain

import (
	"fmt"
	"testing"
)

func TestIsRejection(t *testing.T) {
	rejecting := []error{
		ErrRestaurantUnavailable,
		ErrInsufficientCapacity,
		ErrTableConflict,
		ErrTableTooSmall,
		ErrItemUnavailable,
		ErrActiveOrderExists,
		ErrOrderAlreadyOpen,
		ErrReservationNotCancellable,
		fmt.Errorf("create reservation: %w", ErrTableConflict),
	}
	for _, err := range rejecting {
		if !IsRejection(err) {
			t.Errorf("IsRejection(%v) = false, want true", err)
		}
	}

	transient := []error{
		ErrTxSerialization,
		ErrBookingConflict,
		ErrOrderNotFound,
		fmt.Errorf("commit: %w", ErrTxSerialization),
		nil,
	}
	for _, err := range transient {
		if IsRejection(err) {
			t.Errorf("IsRejection(%v) = true, want false", err)
		}
	}
}

func TestIsSerializationFailure(t *testing.T) {
	if !IsSerializationFailure(ErrTxSerialization) {
		t.Error("bare ErrTxSerialization not detected")
	}
	if !IsSerializationFailure(fmt.Errorf("booking tx: %w", ErrTxSerialization)) {
		t.Error("wrapped ErrTxSerialization not detected")
	}
	if IsSerializationFailure(ErrTableConflict) {
		t.Error("domain rejection must not look like a serialization failure")
	}
}
