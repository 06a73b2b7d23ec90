package utility

import (
	"errors"
	"math"
	"testing"
)

func TestUtilityConversion_U64ToI64(t *testing.T) {
	tests := []struct {
		input    uint64
		expected int64
		hasError bool
	}{
		{0, 0, false},
		{1, 1, false},
		{math.MaxInt64, math.MaxInt64, false},
		{uint64(math.MaxInt64) + 1, 0, true},
		{math.MaxUint64, 0, true},
	}

	for _, tt := range tests {
		result, err := U64ToI64(tt.input)
		if tt.hasError {
			if !errors.Is(err, ErrIntegerOverflow) {
				t.Errorf("U64ToI64(%d) expected overflow, got %v", tt.input, err)
			}
			continue
		}
		if err != nil || result != tt.expected {
			t.Errorf("U64ToI64(%d) = %d, %v; want %d", tt.input, result, err, tt.expected)
		}
	}
}

func TestUtilityConversion_U64ToI64UnsafePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	U64ToI64Unsafe(math.MaxUint64)
}

func TestUtilityConversion_I64ToU64(t *testing.T) {
	if v, err := I64ToU64(42); err != nil || v != 42 {
		t.Errorf("I64ToU64(42) = %d, %v", v, err)
	}
	if _, err := I64ToU64(-1); err == nil {
		t.Error("I64ToU64(-1) expected error")
	}
}
