package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

func TestMoney_RoundCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{"shortest repr tie 2.675", 2.675, "2.68"},
		{"shortest repr tie 1.005", 1.005, "1.01"},
		{"shortest repr tie 0.005", 0.005, "0.01"},
		{"one ulp above tie, even cent", math.Nextafter(10.135, math.Inf(1)), "10.13"},
		{"one ulp above tie, odd cent", 10.125000000000002, "10.13"},
		{"plain round down", 1.234, "1.23"},
		{"plain round up", 1.236, "1.24"},
		{"integer", 100, "100.00"},
		{"zero", 0, "0.00"},
		{"below a cent", 0.004, "0.00"},
		{"negative tie", -2.675, "-2.68"},
		{"negative plain", -1.236, "-1.24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundCurrency(tt.input)
			assert.True(t, got.Eq(fixed.MustParse(tt.expected)), "got %s, want %s", got, tt.expected)
		})
	}
}

func TestMoney_RoundCurrencyPanicsOnNaN(t *testing.T) {
	assert.Panics(t, func() { RoundCurrency(math.NaN()) })
	assert.Panics(t, func() { RoundCurrency(math.Inf(1)) })
}

func TestMoney_RoundPrice(t *testing.T) {
	assert.Equal(t, "10.13", RoundPrice(fixed.MustParse("10.125")).String())
	assert.Equal(t, "10.12", RoundPrice(fixed.MustParse("10.1249")).String())
	assert.Equal(t, "-10.13", RoundPrice(fixed.MustParse("-10.125")).String())
	assert.Equal(t, "9.00", RoundPrice(fixed.MustParse("9")).String())
}

func TestMoney_RoundCurrencyProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(-1e6, 1e6).Draw(t, "v")

		r := RoundCurrency(v)
		neg := RoundCurrency(-v)
		if !r.Eq(neg.Neg()) {
			t.Fatalf("not symmetric: %s vs %s", r, neg)
		}

		exact := fixed.FromFloat64(v)
		if diff := r.Sub(exact).Abs(); diff.Gt(fixed.MustParse("0.0050001")) {
			t.Fatalf("%v rounded to %s, off by %s", v, r, diff)
		}
		if r.Rescale(2).Sub(r).Abs().Gt(fixed.Zero) {
			t.Fatalf("%s has more than two decimals", r)
		}
	})
}
