package fixed

import (
	"github.com/govalues/decimal"

	"github.com/peter-kozarec/replay/pkg/utility"
)

// Point is an unsafe wrapper around decimal implementation. Caller must make sure the calculations
// are correct and will not result in an error state, otherwise it will panic
type Point struct {
	v decimal.Decimal
}

func New(value int64, scale int) Point {
	return Point{must(decimal.New(value, scale))}
}

func FromInt(value int, scale int) Point {
	return Point{must(decimal.New(int64(value), scale))}
}

func FromInt64(value int64, scale int) Point {
	return Point{must(decimal.New(value, scale))}
}

func FromUint64(value uint64, scale int) Point {
	return Point{must(decimal.New(utility.U64ToI64Unsafe(value), scale))}
}

// FromFloat64 converts through the shortest decimal representation of value,
// so 2.675 becomes exactly 2.675 and not its binary expansion.
func FromFloat64(value float64) Point {
	return Point{must(decimal.NewFromFloat64(value))}
}

func Parse(s string) (Point, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Point{}, err
	}
	return Point{d}, nil
}

func MustParse(s string) Point {
	return Point{decimal.MustParse(s)}
}

func (p Point) String() string           { return p.v.String() }
func (p Point) Float64() (float64, bool) { return p.v.Float64() }

// Int64 returns the integer part of the point, truncated towards zero.
func (p Point) Int64() int64 {
	whole, _, ok := p.v.Trunc(0).Int64(0)
	if !ok {
		panic("fixed: point does not fit into int64")
	}
	return whole
}

func (p Point) Abs() Point { return Point{p.v.Abs()} }
func (p Point) Neg() Point { return Point{p.v.Neg()} }
func (p Point) Sign() int  { return p.v.Sign() }

func (p Point) Add(o Point) Point { return Point{must(p.v.Add(o.v))} }
func (p Point) Sub(o Point) Point { return Point{must(p.v.Sub(o.v))} }
func (p Point) Mul(o Point) Point { return Point{must(p.v.Mul(o.v))} }
func (p Point) Div(o Point) Point { return Point{must(p.v.Quo(o.v))} }

func (p Point) MulInt64(o int64) Point { return Point{must(p.v.Mul(decimal.MustNew(o, 0)))} }
func (p Point) MulInt(o int) Point     { return Point{must(p.v.Mul(decimal.MustNew(int64(o), 0)))} }
func (p Point) DivInt64(o int64) Point { return Point{must(p.v.Quo(decimal.MustNew(o, 0)))} }
func (p Point) DivInt(o int) Point     { return Point{must(p.v.Quo(decimal.MustNew(int64(o), 0)))} }

func (p Point) Cmp(o Point) int  { return p.v.Cmp(o.v) }
func (p Point) Eq(o Point) bool  { return p.v.Cmp(o.v) == 0 }
func (p Point) Gt(o Point) bool  { return p.v.Cmp(o.v) > 0 }
func (p Point) Lt(o Point) bool  { return p.v.Cmp(o.v) < 0 }
func (p Point) Gte(o Point) bool { return p.v.Cmp(o.v) >= 0 }
func (p Point) Lte(o Point) bool { return p.v.Cmp(o.v) <= 0 }

func (p Point) IsZero() bool            { return p.v.IsZero() }
func (p Point) IsNeg() bool             { return p.v.IsNeg() }
func (p Point) IsPos() bool             { return p.v.IsPos() }
func (p Point) Scale() int              { return p.v.Scale() }
func (p Point) Rescale(scale int) Point { return Point{p.v.Rescale(scale)} }
func (p Point) Trunc(scale int) Point   { return Point{p.v.Trunc(scale)} }
func (p Point) Floor(scale int) Point   { return Point{p.v.Floor(scale)} }
func (p Point) Ceil(scale int) Point    { return Point{p.v.Ceil(scale)} }

// Trim removes trailing zeros but keeps at least scale digits after the point.
func (p Point) Trim(scale int) Point { return Point{p.v.Trim(scale)} }

// RoundHalfAway rounds to scale digits, ties going away from zero. The
// underlying library rounds ties to even, which brokers never do.
func (p Point) RoundHalfAway(scale int) Point {
	truncated := p.v.Trunc(scale)
	rest := must(p.v.Sub(truncated)).Abs()
	half := decimal.MustNew(5, scale+1)
	if rest.Cmp(half) < 0 {
		return Point{truncated}
	}
	step := decimal.MustNew(1, scale)
	if p.v.IsNeg() {
		return Point{must(truncated.Sub(step))}
	}
	return Point{must(truncated.Add(step))}
}

func (p Point) Pow(o Point) Point { return Point{must(p.v.Pow(o.v))} }
func (p Point) Sqrt() Point       { return Point{must(p.v.Sqrt())} }

func (p Point) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Point) UnmarshalText(text []byte) error {
	d, err := decimal.Parse(string(text))
	if err != nil {
		return err
	}
	p.v = d
	return nil
}

func Max(a, b Point) Point {
	if a.Gte(b) {
		return a
	}
	return b
}

func Min(a, b Point) Point {
	if a.Lte(b) {
		return a
	}
	return b
}

func must(v decimal.Decimal, err error) decimal.Decimal {
	if err == nil {
		// Return in the happy path
		return v
	}
	panic(err)
}
