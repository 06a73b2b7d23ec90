package money

import (
	"math"
	"strconv"
	"strings"

	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const (
	centScale = 2
	// below this magnitude every amount rounds to zero cents
	negligible = 0.001
)

// RoundCurrency rounds a float amount to cents, half away from zero, with the
// broker's two float artefacts reproduced:
//
//   - a value whose shortest representation is an exact x.xx5 tie rounds away
//     from zero even though the binary value may sit just below the tie
//     (2.675 -> 2.68, 1.005 -> 1.01)
//   - a value exactly one ulp above such a tie rounds down when rounding up
//     would end on an even cent (Nextafter(10.135, +Inf) -> 10.13)
//
// Everything else follows the shortest representation, so
// 10.125000000000002 -> 10.13.
func RoundCurrency(v float64) fixed.Point {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic("money: cannot round non-finite amount")
	}

	a := math.Abs(v)
	if a < negligible {
		return fixed.Zero.Rescale(centScale)
	}

	r := roundAbs(a)
	if v < 0 {
		return r.Neg()
	}
	return r
}

func roundAbs(a float64) fixed.Point {
	repr := shortest(a)
	if isCentTie(repr) {
		return fixed.MustParse(repr).RoundHalfAway(centScale).Rescale(centScale)
	}

	below := shortest(math.Nextafter(a, 0))
	if isCentTie(below) {
		tie := fixed.MustParse(below)
		up := tie.RoundHalfAway(centScale)
		if lastCentEven(up) {
			return tie.Trunc(centScale).Rescale(centScale)
		}
		return up.Rescale(centScale)
	}

	return fixed.MustParse(repr).RoundHalfAway(centScale).Rescale(centScale)
}

// RoundPrice rounds a decimal price to the 0.01 tick, half away from zero.
func RoundPrice(p fixed.Point) fixed.Point {
	return p.RoundHalfAway(centScale).Rescale(centScale)
}

func shortest(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isCentTie reports whether repr has exactly three decimals ending in 5.
func isCentTie(repr string) bool {
	dot := strings.IndexByte(repr, '.')
	if dot < 0 {
		return false
	}
	frac := repr[dot+1:]
	return len(frac) == 3 && frac[2] == '5'
}

func lastCentEven(p fixed.Point) bool {
	cents := p.Rescale(centScale).MulInt64(100).Int64()
	return cents%2 == 0
}
