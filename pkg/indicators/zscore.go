package indicators

import (
	"errors"

	"github.com/peter-kozarec/replay/pkg/utility/circular"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

var ErrNotReady = errors.New("not enough data")

// ZScore measures how many standard deviations the newest value sits from
// the window mean.
type ZScore struct {
	data *circular.PointBuffer
}

func NewZScore(window uint) *ZScore {
	return &ZScore{data: circular.NewPointBuffer(window)}
}

func (z *ZScore) AddPoint(p fixed.Point) {
	z.data.PushUpdate(p)
}

// Value is zero for a flat window.
func (z *ZScore) Value() (fixed.Point, error) {
	if !z.IsReady() {
		return fixed.Zero, ErrNotReady
	}
	stdDev := z.data.StdDev()
	if stdDev.IsZero() {
		return fixed.Zero, nil
	}
	return z.data.Latest().Sub(z.data.Mean()).Div(stdDev), nil
}

func (z *ZScore) Mean() fixed.Point {
	return z.data.Mean()
}

func (z *ZScore) IsReady() bool {
	return z.data.IsFull()
}

func (z *ZScore) Reset() {
	z.data.Reset()
}
