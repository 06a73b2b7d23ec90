package indicators

import (
	"github.com/peter-kozarec/replay/pkg/utility/circular"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Sma is a simple moving average over the last window values.
type Sma struct {
	data *circular.PointBuffer
}

func NewSma(window uint) *Sma {
	return &Sma{data: circular.NewPointBuffer(window)}
}

func (s *Sma) AddPoint(p fixed.Point) {
	s.data.PushUpdate(p)
}

func (s *Sma) Value() fixed.Point {
	return s.data.Mean()
}

func (s *Sma) IsReady() bool {
	return s.data.IsFull()
}

func (s *Sma) Reset() {
	s.data.Reset()
}
