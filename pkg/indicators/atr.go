package indicators

import (
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Atr is Wilder's average true range. Suspended bars carry no range and are
// skipped.
type Atr struct {
	window int

	lastClose  fixed.Point
	currentAtr fixed.Point
	currentTr  fixed.Point
	samples    int
}

func NewAtr(window int) *Atr {
	return &Atr{window: window}
}

func (a *Atr) OnBar(b common.Bar) {
	if b.IsSuspended() {
		return
	}
	defer func() {
		a.lastClose = b.Close
	}()

	if a.lastClose.IsZero() {
		return
	}

	a.currentTr = fixed.Max(b.High.Sub(b.Low), fixed.Max(b.High.Sub(a.lastClose).Abs(), b.Low.Sub(a.lastClose).Abs()))
	if a.samples == 0 {
		a.currentAtr = a.currentTr
	} else {
		a.currentAtr = a.currentAtr.MulInt(a.window - 1).Add(a.currentTr).DivInt(a.window)
	}
	a.samples++
}

func (a *Atr) AverageTrueRange() fixed.Point {
	return a.currentAtr
}

func (a *Atr) TrueRange() fixed.Point {
	return a.currentTr
}

func (a *Atr) Ready() bool {
	return a.samples >= a.window
}

func (a *Atr) Reset() {
	*a = Atr{window: a.window}
}
