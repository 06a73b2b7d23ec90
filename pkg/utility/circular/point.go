package circular

import (
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// PointBuffer is a rolling window of decimal values with running sum and
// population statistics.
type PointBuffer struct {
	b *Buffer[fixed.Point]

	sum        fixed.Point
	sumSquares fixed.Point
}

func NewPointBuffer(capacity uint) *PointBuffer {
	return &PointBuffer{
		b:          NewBuffer[fixed.Point](capacity),
		sum:        fixed.Zero,
		sumSquares: fixed.Zero,
	}
}

func (p *PointBuffer) PushUpdate(v fixed.Point) {
	if p.b.IsFull() {
		old := p.b.Last()
		p.sum = p.sum.Sub(old)
		p.sumSquares = p.sumSquares.Sub(old.Mul(old))
	}
	p.b.Push(v)
	p.sum = p.sum.Add(v)
	p.sumSquares = p.sumSquares.Add(v.Mul(v))
}

func (p *PointBuffer) IsFull() bool {
	return p.b.IsFull()
}

func (p *PointBuffer) Size() uint {
	return p.b.Size()
}

// Latest returns the newest value.
func (p *PointBuffer) Latest() fixed.Point {
	return p.b.First()
}

func (p *PointBuffer) Sum() fixed.Point {
	return p.sum
}

func (p *PointBuffer) Mean() fixed.Point {
	if p.b.IsEmpty() {
		return fixed.Zero
	}
	return p.sum.DivInt64(int64(p.b.Size())) // #nosec G115
}

func (p *PointBuffer) Variance() fixed.Point {
	if p.b.IsEmpty() {
		return fixed.Zero
	}
	mean := p.Mean()
	v := p.sumSquares.DivInt64(int64(p.b.Size())).Sub(mean.Mul(mean)) // #nosec G115
	if v.IsNeg() {
		return fixed.Zero
	}
	return v
}

func (p *PointBuffer) StdDev() fixed.Point {
	v := p.Variance()
	if v.IsZero() {
		return fixed.Zero
	}
	return v.Sqrt()
}

func (p *PointBuffer) Reset() {
	p.b.Reset()
	p.sum = fixed.Zero
	p.sumSquares = fixed.Zero
}
