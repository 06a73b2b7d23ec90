package historical

import (
	"time"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// priceScale is the number of decimals kept for prices in binary files.
const priceScale = 4

// BinaryBar is the fixed size on-disk record, little endian, prices stored
// as integers scaled by 10^priceScale.
type BinaryBar struct {
	TimeStamp int64
	Open      int64
	High      int64
	Low       int64
	Close     int64
	PreClose  int64
	Turnover  int64
	Volume    int64
}

func toScaled(p fixed.Point) int64 {
	return p.Rescale(priceScale).MulInt64(10_000).Int64()
}

func fromScaled(v int64) fixed.Point {
	return fixed.New(v, priceScale)
}

func NewBinaryBar(b common.Bar) BinaryBar {
	return BinaryBar{
		TimeStamp: b.TimeStamp.UnixNano(),
		Open:      toScaled(b.Open),
		High:      toScaled(b.High),
		Low:       toScaled(b.Low),
		Close:     toScaled(b.Close),
		PreClose:  toScaled(b.PreClose),
		Turnover:  toScaled(b.Turnover),
		Volume:    b.Volume,
	}
}

func (bb BinaryBar) ToBar(security string, frequency common.Frequency, loc *time.Location, bar *common.Bar) {
	bar.Security = security
	bar.Frequency = frequency
	bar.TimeStamp = time.Unix(0, bb.TimeStamp).In(loc)
	bar.Open = fromScaled(bb.Open)
	bar.High = fromScaled(bb.High)
	bar.Low = fromScaled(bb.Low)
	bar.Close = fromScaled(bb.Close)
	bar.PreClose = fromScaled(bb.PreClose)
	bar.Turnover = fromScaled(bb.Turnover)
	bar.Volume = bb.Volume
}
