package bar

import (
	"errors"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/datasource"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Builder folds the minute bars of one trading day into a daily bar.
type Builder struct {
	bar    common.Bar
	traded bool
	empty  bool
}

func NewBuilder() *Builder {
	return &Builder{empty: true}
}

// Add reports false when m belongs to another trading day than the bar in
// construction; m is then left out.
func (b *Builder) Add(m common.Bar) bool {
	if b.empty {
		b.bar = common.Bar{
			Security:  m.Security,
			Frequency: common.FrequencyDaily,
			TimeStamp: m.TimeStamp,
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			PreClose:  m.PreClose,
		}
		b.empty = false
		b.traded = false
	} else if !m.Date().Equal(b.bar.Date()) || m.Security != b.bar.Security {
		return false
	}

	b.bar.TimeStamp = m.TimeStamp
	if m.IsSuspended() {
		if !b.traded {
			b.bar.Open, b.bar.High, b.bar.Low, b.bar.Close = m.Close, m.Close, m.Close, m.Close
		}
		return true
	}

	if !b.traded {
		b.bar.Open, b.bar.High, b.bar.Low = m.Open, m.High, m.Low
		b.traded = true
	}
	b.bar.High = fixed.Max(b.bar.High, m.High)
	b.bar.Low = fixed.Min(b.bar.Low, m.Low)
	b.bar.Close = m.Close
	b.bar.Volume += m.Volume
	b.bar.Turnover = b.bar.Turnover.Add(m.Turnover)
	return true
}

// Flush returns the bar in construction and starts over.
func (b *Builder) Flush() (common.Bar, bool) {
	if b.empty {
		return common.Bar{}, false
	}
	out := b.bar
	b.bar = common.Bar{}
	b.empty = true
	return out, true
}

type pending struct {
	bar common.Bar
	ok  bool
}

// DailySource serves daily bars resampled from the minute streams of src.
// Minute requests pass through untouched and share the cursor of src, so a
// run reads one frequency or the other.
type DailySource struct {
	src     datasource.BarSource
	pending map[string]pending
	done    map[string]bool
}

func NewDailySource(src datasource.BarSource) *DailySource {
	return &DailySource{
		src:     src,
		pending: make(map[string]pending),
		done:    make(map[string]bool),
	}
}

func (d *DailySource) Next(security string, frequency common.Frequency) (common.Bar, error) {
	if frequency != common.FrequencyDaily {
		return d.src.Next(security, frequency)
	}
	if d.done[security] {
		return common.Bar{}, datasource.ErrEndOfStream
	}

	b := NewBuilder()
	if p := d.pending[security]; p.ok {
		b.Add(p.bar)
		delete(d.pending, security)
	}

	for {
		m, err := d.src.Next(security, common.FrequencyMinute)
		if errors.Is(err, datasource.ErrEndOfStream) {
			d.done[security] = true
			if out, ok := b.Flush(); ok {
				return out, nil
			}
			return common.Bar{}, datasource.ErrEndOfStream
		}
		if err != nil {
			return common.Bar{}, err
		}
		if !b.Add(m) {
			d.pending[security] = pending{bar: m, ok: true}
			out, _ := b.Flush()
			return out, nil
		}
	}
}

func (d *DailySource) Reset() {
	d.src.Reset()
	d.pending = make(map[string]pending)
	d.done = make(map[string]bool)
}
