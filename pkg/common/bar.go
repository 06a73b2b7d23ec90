package common

import (
	"time"

	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "1d"
	FrequencyMinute Frequency = "1m"
)

func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyMinute
}

type Bar struct {
	Security  string      `json:"security"`
	Frequency Frequency   `json:"frequency"`
	TimeStamp time.Time   `json:"ts"`
	Open      fixed.Point `json:"open"`
	High      fixed.Point `json:"high"`
	Low       fixed.Point `json:"low"`
	Close     fixed.Point `json:"close"`
	Volume    int64       `json:"volume"`
	Turnover  fixed.Point `json:"turnover"`
	// PreClose is the previous trading day's close, zero when unknown.
	PreClose fixed.Point `json:"pre_close,omitempty"`
}

// IsSuspended reports whether the security did not trade during the bar.
func (b Bar) IsSuspended() bool {
	return b.Volume == 0
}

// Date returns the trading day of the bar at midnight in the bar's location.
func (b Bar) Date() time.Time {
	return TradingDay(b.TimeStamp)
}

func TradingDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalendarDate is the calendar date of t in its own location, pinned to
// midnight UTC so dates stamped in different locations compare by day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
