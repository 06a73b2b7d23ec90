package datasource

import (
	"errors"
	"fmt"
	"sort"

	"github.com/peter-kozarec/replay/pkg/common"
)

var (
	ErrEndOfStream   = errors.New("end of stream")
	ErrDataIntegrity = errors.New("data integrity violation")
)

// BarSource yields bars of one security and frequency in increasing time
// order. Reset rewinds every stream to its beginning.
type BarSource interface {
	Next(security string, frequency common.Frequency) (common.Bar, error)
	Reset()
}

type streamKey struct {
	security  string
	frequency common.Frequency
}

// MemorySource serves bars from memory.
type MemorySource struct {
	series  map[streamKey][]common.Bar
	cursors map[streamKey]int
}

func NewMemorySource(bars ...common.Bar) *MemorySource {
	m := &MemorySource{
		series:  make(map[streamKey][]common.Bar),
		cursors: make(map[streamKey]int),
	}
	m.Add(bars...)
	return m
}

// Add appends bars, keeping each series ordered by timestamp.
func (m *MemorySource) Add(bars ...common.Bar) {
	touched := make(map[streamKey]struct{})
	for _, b := range bars {
		k := streamKey{b.Security, b.Frequency}
		m.series[k] = append(m.series[k], b)
		touched[k] = struct{}{}
	}
	for k := range touched {
		s := m.series[k]
		sort.SliceStable(s, func(i, j int) bool { return s[i].TimeStamp.Before(s[j].TimeStamp) })
	}
}

func (m *MemorySource) Next(security string, frequency common.Frequency) (common.Bar, error) {
	k := streamKey{security, frequency}
	idx := m.cursors[k]
	s := m.series[k]
	if idx >= len(s) {
		return common.Bar{}, ErrEndOfStream
	}
	m.cursors[k] = idx + 1
	return s[idx], nil
}

func (m *MemorySource) Reset() {
	for k := range m.cursors {
		delete(m.cursors, k)
	}
}

func (m *MemorySource) Securities() []string {
	seen := make(map[string]struct{})
	for k := range m.series {
		seen[k.security] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ReadAll drains one stream and checks its integrity.
func ReadAll(src BarSource, security string, frequency common.Frequency) ([]common.Bar, error) {
	var bars []common.Bar
	for {
		b, err := src.Next(security, frequency)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s %s: %w", security, frequency, err)
		}
		bars = append(bars, b)
	}
	if err := Validate(security, frequency, bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// Validate rejects empty, malformed and non monotonic series.
func Validate(security string, frequency common.Frequency, bars []common.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: no %s bars for %s", ErrDataIntegrity, frequency, security)
	}
	for i, b := range bars {
		if b.Security != security || b.Frequency != frequency {
			return fmt.Errorf("%w: bar %d belongs to %s %s", ErrDataIntegrity, i, b.Security, b.Frequency)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: %s bar at %s has negative volume", ErrDataIntegrity, security, b.TimeStamp)
		}
		if b.Volume > 0 && (b.Low.Gt(b.High) || b.Close.Gt(b.High) || b.Close.Lt(b.Low) || !b.Low.IsPos()) {
			return fmt.Errorf("%w: %s bar at %s has inconsistent prices", ErrDataIntegrity, security, b.TimeStamp)
		}
		if i > 0 && !b.TimeStamp.After(bars[i-1].TimeStamp) {
			return fmt.Errorf("%w: %s timestamps not increasing at %s", ErrDataIntegrity, security, b.TimeStamp)
		}
	}
	return nil
}
