package datasource

import (
	"sort"
	"time"

	"github.com/peter-kozarec/replay/pkg/adjustment"
	"github.com/peter-kozarec/replay/pkg/common"
)

type windowKey struct {
	security string
	until    time.Time
	count    int
	mode     adjustment.Mode
}

// Cache keeps whole series resident and memoizes adjusted history windows
// for the current as-of day. Moving to another day drops the memo.
type Cache struct {
	table  *adjustment.Table
	series map[streamKey][]common.Bar

	asOf    time.Time
	windows map[windowKey][]common.Bar
	hits    uint64
	misses  uint64
}

func NewCache(table *adjustment.Table) *Cache {
	if table == nil {
		table = adjustment.NewTable()
	}
	return &Cache{
		table:   table,
		series:  make(map[streamKey][]common.Bar),
		windows: make(map[windowKey][]common.Bar),
	}
}

// Load reads and validates a full stream from src.
func (c *Cache) Load(src BarSource, security string, frequency common.Frequency) ([]common.Bar, error) {
	k := streamKey{security, frequency}
	if s, ok := c.series[k]; ok {
		return s, nil
	}
	bars, err := ReadAll(src, security, frequency)
	if err != nil {
		return nil, err
	}
	c.series[k] = bars
	return bars, nil
}

func (c *Cache) Series(security string, frequency common.Frequency) []common.Bar {
	return c.series[streamKey{security, frequency}]
}

// Window returns up to count raw bars with timestamp <= until, oldest first.
func (c *Cache) Window(security string, frequency common.Frequency, until time.Time, count int) []common.Bar {
	s := c.series[streamKey{security, frequency}]
	end := sort.Search(len(s), func(i int) bool { return s[i].TimeStamp.After(until) })
	start := 0
	if count > 0 && end-count > 0 {
		start = end - count
	}
	return s[start:end]
}

// Adjusted returns Window rescaled by mode relative to asOf. The returned
// slice is shared and must not be modified.
func (c *Cache) Adjusted(security string, frequency common.Frequency, until time.Time, count int, mode adjustment.Mode, asOf time.Time) []common.Bar {
	day := common.TradingDay(asOf)
	if !day.Equal(c.asOf) {
		c.asOf = day
		clear(c.windows)
	}

	k := windowKey{security: security, until: until, count: count, mode: mode}
	if w, ok := c.windows[k]; ok {
		c.hits++
		return w
	}
	c.misses++
	w := c.table.Adjust(c.Window(security, frequency, until, count), asOf, mode)
	c.windows[k] = w
	return w
}

func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}
