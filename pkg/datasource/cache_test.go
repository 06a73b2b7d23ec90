package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/replay/pkg/adjustment"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

func TestDatasourceCache_Window(t *testing.T) {
	c := NewCache(nil)
	_, err := c.Load(NewMemorySource(dailyBar(1, "10"), dailyBar(2, "11"), dailyBar(3, "12")), sec, common.FrequencyDaily)
	require.NoError(t, err)

	w := c.Window(sec, common.FrequencyDaily, time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC), 5)
	require.Len(t, w, 2)
	assert.True(t, w[1].Close.Eq(fixed.FromInt(11, 0)))

	w = c.Window(sec, common.FrequencyDaily, time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC), 1)
	require.Len(t, w, 1)
	assert.True(t, w[0].Close.Eq(fixed.FromInt(12, 0)))
}

func TestDatasourceCache_AdjustedMemo(t *testing.T) {
	tbl := adjustment.NewTable()
	require.NoError(t, tbl.Add(common.AdjustmentFactor{
		Security:      sec,
		EffectiveDate: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		A:             fixed.MustParse("0.5"),
		B:             fixed.Zero,
	}))

	c := NewCache(tbl)
	_, err := c.Load(NewMemorySource(dailyBar(1, "10"), dailyBar(2, "5")), sec, common.FrequencyDaily)
	require.NoError(t, err)

	asOf := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	w := c.Adjusted(sec, common.FrequencyDaily, asOf, 10, adjustment.ModeForward, asOf)
	require.Len(t, w, 2)
	assert.True(t, w[0].Close.Eq(fixed.FromInt(5, 0)))

	c.Adjusted(sec, common.FrequencyDaily, asOf, 10, adjustment.ModeForward, asOf)
	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	// the raw series is untouched
	assert.True(t, c.Series(sec, common.FrequencyDaily)[0].Close.Eq(fixed.FromInt(10, 0)))
}
