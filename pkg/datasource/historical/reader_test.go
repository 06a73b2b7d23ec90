package historical

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/datasource"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const sec = "600000.XSHG"

func bars(days ...int) []common.Bar {
	out := make([]common.Bar, 0, len(days))
	for _, d := range days {
		c := fixed.MustParse("10.25").Add(fixed.FromInt(d, 2))
		out = append(out, common.Bar{
			Security:  sec,
			Frequency: common.FrequencyDaily,
			TimeStamp: time.Date(2024, 3, d, 15, 0, 0, 0, time.UTC),
			Open:      c,
			High:      c.Add(fixed.MustParse("0.1")),
			Low:       c.Sub(fixed.MustParse("0.1")),
			Close:     c,
			PreClose:  fixed.MustParse("10.1234"),
			Turnover:  fixed.MustParse("123456.78"),
			Volume:    int64(1000 * d),
		})
	}
	return out
}

func TestHistoricalDirectory_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := bars(1, 2, 3, 4, 5)
	require.NoError(t, WriteBars(filepath.Join(dir, FileName(sec, common.FrequencyDaily)), in))

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 4, 23, 59, 0, 0, time.UTC)
	d := NewDirectory(dir, from, to)
	defer d.Close()

	out, err := datasource.ReadAll(d, sec, common.FrequencyDaily)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, b := range out {
		want := in[i+1]
		assert.True(t, b.TimeStamp.Equal(want.TimeStamp))
		assert.True(t, b.Close.Eq(want.Close))
		assert.True(t, b.PreClose.Eq(want.PreClose))
		assert.True(t, b.Turnover.Eq(want.Turnover))
		assert.Equal(t, want.Volume, b.Volume)
	}

	d.Reset()
	first, err := d.Next(sec, common.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TimeStamp.Day())
}

func TestHistoricalDirectory_MissingFile(t *testing.T) {
	d := NewDirectory(t.TempDir(), time.Time{}, time.Now())
	_, err := d.Next(sec, common.FrequencyDaily)
	assert.True(t, errors.Is(err, datasource.ErrDataIntegrity))
}

func TestHistoricalSource_EntryCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.bin")
	require.NoError(t, WriteBars(path, bars(1, 2)))

	src := NewSource[BinaryBar](path)
	require.NoError(t, src.Open())
	defer src.Close()

	n, err := src.EntryCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var bb BinaryBar
	assert.True(t, errors.Is(src.Read(2, &bb), ErrEof))
}
