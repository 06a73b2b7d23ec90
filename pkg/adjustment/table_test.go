package adjustment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func bar(security string, d int, close string) common.Bar {
	c := fixed.MustParse(close)
	return common.Bar{
		Security:  security,
		Frequency: common.FrequencyDaily,
		TimeStamp: day(d).Add(15 * time.Hour),
		Open:      c,
		High:      c,
		Low:       c,
		Close:     c,
		Volume:    1000,
	}
}

func TestAdjustment_FactorFromAction(t *testing.T) {
	f := FactorFromAction(common.CorporateAction{
		Security:     "600000.XSHG",
		ExDate:       day(5).Add(9 * time.Hour),
		CashPerShare: fixed.MustParse("0.5"),
		ShareRatio:   fixed.MustParse("0.25"),
	})

	assert.True(t, f.A.Eq(fixed.MustParse("0.8")), "A = %s", f.A)
	assert.True(t, f.B.Eq(fixed.MustParse("-0.4")), "B = %s", f.B)
	assert.True(t, f.EffectiveDate.Equal(day(5)))
	// 10.5 before the event is worth (10.5 - 0.5) / 1.25 = 8 after it
	assert.True(t, f.Apply(fixed.MustParse("10.5")).Eq(fixed.FromInt(8, 0)))
}

func TestAdjustment_IdentityIsFixedPoint(t *testing.T) {
	id := common.IdentityFactor("A", day(1))
	f := common.AdjustmentFactor{Security: "A", EffectiveDate: day(2), A: fixed.MustParse("0.98"), B: fixed.MustParse("0.02")}

	assert.True(t, id.Apply(fixed.MustParse("12.34")).Eq(fixed.MustParse("12.34")))

	left := Compose(id, f)
	right := Compose(f, id)
	assert.True(t, left.A.Eq(f.A) && left.B.Eq(f.B))
	assert.True(t, right.A.Eq(f.A) && right.B.Eq(f.B))

	tbl := NewTable()
	require.NoError(t, tbl.Add(f))
	bars := []common.Bar{bar("A", 1, "10"), bar("A", 2, "9.82")}

	// adjusting an already adjusted series as of a date with no later events changes nothing
	once := tbl.Adjust(bars, day(2), ModeForward)
	twice := tbl.Adjust(once[1:], day(2), ModeForward)
	assert.True(t, once[1].Close.Eq(twice[0].Close))
}

func TestAdjustment_ForwardHasNoLookAhead(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(common.AdjustmentFactor{Security: "A", EffectiveDate: day(3), A: fixed.MustParse("0.98"), B: fixed.MustParse("0.02")}))

	bars := []common.Bar{bar("A", 1, "10"), bar("A", 2, "10"), bar("A", 3, "9.82")}

	before := tbl.Adjust(bars[:2], day(2), ModeForward)
	assert.True(t, before[0].Close.Eq(fixed.FromInt(10, 0)), "event on day 3 leaked into day 2 view")

	after := tbl.Adjust(bars, day(3), ModeForward)
	assert.True(t, after[0].Close.Eq(fixed.MustParse("9.82")))
	assert.True(t, after[1].Close.Eq(fixed.MustParse("9.82")))
	assert.True(t, after[2].Close.Eq(fixed.MustParse("9.82")))
	// the input slice is untouched
	assert.True(t, bars[0].Close.Eq(fixed.FromInt(10, 0)))
}

func TestAdjustment_Backward(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(common.AdjustmentFactor{Security: "A", EffectiveDate: day(3), A: fixed.MustParse("0.5"), B: fixed.Zero}))

	bars := []common.Bar{bar("A", 2, "10"), bar("A", 3, "5")}
	out := tbl.Adjust(bars, day(3), ModeBackward)
	assert.True(t, out[0].Close.Eq(fixed.FromInt(10, 0)))
	assert.True(t, out[1].Close.Eq(fixed.FromInt(10, 0)))
}

func TestAdjustment_TableErrors(t *testing.T) {
	tbl := NewTable()
	f := common.AdjustmentFactor{Security: "A", EffectiveDate: day(3), A: fixed.One, B: fixed.Zero}
	require.NoError(t, tbl.Add(f))

	err := tbl.Add(f)
	assert.True(t, errors.Is(err, ErrDuplicateFactor))

	err = tbl.Add(common.AdjustmentFactor{Security: "A", EffectiveDate: day(4), A: fixed.Zero})
	assert.True(t, errors.Is(err, ErrInvalidFactor))
}

func TestAdjustment_FactorOnAcrossLocations(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*60*60)
	tbl, err := FromActions([]common.CorporateAction{
		{Security: "A", ExDate: day(4), CashPerShare: fixed.MustParse("0.2"), ShareRatio: fixed.Zero},
	})
	require.NoError(t, err)

	// 09:30 on the 4th in Shanghai is still the 3rd in UTC
	_, ok := tbl.FactorOn("A", time.Date(2024, 3, 4, 9, 30, 0, 0, shanghai))
	assert.True(t, ok)
	_, ok = tbl.FactorOn("A", time.Date(2024, 3, 3, 23, 0, 0, 0, shanghai))
	assert.False(t, ok)

	f := tbl.Between("A", time.Date(2024, 3, 3, 15, 0, 0, 0, shanghai), time.Date(2024, 3, 4, 15, 0, 0, 0, shanghai))
	assert.False(t, f.IsIdentity())

	err = tbl.Add(common.AdjustmentFactor{Security: "A", EffectiveDate: time.Date(2024, 3, 4, 0, 0, 0, 0, shanghai), A: fixed.One, B: fixed.Zero})
	assert.ErrorIs(t, err, ErrDuplicateFactor)
}

func TestAdjustment_FactorOn(t *testing.T) {
	tbl, err := FromActions([]common.CorporateAction{
		{Security: "A", ExDate: day(10), CashPerShare: fixed.MustParse("0.1"), ShareRatio: fixed.Zero},
		{Security: "A", ExDate: day(4), CashPerShare: fixed.MustParse("0.2"), ShareRatio: fixed.Zero},
	})
	require.NoError(t, err)

	f, ok := tbl.FactorOn("A", day(4).Add(9*time.Hour))
	require.True(t, ok)
	assert.True(t, f.B.Eq(fixed.MustParse("-0.2")))

	_, ok = tbl.FactorOn("A", day(5))
	assert.False(t, ok)

	factors := tbl.Factors("A")
	require.Len(t, factors, 2)
	assert.True(t, factors[0].EffectiveDate.Before(factors[1].EffectiveDate))
}

func TestAdjustment_ParseMode(t *testing.T) {
	m, err := ParseMode("pre")
	require.NoError(t, err)
	assert.Equal(t, ModeForward, m)
	_, err = ParseMode("sideways")
	assert.Error(t, err)
}

func TestAdjustment_ComposeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := func(label string) common.AdjustmentFactor {
			return common.AdjustmentFactor{
				Security: "A",
				A:        fixed.New(rapid.Int64Range(50, 100).Draw(t, label+"a"), 2),
				B:        fixed.New(rapid.Int64Range(-100, 100).Draw(t, label+"b"), 2),
			}
		}
		f1, f2, f3 := gen("f1"), gen("f2"), gen("f3")
		p := fixed.New(rapid.Int64Range(100, 100000).Draw(t, "p"), 2)

		composed := Compose(f2, f1).Apply(p)
		stepwise := f2.Apply(f1.Apply(p))
		if !composed.Eq(stepwise) {
			t.Fatalf("compose mismatch: %s != %s", composed, stepwise)
		}

		l := Compose(f3, Compose(f2, f1))
		r := Compose(Compose(f3, f2), f1)
		if !l.A.Eq(r.A) || !l.B.Eq(r.B) {
			t.Fatalf("compose not associative: (%s,%s) != (%s,%s)", l.A, l.B, r.A, r.B)
		}
	})
}
