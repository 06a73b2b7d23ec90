package adjustment

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

var (
	ErrDuplicateFactor = errors.New("duplicate adjustment factor")
	ErrInvalidFactor   = errors.New("invalid adjustment factor")
)

type Mode int

const (
	ModeNone Mode = iota
	// ModeForward expresses history in the price basis of the as-of date.
	ModeForward
	// ModeBackward expresses history in the basis of the first listed price.
	ModeBackward
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeForward:
		return "forward"
	case ModeBackward:
		return "backward"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return ModeNone, nil
	case "forward", "pre":
		return ModeForward, nil
	case "backward", "post":
		return ModeBackward, nil
	}
	return ModeNone, fmt.Errorf("unknown adjustment mode %q", s)
}

type entry struct {
	factor  common.AdjustmentFactor
	inverse common.AdjustmentFactor
}

// Table holds immutable adjustment factors per security ordered by
// effective calendar date, independent of the location dates are stamped in. Inverses are computed on insert so no division happens
// while adjusting.
type Table struct {
	bySecurity map[string][]entry
}

func NewTable() *Table {
	return &Table{bySecurity: make(map[string][]entry)}
}

// FromActions builds a table from corporate action events.
func FromActions(actions []common.CorporateAction) (*Table, error) {
	t := NewTable()
	for _, a := range actions {
		if err := t.Add(FactorFromAction(a)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FactorFromAction derives A = 1/(1+ratio) and B = -cash/(1+ratio).
func FactorFromAction(a common.CorporateAction) common.AdjustmentFactor {
	base := fixed.One.Add(a.ShareRatio)
	return common.AdjustmentFactor{
		Security:      a.Security,
		EffectiveDate: common.CalendarDate(a.ExDate),
		A:             fixed.One.Div(base),
		B:             a.CashPerShare.Neg().Div(base),
	}
}

func (t *Table) Add(f common.AdjustmentFactor) error {
	if !f.A.IsPos() {
		return fmt.Errorf("%w: %s on %s has non-positive A %s",
			ErrInvalidFactor, f.Security, f.EffectiveDate.Format(time.DateOnly), f.A)
	}
	f.EffectiveDate = common.CalendarDate(f.EffectiveDate)

	entries := t.bySecurity[f.Security]
	idx := sort.Search(len(entries), func(i int) bool {
		return !entries[i].factor.EffectiveDate.Before(f.EffectiveDate)
	})
	if idx < len(entries) && entries[idx].factor.EffectiveDate.Equal(f.EffectiveDate) {
		return fmt.Errorf("%w: %s on %s", ErrDuplicateFactor, f.Security, f.EffectiveDate.Format(time.DateOnly))
	}

	e := entry{factor: f, inverse: Inverse(f)}
	entries = append(entries, entry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = e
	t.bySecurity[f.Security] = entries
	return nil
}

// FactorOn returns the factor effective exactly on date.
func (t *Table) FactorOn(security string, date time.Time) (common.AdjustmentFactor, bool) {
	date = common.CalendarDate(date)
	entries := t.bySecurity[security]
	idx := sort.Search(len(entries), func(i int) bool {
		return !entries[i].factor.EffectiveDate.Before(date)
	})
	if idx < len(entries) && entries[idx].factor.EffectiveDate.Equal(date) {
		return entries[idx].factor, true
	}
	return common.AdjustmentFactor{}, false
}

func (t *Table) Factors(security string) []common.AdjustmentFactor {
	entries := t.bySecurity[security]
	out := make([]common.AdjustmentFactor, len(entries))
	for i, e := range entries {
		out[i] = e.factor
	}
	return out
}

func (t *Table) Securities() []string {
	out := make([]string, 0, len(t.bySecurity))
	for s := range t.bySecurity {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Between composes every factor with from < effective date <= to, oldest first.
func (t *Table) Between(security string, from, to time.Time) common.AdjustmentFactor {
	from, to = common.CalendarDate(from), common.CalendarDate(to)
	acc := common.IdentityFactor(security, to)
	for _, e := range t.bySecurity[security] {
		d := e.factor.EffectiveDate
		if d.After(from) && !d.After(to) {
			acc = Compose(e.factor, acc)
		}
	}
	return acc
}

// UpTo composes the inverses of every factor effective on or before date,
// mapping a raw price on date back into the basis of the first listed price.
func (t *Table) UpTo(security string, date time.Time) common.AdjustmentFactor {
	date = common.CalendarDate(date)
	acc := common.IdentityFactor(security, date)
	for _, e := range t.bySecurity[security] {
		if e.factor.EffectiveDate.After(date) {
			break
		}
		acc = Compose(acc, e.inverse)
	}
	return acc
}

// Adjust returns a copy of bars rescaled for mode relative to asOf. Forward
// adjustment only uses factors effective on or before asOf so the result
// never depends on events the simulation has not reached yet.
func (t *Table) Adjust(bars []common.Bar, asOf time.Time, mode Mode) []common.Bar {
	out := make([]common.Bar, len(bars))
	copy(out, bars)
	if mode == ModeNone {
		return out
	}

	for i := range out {
		var f common.AdjustmentFactor
		switch mode {
		case ModeForward:
			f = t.Between(out[i].Security, out[i].Date(), asOf)
		case ModeBackward:
			f = t.UpTo(out[i].Security, out[i].Date())
		}
		if !f.IsIdentity() {
			out[i] = ApplyBar(f, out[i])
		}
	}
	return out
}

// Compose returns the factor equivalent to applying first and then second.
func Compose(second, first common.AdjustmentFactor) common.AdjustmentFactor {
	return common.AdjustmentFactor{
		Security:      first.Security,
		EffectiveDate: second.EffectiveDate,
		A:             second.A.Mul(first.A),
		B:             second.A.Mul(first.B).Add(second.B),
	}
}

// Inverse returns the factor undoing f.
func Inverse(f common.AdjustmentFactor) common.AdjustmentFactor {
	return common.AdjustmentFactor{
		Security:      f.Security,
		EffectiveDate: f.EffectiveDate,
		A:             fixed.One.Div(f.A),
		B:             f.B.Neg().Div(f.A),
	}
}

func ApplyBar(f common.AdjustmentFactor, b common.Bar) common.Bar {
	b.Open = f.Apply(b.Open)
	b.High = f.Apply(b.High)
	b.Low = f.Apply(b.Low)
	b.Close = f.Apply(b.Close)
	if !b.PreClose.IsZero() {
		b.PreClose = f.Apply(b.PreClose)
	}
	return b
}
