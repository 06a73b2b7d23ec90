package common

import (
	"time"

	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// AdjustmentFactor maps a raw price to adjusted = A*raw + B.
type AdjustmentFactor struct {
	Security      string      `json:"security"`
	EffectiveDate time.Time   `json:"effective_date"`
	A             fixed.Point `json:"a"`
	B             fixed.Point `json:"b"`
}

func IdentityFactor(security string, effective time.Time) AdjustmentFactor {
	return AdjustmentFactor{Security: security, EffectiveDate: effective, A: fixed.One, B: fixed.Zero}
}

func (f AdjustmentFactor) Apply(price fixed.Point) fixed.Point {
	return f.A.Mul(price).Add(f.B)
}

func (f AdjustmentFactor) IsIdentity() bool {
	return f.A.Eq(fixed.One) && f.B.IsZero()
}

// CorporateAction is an ex-rights event. ShareRatio is the number of bonus and
// transferred shares per held share, so 0.3 means 3 new shares for every 10.
type CorporateAction struct {
	Security     string      `json:"security"`
	ExDate       time.Time   `json:"ex_date"`
	CashPerShare fixed.Point `json:"cash_per_share"`
	ShareRatio   fixed.Point `json:"share_ratio"`
}
