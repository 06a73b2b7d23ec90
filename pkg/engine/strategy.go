package engine

import (
	"context"
	"sort"
	"time"

	"github.com/peter-kozarec/replay/pkg/common"
)

// Strategy receives the lifecycle hooks of a run. A hook error aborts the
// run.
type Strategy interface {
	Initialize(ctx context.Context, h *Handle) error
	BeforeSession(ctx context.Context, h *Handle) error
	OnBar(ctx context.Context, h *Handle, slice Slice) error
	AfterSession(ctx context.Context, h *Handle) error
}

// Slice holds the bars of every subscribed security at one timestamp,
// ordered by security. Securities without trades carry a zero volume bar.
type Slice struct {
	TimeStamp time.Time
	Bars      []common.Bar
}

func (s Slice) Bar(security string) (common.Bar, bool) {
	i := sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Security >= security })
	if i < len(s.Bars) && s.Bars[i].Security == security {
		return s.Bars[i], true
	}
	return common.Bar{}, false
}

// BaseStrategy implements every hook as a no-op so strategies only override
// what they need.
type BaseStrategy struct{}

func (BaseStrategy) Initialize(context.Context, *Handle) error    { return nil }
func (BaseStrategy) BeforeSession(context.Context, *Handle) error { return nil }
func (BaseStrategy) OnBar(context.Context, *Handle, Slice) error  { return nil }
func (BaseStrategy) AfterSession(context.Context, *Handle) error  { return nil }
