package engine

import (
	"fmt"
	"time"
)

// Clock is the simulation time. It only moves forward.
type Clock struct {
	Date     time.Time
	Now      time.Time
	BarIndex int
	Phase    Phase
}

var transitions = map[Phase]PhaseMask{
	PhaseUninitialized: MaskOf(PhaseInitialized),
	PhaseInitialized:   MaskOf(PhasePreMarket, PhaseTerminated),
	PhasePreMarket:     MaskOf(PhaseInSession),
	PhaseInSession:     MaskOf(PhasePostMarket),
	PhasePostMarket:    MaskOf(PhasePreMarket, PhaseTerminated),
}

func (c *Clock) enter(next Phase) error {
	if !transitions[c.Phase].Has(next) {
		return fmt.Errorf("invalid phase transition %s -> %s", c.Phase, next)
	}
	c.Phase = next
	return nil
}

func (c *Clock) advance(ts time.Time) error {
	if ts.Before(c.Now) {
		return fmt.Errorf("clock moved backwards from %s to %s", c.Now, ts)
	}
	c.Now = ts
	return nil
}
