package engine

import (
	"errors"
	"fmt"
	"strings"
)

var ErrPhaseViolation = errors.New("operation not allowed in phase")

type Phase uint8

const (
	PhaseUninitialized Phase = iota
	PhaseInitialized
	PhasePreMarket
	PhaseInSession
	PhasePostMarket
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "UNINITIALIZED"
	case PhaseInitialized:
		return "INITIALIZED"
	case PhasePreMarket:
		return "PRE_MARKET"
	case PhaseInSession:
		return "IN_SESSION"
	case PhasePostMarket:
		return "POST_MARKET"
	case PhaseTerminated:
		return "TERMINATED"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// PhaseMask is a set of phases, bit i standing for Phase(i).
type PhaseMask uint8

func MaskOf(phases ...Phase) PhaseMask {
	var m PhaseMask
	for _, p := range phases {
		m |= 1 << p
	}
	return m
}

func (m PhaseMask) Has(p Phase) bool {
	return m&(1<<p) != 0
}

func (m PhaseMask) String() string {
	var names []string
	for p := PhaseUninitialized; p <= PhaseTerminated; p++ {
		if m.Has(p) {
			names = append(names, p.String())
		}
	}
	return strings.Join(names, "|")
}

var (
	ConfigPhases  = MaskOf(PhaseInitialized)
	TradingPhases = MaskOf(PhasePreMarket, PhaseInSession)
)

// Operation names a phase restricted handle call. Queries are not listed,
// they are plain method calls without a gate.
type Operation uint8

const (
	OpRunDaily Operation = iota
	OpRunEvery
	OpSubscribe
	OpOrder
	OpOrderTarget
	OpOrderValue
	OpCancel
	opCount
)

func (op Operation) String() string {
	switch op {
	case OpRunDaily:
		return "run_daily"
	case OpRunEvery:
		return "run_every"
	case OpSubscribe:
		return "subscribe"
	case OpOrder:
		return "order"
	case OpOrderTarget:
		return "order_target"
	case OpOrderValue:
		return "order_value"
	case OpCancel:
		return "cancel"
	}
	return fmt.Sprintf("Operation(%d)", uint8(op))
}

type PhaseViolationError struct {
	Operation Operation
	Phase     Phase
	Allowed   PhaseMask
}

func (e *PhaseViolationError) Error() string {
	return fmt.Sprintf("%s called in %s, allowed in %s", e.Operation, e.Phase, e.Allowed)
}

func (e *PhaseViolationError) Unwrap() error {
	return ErrPhaseViolation
}

// gate maps every restricted operation to the phases it may run in. It is
// fixed once the engine is built.
type gate [opCount]PhaseMask

func newGate(trading PhaseMask) gate {
	var g gate
	g[OpRunDaily] = ConfigPhases
	g[OpRunEvery] = ConfigPhases
	g[OpSubscribe] = ConfigPhases
	g[OpOrder] = trading
	g[OpOrderTarget] = trading
	g[OpOrderValue] = trading
	g[OpCancel] = trading
	return g
}

func (g *gate) check(op Operation, p Phase) error {
	if g[op].Has(p) {
		return nil
	}
	return &PhaseViolationError{Operation: op, Phase: p, Allowed: g[op]}
}
