package utility

import (
	"time"
)

type TraceID = uint64

const (
	machineBits  = 10
	sequenceBits = 13

	maxSequence = 1<<sequenceBits - 1
	maxMachine  = 1<<machineBits - 1

	timestampShift = machineBits + sequenceBits
	machineShift   = sequenceBits
)

var epoch = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

// TraceGenerator packs simulation time, a machine id and a sequence into one id.
// It never reads the wall clock, so ids only depend on the replayed data.
type TraceGenerator struct {
	machine  uint64
	sequence uint64
}

func NewTraceGenerator(id ExecutionID) *TraceGenerator {
	return &TraceGenerator{machine: uint64(id.ID()) & maxMachine}
}

func (g *TraceGenerator) Next(simulationTime time.Time) TraceID {
	g.sequence++
	seconds := simulationTime.Unix() - epoch
	if seconds < 0 {
		seconds = 0
	}
	return (uint64(seconds) << timestampShift) | (g.machine << machineShift) | (g.sequence & maxSequence)
}

func ParseTraceID(id TraceID) (timestamp time.Time, machine uint64, seq uint64) {
	seq = id & maxSequence
	machine = (id >> machineShift) & maxMachine
	ts := id >> timestampShift
	timestamp = time.Unix(epoch+int64(ts), 0).UTC() // #nosec G115
	return
}
