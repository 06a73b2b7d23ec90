package journal

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/peter-kozarec/replay/pkg/bus"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility"
)

// Writer appends length prefixed records to w. The encoding holds no wall
// clock or map iteration, so equal runs produce equal bytes.
type Writer struct {
	w       io.Writer
	record  []byte
	body    []byte
	records int
	err     error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader stamps the journal with the run it belongs to.
func (j *Writer) WriteHeader(runID utility.ExecutionID) error {
	j.body = append(j.body[:0], runID[:]...)
	return j.write(KindHeader)
}

func (j *Writer) WriteFill(f common.Fill) error {
	j.body = marshalFill(j.body[:0], f)
	return j.write(KindFill)
}

func (j *Writer) WriteRejection(r common.Rejection) error {
	j.body = marshalRejection(j.body[:0], r)
	return j.write(KindRejection)
}

func (j *Writer) WriteSnapshot(s common.Snapshot) error {
	j.body = marshalSnapshot(j.body[:0], s)
	return j.write(KindSnapshot)
}

func (j *Writer) write(kind protowire.Number) error {
	if j.err != nil {
		return j.err
	}
	j.record = appendMessage(j.record[:0], kind, j.body)
	frame := protowire.AppendVarint(nil, uint64(len(j.record)))
	frame = append(frame, j.record...)
	if _, err := j.w.Write(frame); err != nil {
		j.err = fmt.Errorf("unable to write journal record: %w", err)
		return j.err
	}
	j.records++
	return nil
}

func (j *Writer) Records() int {
	return j.records
}

// Err reports the first write failure seen by the event handlers.
func (j *Writer) Err() error {
	return j.err
}

func (j *Writer) WithOrderFill(handler bus.OrderFillEventHandler) bus.OrderFillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		_ = j.WriteFill(fill)
		handler(ctx, fill)
	}
}

func (j *Writer) WithOrderRejection(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejection common.Rejection) {
		_ = j.WriteRejection(rejection)
		handler(ctx, rejection)
	}
}

func (j *Writer) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		_ = j.WriteSnapshot(snapshot)
		handler(ctx, snapshot)
	}
}
