package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility"
)

var ErrCorrupt = errors.New("corrupt journal")

const maxRecordSize = 16 << 20

// Entry holds one decoded record. Exactly one of the pointers is set.
type Entry struct {
	Kind      protowire.Number
	RunID     *utility.ExecutionID
	Fill      *common.Fill
	Rejection *common.Rejection
	Snapshot  *common.Snapshot
}

type Reader struct {
	r   *bufio.Reader
	loc *time.Location
	buf []byte
}

// NewReader decodes timestamps into loc.
func NewReader(r io.Reader, loc *time.Location) *Reader {
	return &Reader{r: bufio.NewReader(r), loc: loc}
}

// Next returns io.EOF after the last complete record.
func (j *Reader) Next() (Entry, error) {
	size, err := binary.ReadUvarint(j.r)
	if errors.Is(err, io.EOF) {
		return Entry{}, io.EOF
	}
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if size > maxRecordSize {
		return Entry{}, fmt.Errorf("%w: record of %d bytes", ErrCorrupt, size)
	}

	if cap(j.buf) < int(size) {
		j.buf = make([]byte, size)
	}
	j.buf = j.buf[:size]
	if _, err := io.ReadFull(j.r, j.buf); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	num, typ, n := protowire.ConsumeTag(j.buf)
	if n < 0 || typ != protowire.BytesType {
		return Entry{}, fmt.Errorf("%w: bad record tag", ErrCorrupt)
	}
	body, m := protowire.ConsumeBytes(j.buf[n:])
	if m < 0 {
		return Entry{}, fmt.Errorf("%w: %w", ErrCorrupt, protowire.ParseError(m))
	}

	e := Entry{Kind: num}
	switch num {
	case KindHeader:
		id, err := uuid.FromBytes(body)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		e.RunID = &id
	case KindFill:
		f, err := unmarshalFill(body, j.loc)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: fill: %w", ErrCorrupt, err)
		}
		e.Fill = &f
	case KindRejection:
		r, err := unmarshalRejection(body, j.loc)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: rejection: %w", ErrCorrupt, err)
		}
		e.Rejection = &r
	case KindSnapshot:
		s, err := unmarshalSnapshot(body, j.loc)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: snapshot: %w", ErrCorrupt, err)
		}
		e.Snapshot = &s
	default:
		return Entry{}, fmt.Errorf("%w: unknown record kind %d", ErrCorrupt, num)
	}
	return e, nil
}

// ReadAll decodes every record in r.
func ReadAll(r io.Reader, loc *time.Location) ([]Entry, error) {
	jr := NewReader(r, loc)
	var out []Entry
	for {
		e, err := jr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
