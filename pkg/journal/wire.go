package journal

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Record kinds double as the field number of the record body.
const (
	KindHeader    protowire.Number = 1
	KindFill      protowire.Number = 2
	KindRejection protowire.Number = 3
	KindSnapshot  protowire.Number = 4
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendPoint(b []byte, num protowire.Number, p fixed.Point) []byte {
	if p.IsZero() {
		return b
	}
	return appendString(b, num, p.String())
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendInt(b, num, t.UnixNano())
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func marshalFill(b []byte, f common.Fill) []byte {
	b = appendUint(b, 1, f.ID)
	b = appendUint(b, 2, f.OrderID)
	b = appendString(b, 3, f.Security)
	b = appendUint(b, 4, uint64(f.Side))
	b = appendInt(b, 5, f.Quantity)
	b = appendPoint(b, 6, f.Price)
	b = appendPoint(b, 7, f.Commission)
	b = appendPoint(b, 8, f.Slippage)
	b = appendTime(b, 9, f.TimeStamp)
	b = appendUint(b, 10, f.TraceID)
	return b
}

func marshalRejection(b []byte, r common.Rejection) []byte {
	o := r.Order
	b = appendUint(b, 1, o.ID)
	b = appendString(b, 2, o.Security)
	b = appendUint(b, 3, uint64(o.Side))
	b = appendUint(b, 4, uint64(o.Type))
	b = appendInt(b, 5, o.Quantity)
	b = appendPoint(b, 6, o.LimitPrice)
	b = appendString(b, 7, string(r.Reason))
	b = appendString(b, 8, r.Detail)
	b = appendTime(b, 9, r.TimeStamp)
	b = appendUint(b, 10, r.TraceID)
	return b
}

func marshalPosition(b []byte, p common.Position) []byte {
	b = appendString(b, 1, p.Security)
	b = appendInt(b, 2, p.Quantity)
	b = appendPoint(b, 3, p.CostBasis)
	b = appendInt(b, 4, p.TodayBought)
	b = appendPoint(b, 5, p.RealizedPnL)
	b = appendPoint(b, 6, p.LastPrice)
	return b
}

func marshalSnapshot(b []byte, s common.Snapshot) []byte {
	b = appendTime(b, 1, s.TimeStamp)
	b = appendPoint(b, 2, s.Cash)
	b = appendPoint(b, 3, s.TotalValue)
	var scratch []byte
	for _, p := range s.Positions {
		scratch = marshalPosition(scratch[:0], p)
		b = appendMessage(b, 4, scratch)
	}
	return b
}

// field is one decoded key/value pair. Varints land in u, length delimited
// values in raw.
type field struct {
	num protowire.Number
	u   uint64
	raw []byte
}

func walk(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) int() int64 {
	return protowire.DecodeZigZag(f.u)
}

func (f field) time(loc *time.Location) time.Time {
	return time.Unix(0, f.int()).In(loc)
}

func (f field) point() (fixed.Point, error) {
	p, err := fixed.Parse(string(f.raw))
	if err != nil {
		return fixed.Zero, fmt.Errorf("field %d: %w", f.num, err)
	}
	return p, nil
}

func unmarshalFill(b []byte, loc *time.Location) (common.Fill, error) {
	var out common.Fill
	err := walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			out.ID = f.u
		case 2:
			out.OrderID = f.u
		case 3:
			out.Security = string(f.raw)
		case 4:
			out.Side = common.OrderSide(f.u)
		case 5:
			out.Quantity = f.int()
		case 6:
			out.Price, err = f.point()
		case 7:
			out.Commission, err = f.point()
		case 8:
			out.Slippage, err = f.point()
		case 9:
			out.TimeStamp = f.time(loc)
		case 10:
			out.TraceID = f.u
		}
		return err
	})
	return out, err
}

func unmarshalRejection(b []byte, loc *time.Location) (common.Rejection, error) {
	var out common.Rejection
	err := walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			out.Order.ID = f.u
		case 2:
			out.Order.Security = string(f.raw)
		case 3:
			out.Order.Side = common.OrderSide(f.u)
		case 4:
			out.Order.Type = common.OrderType(f.u)
		case 5:
			out.Order.Quantity = f.int()
		case 6:
			out.Order.LimitPrice, err = f.point()
		case 7:
			out.Reason = common.RejectReason(f.raw)
		case 8:
			out.Detail = string(f.raw)
		case 9:
			out.TimeStamp = f.time(loc)
		case 10:
			out.TraceID = f.u
		}
		return err
	})
	out.Order.Status = common.OrderStatusRejected
	out.Order.RejectReason = out.Reason
	return out, err
}

func unmarshalPosition(b []byte) (common.Position, error) {
	var out common.Position
	err := walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			out.Security = string(f.raw)
		case 2:
			out.Quantity = f.int()
		case 3:
			out.CostBasis, err = f.point()
		case 4:
			out.TodayBought = f.int()
		case 5:
			out.RealizedPnL, err = f.point()
		case 6:
			out.LastPrice, err = f.point()
		}
		return err
	})
	return out, err
}

func unmarshalSnapshot(b []byte, loc *time.Location) (common.Snapshot, error) {
	var out common.Snapshot
	err := walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			out.TimeStamp = f.time(loc)
		case 2:
			out.Cash, err = f.point()
		case 3:
			out.TotalValue, err = f.point()
		case 4:
			var p common.Position
			if p, err = unmarshalPosition(f.raw); err == nil {
				out.Positions = append(out.Positions, p)
			}
		}
		return err
	})
	return out, err
}
