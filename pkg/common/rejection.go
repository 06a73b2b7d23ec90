package common

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/utility"
)

type RejectReason string

const (
	RejectReasonSuspended            RejectReason = "SUSPENDED"
	RejectReasonLimitUp              RejectReason = "LIMIT_UP"
	RejectReasonLimitDown            RejectReason = "LIMIT_DOWN"
	RejectReasonZeroAfterRounding    RejectReason = "ZERO_AFTER_ROUNDING"
	RejectReasonInsufficientFunds    RejectReason = "INSUFFICIENT_FUNDS"
	RejectReasonInsufficientPosition RejectReason = "INSUFFICIENT_POSITION"
	RejectReasonInvalidOrder         RejectReason = "INVALID_ORDER"
)

// Rejection is the terminal outcome of an order that failed validation.
type Rejection struct {
	Order     Order        `json:"order"`
	Reason    RejectReason `json:"reason"`
	Detail    string       `json:"detail,omitempty"`
	TimeStamp time.Time    `json:"ts"`

	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("order %d rejected: %s", r.Order.ID, r.Reason)
	}
	return fmt.Sprintf("order %d rejected: %s: %s", r.Order.ID, r.Reason, r.Detail)
}

func (r *Rejection) Fields() []zap.Field {
	return append(r.Order.Fields(),
		zap.String("reason", string(r.Reason)),
		zap.String("detail", r.Detail))
}
