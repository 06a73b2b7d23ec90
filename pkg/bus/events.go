package bus

type EventId uint8

const (
	BarEvent EventId = iota
	OrderEvent
	OrderRejectionEvent
	OrderFillEvent
	OrderExpiryEvent
	OrderCancelEvent
	CorporateActionEvent
	SnapshotEvent
)

func (id EventId) String() string {
	switch id {
	case BarEvent:
		return "bar"
	case OrderEvent:
		return "order"
	case OrderRejectionEvent:
		return "order_rejection"
	case OrderFillEvent:
		return "order_fill"
	case OrderExpiryEvent:
		return "order_expiry"
	case OrderCancelEvent:
		return "order_cancel"
	case CorporateActionEvent:
		return "corporate_action"
	case SnapshotEvent:
		return "snapshot"
	}
	return "unknown"
}
