package enum

// Direction is the side of an order, trade or position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNet   Direction = "NET"
)

// Opposite returns the other side; DirectionNet maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return d
	}
}

// Offset tells whether an order opens a new position or closes an existing one.
type Offset string

const (
	OffsetNone           Offset = ""
	OffsetOpen           Offset = "OPEN"
	OffsetClose          Offset = "CLOSE"
	OffsetCloseToday     Offset = "CLOSE_TODAY"
	OffsetCloseYesterday Offset = "CLOSE_YESTERDAY"
)

// OrderType is the execution instruction attached to an order request.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeStop   OrderType = "STOP"
	OrderTypeFAK    OrderType = "FAK"
	OrderTypeFOK    OrderType = "FOK"
)

// Status tracks the lifecycle of an order or quote.
//
// Lifecycle: Submitting -> NotTraded -> PartTraded -> AllTraded, or any
// non-terminal state -> Cancelled | Rejected. Terminal states never leave.
type Status string

const (
	StatusSubmitting Status = "SUBMITTING"
	StatusNotTraded  Status = "NOT_TRADED"
	StatusPartTraded Status = "PART_TRADED"
	StatusAllTraded  Status = "ALL_TRADED"
	StatusCancelled  Status = "CANCELLED"
	StatusRejected   Status = "REJECTED"
)

// IsActive reports whether the status still allows further updates from the
// gateway (not fully filled, cancelled or rejected).
func (s Status) IsActive() bool {
	switch s {
	case StatusSubmitting, StatusNotTraded, StatusPartTraded:
		return true
	default:
		return false
	}
}
