package order

// Status tracks the lifecycle of an order.
type Status uint16

const (
	StatusInitialized Status = iota
	StatusSubmitted
	StatusAccepted
	StatusRejected
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusExpired
	StatusPendingCancel
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "INITIALIZED"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejected:
		return "REJECTED"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusExpired:
		return "EXPIRED"
	case StatusPendingCancel:
		return "PENDING_CANCEL"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusFilled, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// EventKind is the order lifecycle input fed to the state machine.
type EventKind uint16

const (
	KindUnknown EventKind = iota
	KindSubmitted
	KindAccepted
	KindRejected
	KindFill
	KindCanceled
	KindExpired
	KindPendingCancel
)

func (k EventKind) String() string {
	switch k {
	case KindSubmitted:
		return "submitted"
	case KindAccepted:
		return "accepted"
	case KindRejected:
		return "rejected"
	case KindFill:
		return "fill"
	case KindCanceled:
		return "canceled"
	case KindExpired:
		return "expired"
	case KindPendingCancel:
		return "pending_cancel"
	default:
		return "unknown"
	}
}
