package events

import "sync/atomic"

// SchemaVersion is the current event schema version.
const SchemaVersion uint16 = 1

// Type defines the category of an event.
type Type uint16

const (
	TypeUnknown Type = iota
	TypeQuoteTick
	TypeTradeTick
	TypeBar
	TypeOrderSubmitted
	TypeOrderAccepted
	TypeOrderRejected
	TypeOrderFilled
	TypeOrderCanceled
	TypeOrderExpired
	TypeOrderPendingCancel
	TypePositionOpened
	TypePositionChanged
	TypePositionClosed
	TypeRiskDenied
	TypeHandlerFailed
)

func (t Type) String() string {
	switch t {
	case TypeQuoteTick:
		return "QuoteTick"
	case TypeTradeTick:
		return "TradeTick"
	case TypeBar:
		return "Bar"
	case TypeOrderSubmitted:
		return "OrderSubmitted"
	case TypeOrderAccepted:
		return "OrderAccepted"
	case TypeOrderRejected:
		return "OrderRejected"
	case TypeOrderFilled:
		return "OrderFilled"
	case TypeOrderCanceled:
		return "OrderCanceled"
	case TypeOrderExpired:
		return "OrderExpired"
	case TypeOrderPendingCancel:
		return "OrderPendingCancel"
	case TypePositionOpened:
		return "PositionOpened"
	case TypePositionChanged:
		return "PositionChanged"
	case TypePositionClosed:
		return "PositionClosed"
	case TypeRiskDenied:
		return "RiskDenied"
	case TypeHandlerFailed:
		return "HandlerFailed"
	default:
		return "Unknown"
	}
}

// Header is the common metadata attached to every event. Events are
// immutable once published; consumers receive values, never pointers
// into engine state.
type Header struct {
	Type    Type   `json:"type"`
	Version uint16 `json:"version"`
	Seq     uint64 `json:"seq"`
	TsEvent int64  `json:"tsEvent"`
	TsInit  int64  `json:"tsInit"`
}

// Event is any fact published on the message bus.
type Event interface {
	EventHeader() Header
	EventTopic() string
}

// EventHeader implements Event for types embedding Header.
func (h Header) EventHeader() Header { return h }

// Sequencer assigns causally-ordered sequence numbers. One sequencer
// per kernel instance keeps the event stream totally ordered.
type Sequencer struct {
	next uint64
}

// NewSequencer creates a sequencer starting at zero.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// NextHeader mints a header stamped with the next sequence number.
// tsEvent is when the fact occurred, tsInit when the kernel created
// the event object.
func (s *Sequencer) NextHeader(t Type, tsEvent, tsInit int64) Header {
	return Header{
		Type:    t,
		Version: SchemaVersion,
		Seq:     atomic.AddUint64(&s.next, 1),
		TsEvent: tsEvent,
		TsInit:  tsInit,
	}
}

// Last returns the most recently assigned sequence number.
func (s *Sequencer) Last() uint64 {
	return atomic.LoadUint64(&s.next)
}
