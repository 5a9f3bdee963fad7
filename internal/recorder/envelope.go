package recorder

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// Encode serializes an event into a record payload. The record header
// carries the event header; the payload carries the full typed event.
func Encode(ev events.Event) (events.Header, []byte, error) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return events.Header{}, nil, errors.Wrap(err, "encode event payload")
	}
	return ev.EventHeader(), payload, nil
}

// Decode rebuilds the typed event from a record. Unknown types are an
// error: the log version and the binary must agree.
func Decode(header events.Header, payload []byte) (events.Event, error) {
	var (
		ev  events.Event
		err error
	)
	switch header.Type {
	case events.TypeQuoteTick:
		ev, err = decodeAs[events.QuoteTick](payload)
	case events.TypeTradeTick:
		ev, err = decodeAs[events.TradeTick](payload)
	case events.TypeBar:
		ev, err = decodeAs[events.Bar](payload)
	case events.TypeOrderSubmitted:
		ev, err = decodeAs[events.OrderSubmitted](payload)
	case events.TypeOrderAccepted:
		ev, err = decodeAs[events.OrderAccepted](payload)
	case events.TypeOrderRejected:
		ev, err = decodeAs[events.OrderRejected](payload)
	case events.TypeOrderFilled:
		ev, err = decodeAs[events.OrderFilled](payload)
	case events.TypeOrderCanceled:
		ev, err = decodeAs[events.OrderCanceled](payload)
	case events.TypeOrderExpired:
		ev, err = decodeAs[events.OrderExpired](payload)
	case events.TypeOrderPendingCancel:
		ev, err = decodeAs[events.OrderPendingCancel](payload)
	case events.TypePositionOpened:
		ev, err = decodeAs[events.PositionOpened](payload)
	case events.TypePositionChanged:
		ev, err = decodeAs[events.PositionChanged](payload)
	case events.TypePositionClosed:
		ev, err = decodeAs[events.PositionClosed](payload)
	case events.TypeRiskDenied:
		ev, err = decodeAs[events.RiskDenied](payload)
	case events.TypeHandlerFailed:
		ev, err = decodeAs[events.HandlerFailed](payload)
	default:
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "unknown event type: %d", header.Type)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeAs[T events.Event](payload []byte) (events.Event, error) {
	var v T
	if err := sonic.Unmarshal(payload, &v); err != nil {
		return nil, errors.Wrap(err, "decode event payload")
	}
	return v, nil
}
