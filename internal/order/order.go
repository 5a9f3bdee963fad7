package order

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// transitions holds the legal non-fill edges. Fills are resolved in
// ApplyFill because the target depends on the remaining quantity.
var transitions = map[Status]map[EventKind]Status{
	StatusInitialized: {
		KindSubmitted: StatusSubmitted,
	},
	StatusSubmitted: {
		KindAccepted: StatusAccepted,
		KindRejected: StatusRejected,
	},
	StatusAccepted: {
		KindCanceled:      StatusCanceled,
		KindExpired:       StatusExpired,
		KindPendingCancel: StatusPendingCancel,
	},
	StatusPartiallyFilled: {
		KindCanceled: StatusCanceled,
		KindExpired:  StatusExpired,
	},
	StatusPendingCancel: {
		KindCanceled: StatusCanceled,
	},
}

// fillSources are the states from which a fill is applicable.
var fillSources = map[Status]struct{}{
	StatusAccepted:        {},
	StatusPartiallyFilled: {},
	StatusPendingCancel:   {},
}

// Transition is one recorded state change.
type Transition struct {
	TsEvent int64
	Kind    EventKind
	From    Status
	To      Status
}

// Order is the execution engine's mutable record of one order. All
// mutation goes through Apply/ApplyFill so the lifecycle invariants
// cannot be bypassed.
type Order struct {
	TraderID      identity.TraderID
	StrategyID    identity.StrategyID
	AccountID     identity.AccountID
	InstrumentID  identity.InstrumentID
	ClientOrderID identity.ClientOrderID
	VenueOrderID  identity.VenueOrderID
	Side          events.Side
	Type          events.OrderType
	TimeInForce   events.TimeInForce
	Qty           decimal.Decimal
	Price         decimal.Decimal

	status      Status
	filledQty   decimal.Decimal
	avgFillPx   decimal.Decimal
	transitions []Transition
}

// New creates an order in the Initialized state from a submit command.
func New(cmd events.SubmitOrder) *Order {
	return &Order{
		TraderID:      cmd.TraderID,
		StrategyID:    cmd.StrategyID,
		AccountID:     cmd.AccountID,
		InstrumentID:  cmd.InstrumentID,
		ClientOrderID: cmd.ClientOrderID,
		Side:          cmd.Side,
		Type:          cmd.OrderType,
		TimeInForce:   cmd.TimeInForce,
		Qty:           cmd.Qty,
		Price:         cmd.Price,
		status:        StatusInitialized,
	}
}

// Status returns the current lifecycle state.
func (o *Order) Status() Status { return o.status }

// FilledQty returns the cumulative filled quantity.
func (o *Order) FilledQty() decimal.Decimal { return o.filledQty }

// LeavesQty returns the quantity still working.
func (o *Order) LeavesQty() decimal.Decimal { return o.Qty.Sub(o.filledQty) }

// AvgFillPx returns the quantity-weighted average fill price.
func (o *Order) AvgFillPx() decimal.Decimal { return o.avgFillPx }

// IsTerminal reports whether the order accepts no further transitions.
func (o *Order) IsTerminal() bool { return o.status.IsTerminal() }

// IsOpen reports whether the order still holds venue-side exposure.
func (o *Order) IsOpen() bool {
	switch o.status {
	case StatusSubmitted, StatusAccepted, StatusPartiallyFilled, StatusPendingCancel:
		return true
	default:
		return false
	}
}

// Transitions returns the ordered log of recorded state changes.
func (o *Order) Transitions() []Transition {
	out := make([]Transition, len(o.transitions))
	copy(out, o.transitions)
	return out
}

// Apply feeds a non-fill lifecycle event through the state machine.
// Inapplicable events return ErrOrderInvalidTransition and leave the
// order unchanged, which shields the engine from duplicate or
// out-of-order venue reports.
func (o *Order) Apply(kind EventKind, tsEvent int64) error {
	if kind == KindFill {
		return errors.Wrap(exception.ErrInvalidArgument, "fills go through ApplyFill")
	}
	next, ok := transitions[o.status][kind]
	if !ok {
		return errors.Wrapf(exception.ErrOrderInvalidTransition,
			"order: %s, state: %s, event: %s", o.ClientOrderID, o.status, kind)
	}
	o.record(kind, next, tsEvent)
	return nil
}

// ApplyFill applies one fill. A fill that would drive the cumulative
// quantity above the original quantity is rejected, never clamped. A
// fill while a cancel is pending resolves the cancel/fill race: a
// completing fill wins and the order ends Filled.
func (o *Order) ApplyFill(qty, px decimal.Decimal, tsEvent int64) error {
	if _, ok := fillSources[o.status]; !ok {
		return errors.Wrapf(exception.ErrOrderInvalidTransition,
			"order: %s, state: %s, event: fill", o.ClientOrderID, o.status)
	}
	if !qty.IsPositive() {
		return errors.Wrapf(exception.ErrOrderInvalidQty, "fill qty: %s", qty)
	}
	if qty.GreaterThan(o.LeavesQty()) {
		return errors.Wrapf(exception.ErrOrderOverfill,
			"order: %s, fill: %s, leaves: %s", o.ClientOrderID, qty, o.LeavesQty())
	}

	prevFilled := o.filledQty
	o.filledQty = o.filledQty.Add(qty)
	if prevFilled.IsZero() {
		o.avgFillPx = px
	} else {
		notional := o.avgFillPx.Mul(prevFilled).Add(px.Mul(qty))
		o.avgFillPx = notional.Div(o.filledQty)
	}

	next := StatusPartiallyFilled
	switch {
	case o.filledQty.Equal(o.Qty):
		next = StatusFilled
	case o.status == StatusPendingCancel:
		// Partial fill during a pending cancel: keep waiting for the
		// venue to confirm the cancel of the remainder.
		next = StatusPendingCancel
	}
	o.record(KindFill, next, tsEvent)
	return nil
}

// Deny moves a not-yet-submitted order straight to Rejected. This is
// the risk-denial edge: the order never left the process, so there is
// no Submitted intermediate to pass through.
func (o *Order) Deny(tsEvent int64) error {
	if o.status != StatusInitialized {
		return errors.Wrapf(exception.ErrOrderInvalidTransition,
			"order: %s, state: %s, event: deny", o.ClientOrderID, o.status)
	}
	o.record(KindRejected, StatusRejected, tsEvent)
	return nil
}

func (o *Order) record(kind EventKind, next Status, tsEvent int64) {
	o.transitions = append(o.transitions, Transition{
		TsEvent: tsEvent,
		Kind:    kind,
		From:    o.status,
		To:      next,
	})
	o.status = next
}
