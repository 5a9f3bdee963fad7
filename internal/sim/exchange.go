package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// ReportSink receives execution reports produced by the exchange.
// In the backtest kernel this is Engine.HandleExecutionReport, so
// reports land synchronously and in a reproducible order.
type ReportSink func(events.ExecutionReport)

type topOfBook struct {
	bidPx decimal.Decimal
	askPx decimal.Decimal
	bidSz decimal.Decimal
	askSz decimal.Decimal
	valid bool
}

type restingOrder struct {
	cmd    events.SubmitOrder
	venue  identity.VenueOrderID
	leaves decimal.Decimal
	price  decimal.Decimal
}

// Exchange is a simulated venue. It implements the execution-client
// contract: commands come in through Submit, Cancel and Modify, and
// acknowledgments, fills and cancels come back through the report sink.
// Market orders fill against the current top of book. Limit orders fill
// when marketable, capped at the displayed size, and rest otherwise;
// resting orders are re-checked on every quote in submission order.
type Exchange struct {
	mu       sync.Mutex
	clock    clock.Clock
	reg      *identity.Registry
	sink     ReportSink
	books    map[identity.InstrumentID]topOfBook
	resting  map[identity.ClientOrderID]*restingOrder
	queue    []identity.ClientOrderID
	venueSeq uint64
}

// NewExchange creates a simulated venue bound to the given clock and
// instrument registry.
func NewExchange(clk clock.Clock, reg *identity.Registry, sink ReportSink) (*Exchange, error) {
	if clk == nil || reg == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "sim exchange")
	}
	if sink == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "sim exchange report sink")
	}
	return &Exchange{
		clock:   clk,
		reg:     reg,
		sink:    sink,
		books:   make(map[identity.InstrumentID]topOfBook),
		resting: make(map[identity.ClientOrderID]*restingOrder),
	}, nil
}

// OnQuote updates the simulated top of book and matches resting orders
// against the new prices.
func (x *Exchange) OnQuote(q events.QuoteTick) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.books[q.InstrumentID] = topOfBook{
		bidPx: q.BidPx,
		askPx: q.AskPx,
		bidSz: q.BidSz,
		askSz: q.AskSz,
		valid: true,
	}
	x.matchResting(q.InstrumentID)
}

// RestingCount returns the number of orders currently resting.
func (x *Exchange) RestingCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.resting)
}

// Submit accepts an order, assigns a venue order id, and attempts an
// immediate match.
func (x *Exchange) Submit(_ context.Context, cmd events.SubmitOrder) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.reg.Instrument(cmd.InstrumentID); !ok {
		x.reject(cmd.ClientOrderID, "", cmd.InstrumentID, "unknown instrument")
		return nil
	}
	if cmd.OrderType == events.OrderTypeStop {
		x.reject(cmd.ClientOrderID, "", cmd.InstrumentID, "stop orders not supported")
		return nil
	}

	x.venueSeq++
	venue := identity.VenueOrderID(fmt.Sprintf("SIM-%d", x.venueSeq))
	x.report(events.ExecutionReport{
		Kind:          events.ReportAccepted,
		ClientOrderID: cmd.ClientOrderID,
		VenueOrderID:  venue,
		InstrumentID:  cmd.InstrumentID,
	})

	ro := &restingOrder{cmd: cmd, venue: venue, leaves: cmd.Qty, price: cmd.Price}
	x.tryFill(ro)
	if ro.leaves.IsZero() {
		return nil
	}

	switch {
	case cmd.OrderType == events.OrderTypeMarket:
		// A market order that cannot fill against the current book
		// cancels rather than rests.
		x.cancelReport(ro, "no liquidity")
	case cmd.TimeInForce == events.TimeInForceIOC:
		x.cancelReport(ro, "ioc remainder canceled")
	case cmd.TimeInForce == events.TimeInForceFOK && ro.leaves.Equal(cmd.Qty):
		x.cancelReport(ro, "fok not fillable")
	case cmd.TimeInForce == events.TimeInForceFOK:
		// Partially filled FOK cannot happen: tryFill fills FOK all or
		// nothing. Guard anyway.
		x.cancelReport(ro, "fok remainder canceled")
	default:
		x.resting[cmd.ClientOrderID] = ro
		x.queue = append(x.queue, cmd.ClientOrderID)
	}
	return nil
}

// Cancel removes a resting order. Unknown or already-done orders get a
// reject report rather than an error.
func (x *Exchange) Cancel(_ context.Context, cmd events.CancelOrder) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	ro, ok := x.resting[cmd.ClientOrderID]
	if !ok {
		x.reject(cmd.ClientOrderID, "", cmd.InstrumentID, "order not working")
		return nil
	}
	x.cancelReport(ro, "canceled by request")
	x.remove(cmd.ClientOrderID)
	return nil
}

// Modify adjusts the quantity or price of a resting order, then
// re-checks it against the book.
func (x *Exchange) Modify(_ context.Context, cmd events.ModifyOrder) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	ro, ok := x.resting[cmd.ClientOrderID]
	if !ok {
		x.reject(cmd.ClientOrderID, "", cmd.InstrumentID, "order not working")
		return nil
	}
	if !cmd.NewQty.IsZero() {
		filled := ro.cmd.Qty.Sub(ro.leaves)
		if cmd.NewQty.LessThanOrEqual(filled) {
			x.cancelReport(ro, "modify below filled quantity")
			x.remove(cmd.ClientOrderID)
			return nil
		}
		ro.cmd.Qty = cmd.NewQty
		ro.leaves = cmd.NewQty.Sub(filled)
	}
	if !cmd.NewPrice.IsZero() {
		ro.price = cmd.NewPrice
	}
	x.tryFill(ro)
	if ro.leaves.IsZero() {
		x.remove(cmd.ClientOrderID)
	}
	return nil
}

// matchResting walks resting orders in submission order and fills any
// that the fresh book makes marketable.
func (x *Exchange) matchResting(id identity.InstrumentID) {
	var done []identity.ClientOrderID
	for _, coid := range x.queue {
		ro, ok := x.resting[coid]
		if !ok || ro.cmd.InstrumentID != id {
			continue
		}
		x.tryFill(ro)
		if ro.leaves.IsZero() {
			done = append(done, coid)
		}
	}
	for _, coid := range done {
		x.remove(coid)
	}
}

func (x *Exchange) tryFill(ro *restingOrder) {
	book, ok := x.books[ro.cmd.InstrumentID]
	if !ok || !book.valid {
		return
	}

	var px, avail decimal.Decimal
	if ro.cmd.Side == events.SideBuy {
		px, avail = book.askPx, book.askSz
	} else {
		px, avail = book.bidPx, book.bidSz
	}
	if !px.IsPositive() || !avail.IsPositive() {
		return
	}
	if ro.cmd.OrderType == events.OrderTypeLimit && !x.marketable(ro, px) {
		return
	}

	qty := ro.leaves
	if ro.cmd.OrderType == events.OrderTypeMarket {
		// Single-level model: market orders sweep the full remainder
		// at the top price.
	} else if avail.LessThan(qty) {
		if ro.cmd.TimeInForce == events.TimeInForceFOK {
			return
		}
		qty = avail
	}

	ro.leaves = ro.leaves.Sub(qty)
	x.report(events.ExecutionReport{
		Kind:          events.ReportFill,
		ClientOrderID: ro.cmd.ClientOrderID,
		VenueOrderID:  ro.venue,
		InstrumentID:  ro.cmd.InstrumentID,
		LastQty:       qty,
		LastPx:        px,
	})
}

func (x *Exchange) marketable(ro *restingOrder, topPx decimal.Decimal) bool {
	if ro.cmd.Side == events.SideBuy {
		return ro.price.GreaterThanOrEqual(topPx)
	}
	return ro.price.LessThanOrEqual(topPx)
}

func (x *Exchange) cancelReport(ro *restingOrder, reason string) {
	x.report(events.ExecutionReport{
		Kind:          events.ReportCanceled,
		ClientOrderID: ro.cmd.ClientOrderID,
		VenueOrderID:  ro.venue,
		InstrumentID:  ro.cmd.InstrumentID,
		Reason:        reason,
	})
}

func (x *Exchange) reject(coid identity.ClientOrderID, venue identity.VenueOrderID, inst identity.InstrumentID, reason string) {
	x.report(events.ExecutionReport{
		Kind:          events.ReportRejected,
		ClientOrderID: coid,
		VenueOrderID:  venue,
		InstrumentID:  inst,
		Reason:        reason,
	})
}

func (x *Exchange) report(r events.ExecutionReport) {
	r.TsEvent = x.clock.Now().UnixNano()
	x.sink(r)
}

func (x *Exchange) remove(coid identity.ClientOrderID) {
	delete(x.resting, coid)
	for i, q := range x.queue {
		if q == coid {
			x.queue = append(x.queue[:i], x.queue[i+1:]...)
			break
		}
	}
}
