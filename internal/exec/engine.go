package exec

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/internal/obs"
	"github.com/alexanu/nautilus-trader/internal/order"
	"github.com/alexanu/nautilus-trader/internal/portfolio"
	"github.com/alexanu/nautilus-trader/internal/risk"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// RefPxFunc supplies a reference price for market-order notional
// valuation, normally the data engine's last price.
type RefPxFunc func(identity.InstrumentID) (decimal.Decimal, bool)

// Engine owns every order after submission. All mutation of orders and
// positions runs under one mutex: correctness dominates throughput, so
// a single writer beats fine-grained lock juggling. Events are staged
// under the lock and published after it is released, so a bus handler
// may call back into the engine without deadlocking.
type Engine struct {
	mu sync.Mutex

	clock     clock.Clock
	bus       *bus.MessageBus
	reg       *identity.Registry
	risk      *risk.Engine
	portfolio *portfolio.Portfolio
	client    Client
	refPx     RefPxFunc
	seq       *events.Sequencer
	metrics   *obs.Metrics

	orders map[identity.ClientOrderID]*order.Order
}

// NewEngine wires an execution engine. The client binding is mandatory;
// metrics may be nil.
func NewEngine(
	clk clock.Clock,
	b *bus.MessageBus,
	reg *identity.Registry,
	riskEngine *risk.Engine,
	pf *portfolio.Portfolio,
	client Client,
	refPx RefPxFunc,
	seq *events.Sequencer,
	metrics *obs.Metrics,
) (*Engine, error) {
	if client == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "execution client is required")
	}
	if refPx == nil {
		refPx = func(identity.InstrumentID) (decimal.Decimal, bool) { return decimal.Zero, false }
	}
	return &Engine{
		clock:     clk,
		bus:       b,
		reg:       reg,
		risk:      riskEngine,
		portfolio: pf,
		client:    client,
		refPx:     refPx,
		seq:       seq,
		metrics:   metrics,
		orders:    make(map[identity.ClientOrderID]*order.Order),
	}, nil
}

// Order returns the engine's record of an order. Terminal orders are
// retained for audit and query.
func (e *Engine) Order(id identity.ClientOrderID) (*order.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	return o, ok
}

// OrderCount returns the number of tracked orders.
func (e *Engine) OrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.orders)
}

// SubmitOrder validates a submit command, asks the risk engine for
// clearance, and on approval forwards it to the execution client. On
// denial the order goes straight to Rejected and a RiskDenied event is
// published; no collaborator is contacted.
func (e *Engine) SubmitOrder(ctx context.Context, cmd events.SubmitOrder) error {
	e.mu.Lock()
	out, err := e.submitLocked(ctx, cmd)
	e.mu.Unlock()
	e.publishAll(out)
	return err
}

func (e *Engine) submitLocked(ctx context.Context, cmd events.SubmitOrder) ([]events.Event, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, ok := e.orders[cmd.ClientOrderID]; ok {
		return nil, errors.Wrapf(exception.ErrOrderDuplicate, "order: %s", cmd.ClientOrderID)
	}

	o := order.New(cmd)
	e.orders[cmd.ClientOrderID] = o
	now := e.clock.Now().UnixNano()

	started := e.clock.Now()
	decision := e.risk.EvaluateSubmit(cmd, e.stateView(cmd))
	e.metrics.ObserveRiskEval(e.clock.Now().Sub(started))

	if !decision.Allowed() {
		e.metrics.IncRiskReason(decision.Reason)
		if err := o.Deny(now); err != nil {
			return nil, err
		}
		out := []events.Event{
			events.RiskDenied{
				OrderEvent: e.orderEvent(events.TypeRiskDenied, o, now),
				Reason:     decision.Reason.String(),
			},
			events.OrderRejected{
				OrderEvent: e.orderEvent(events.TypeOrderRejected, o, now),
				Reason:     decision.Reason.String(),
			},
		}
		return out, errors.Wrapf(exception.ErrRiskDenied, "reason: %s", decision.Reason)
	}

	if err := o.Apply(order.KindSubmitted, now); err != nil {
		return nil, err
	}
	out := []events.Event{
		events.OrderSubmitted{OrderEvent: e.orderEvent(events.TypeOrderSubmitted, o, now)},
	}

	if err := e.client.Submit(ctx, cmd); err != nil {
		// Collaborator failure surfaces as a venue rejection; the order
		// never claims a state the venue did not acknowledge.
		now = e.clock.Now().UnixNano()
		if applyErr := o.Apply(order.KindRejected, now); applyErr != nil {
			logs.Errorf("reject after collaborator failure, order: %s, err: %+v", o.ClientOrderID, applyErr)
		}
		out = append(out, events.OrderRejected{
			OrderEvent: e.orderEvent(events.TypeOrderRejected, o, now),
			Reason:     err.Error(),
		})
		return out, errors.Wrap(exception.ErrCollaborator, err.Error())
	}
	return out, nil
}

// CancelOrder clears a cancel command and forwards it to the client.
// An Accepted order moves to PendingCancel; a partially filled order
// stays put until the venue confirms which side of the race won.
func (e *Engine) CancelOrder(ctx context.Context, cmd events.CancelOrder) error {
	e.mu.Lock()
	out, err := e.cancelLocked(ctx, cmd)
	e.mu.Unlock()
	e.publishAll(out)
	return err
}

func (e *Engine) cancelLocked(ctx context.Context, cmd events.CancelOrder) ([]events.Event, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	o, ok := e.orders[cmd.ClientOrderID]
	if !ok {
		return nil, errors.Wrapf(exception.ErrOrderUnknown, "order: %s", cmd.ClientOrderID)
	}
	if !o.IsOpen() {
		return nil, errors.Wrapf(exception.ErrOrderTerminal, "order: %s, state: %s", o.ClientOrderID, o.Status())
	}

	decision := e.risk.EvaluateCancel(cmd)
	if !decision.Allowed() {
		e.metrics.IncRiskReason(decision.Reason)
		out := []events.Event{events.RiskDenied{
			OrderEvent: e.orderEvent(events.TypeRiskDenied, o, e.clock.Now().UnixNano()),
			Reason:     decision.Reason.String(),
		}}
		return out, errors.Wrapf(exception.ErrRiskDenied, "reason: %s", decision.Reason)
	}

	var out []events.Event
	now := e.clock.Now().UnixNano()
	if o.Status() == order.StatusAccepted {
		if err := o.Apply(order.KindPendingCancel, now); err != nil {
			return nil, err
		}
		out = append(out, events.OrderPendingCancel{OrderEvent: e.orderEvent(events.TypeOrderPendingCancel, o, now)})
	}

	if err := e.client.Cancel(ctx, cmd); err != nil {
		logs.Errorf("cancel collaborator failure, order: %s, err: %+v", o.ClientOrderID, err)
		return out, errors.Wrap(exception.ErrCollaborator, err.Error())
	}
	return out, nil
}

// ModifyOrder clears a modify command and forwards it to the client.
// Modification does not change lifecycle state; the venue answers with
// reports as usual.
func (e *Engine) ModifyOrder(ctx context.Context, cmd events.ModifyOrder) error {
	e.mu.Lock()
	out, err := e.modifyLocked(ctx, cmd)
	e.mu.Unlock()
	e.publishAll(out)
	return err
}

func (e *Engine) modifyLocked(ctx context.Context, cmd events.ModifyOrder) ([]events.Event, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	o, ok := e.orders[cmd.ClientOrderID]
	if !ok {
		return nil, errors.Wrapf(exception.ErrOrderUnknown, "order: %s", cmd.ClientOrderID)
	}
	if !o.IsOpen() {
		return nil, errors.Wrapf(exception.ErrOrderTerminal, "order: %s, state: %s", o.ClientOrderID, o.Status())
	}

	newQty := cmd.NewQty
	if newQty.IsZero() {
		newQty = o.LeavesQty()
	}
	newPx := cmd.NewPrice
	if newPx.IsZero() {
		newPx = o.Price
	}
	decision := e.risk.EvaluateModify(cmd, newQty.Mul(newPx).Abs())
	if !decision.Allowed() {
		e.metrics.IncRiskReason(decision.Reason)
		out := []events.Event{events.RiskDenied{
			OrderEvent: e.orderEvent(events.TypeRiskDenied, o, e.clock.Now().UnixNano()),
			Reason:     decision.Reason.String(),
		}}
		return out, errors.Wrapf(exception.ErrRiskDenied, "reason: %s", decision.Reason)
	}

	if err := e.client.Modify(ctx, cmd); err != nil {
		logs.Errorf("modify collaborator failure, order: %s, err: %+v", o.ClientOrderID, err)
		return nil, errors.Wrap(exception.ErrCollaborator, err.Error())
	}
	return nil, nil
}

// HandleExecutionReport is the sole entry point for venue-originated
// order events. Unknown orders and inapplicable transitions are logged
// and dropped, never fatal: stale or duplicate venue messages must not
// disturb engine state.
func (e *Engine) HandleExecutionReport(report events.ExecutionReport) {
	e.mu.Lock()
	out := e.handleReportLocked(report)
	e.mu.Unlock()
	e.publishAll(out)
}

func (e *Engine) handleReportLocked(report events.ExecutionReport) []events.Event {
	o, ok := e.orders[report.ClientOrderID]
	if !ok {
		e.metrics.IncUnknownReport()
		logs.Warnf("drop report for unknown order: %s, kind: %s", report.ClientOrderID, report.Kind)
		return nil
	}
	if report.VenueOrderID != "" {
		o.VenueOrderID = report.VenueOrderID
	}

	switch report.Kind {
	case events.ReportAccepted:
		return e.applyEvent(o, order.KindAccepted, report.TsEvent)
	case events.ReportRejected:
		if err := o.Apply(order.KindRejected, report.TsEvent); err != nil {
			e.dropInvalid(o, err)
			return nil
		}
		return []events.Event{events.OrderRejected{
			OrderEvent: e.orderEvent(events.TypeOrderRejected, o, report.TsEvent),
			Reason:     report.Reason,
		}}
	case events.ReportCanceled:
		return e.applyEvent(o, order.KindCanceled, report.TsEvent)
	case events.ReportExpired:
		return e.applyEvent(o, order.KindExpired, report.TsEvent)
	case events.ReportFill:
		return e.applyFill(o, report)
	default:
		logs.Warnf("drop report with unknown kind, order: %s", report.ClientOrderID)
		return nil
	}
}

func (e *Engine) applyEvent(o *order.Order, kind order.EventKind, ts int64) []events.Event {
	if err := o.Apply(kind, ts); err != nil {
		e.dropInvalid(o, err)
		return nil
	}
	switch kind {
	case order.KindAccepted:
		return []events.Event{events.OrderAccepted{OrderEvent: e.orderEvent(events.TypeOrderAccepted, o, ts)}}
	case order.KindCanceled:
		return []events.Event{events.OrderCanceled{OrderEvent: e.orderEvent(events.TypeOrderCanceled, o, ts)}}
	case order.KindExpired:
		return []events.Event{events.OrderExpired{OrderEvent: e.orderEvent(events.TypeOrderExpired, o, ts)}}
	}
	return nil
}

func (e *Engine) applyFill(o *order.Order, report events.ExecutionReport) []events.Event {
	started := e.clock.Now()
	if err := o.ApplyFill(report.LastQty, report.LastPx, report.TsEvent); err != nil {
		e.dropInvalid(o, err)
		return nil
	}
	fill := events.OrderFilled{
		OrderEvent: e.orderEvent(events.TypeOrderFilled, o, report.TsEvent),
		Side:       o.Side,
		LastQty:    report.LastQty,
		LastPx:     report.LastPx,
		LeavesQty:  o.LeavesQty(),
		CumQty:     o.FilledQty(),
	}
	out := append([]events.Event{fill}, e.portfolio.ApplyFill(fill)...)
	e.metrics.ObserveFill(e.clock.Now().Sub(started))
	return out
}

func (e *Engine) dropInvalid(o *order.Order, err error) {
	e.metrics.IncInvalidTransition()
	logs.Warnf("drop inapplicable order event, order: %s, state: %s, err: %+v",
		o.ClientOrderID, o.Status(), err)
}

// stateView snapshots current exposure for the risk engine, including
// the working notional of in-flight orders.
func (e *Engine) stateView(cmd events.SubmitOrder) risk.StateView {
	refPx, _ := e.refPx(cmd.InstrumentID)
	inFlight := decimal.Zero
	for _, o := range e.orders {
		if o.AccountID != cmd.AccountID || !o.IsOpen() {
			continue
		}
		px := o.Price
		if px.IsZero() {
			px = refPx
		}
		inFlight = inFlight.Add(o.LeavesQty().Mul(px).Abs())
	}
	return risk.StateView{
		PositionQty:      e.portfolio.NetQty(cmd.AccountID, cmd.InstrumentID),
		AccountExposure:  e.portfolio.Exposure(cmd.AccountID),
		InFlightNotional: inFlight,
		RefPx:            refPx,
	}
}

func (e *Engine) orderEvent(t events.Type, o *order.Order, ts int64) events.OrderEvent {
	return events.OrderEvent{
		Header:        e.seq.NextHeader(t, ts, e.clock.Now().UnixNano()),
		TraderID:      o.TraderID,
		StrategyID:    o.StrategyID,
		AccountID:     o.AccountID,
		InstrumentID:  o.InstrumentID,
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
	}
}

func (e *Engine) publishAll(out []events.Event) {
	for _, ev := range out {
		e.bus.Publish(ev.EventTopic(), ev)
	}
}
