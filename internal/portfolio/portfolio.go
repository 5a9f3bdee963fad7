package portfolio

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

type pairKey struct {
	account    identity.AccountID
	instrument identity.InstrumentID
}

// Portfolio owns positions and accounts. Positions are created on the
// first fill of a flat pair and closed, never deleted, when net
// quantity returns to zero; a fresh identifier is minted if trading
// resumes.
type Portfolio struct {
	posIDs   *identity.PositionIDGenerator
	seq      *events.Sequencer
	open     map[pairKey]*Position
	closed   []*Position
	accounts map[identity.AccountID]*Account
}

// New creates an empty portfolio.
func New(trader identity.TraderID, seq *events.Sequencer) *Portfolio {
	return &Portfolio{
		posIDs:   identity.NewPositionIDGenerator(trader),
		seq:      seq,
		open:     make(map[pairKey]*Position),
		accounts: make(map[identity.AccountID]*Account),
	}
}

// AddAccount registers an account with the portfolio.
func (p *Portfolio) AddAccount(a *Account) error {
	if a == nil {
		return exception.ErrNilInstance
	}
	if _, ok := p.accounts[a.ID]; ok {
		return errors.Wrapf(exception.ErrInvalidArgument, "account already exists: %s", a.ID)
	}
	p.accounts[a.ID] = a
	return nil
}

// Account returns a registered account.
func (p *Portfolio) Account(id identity.AccountID) (*Account, bool) {
	a, ok := p.accounts[id]
	return a, ok
}

// Position returns the open position for an account/instrument pair.
func (p *Portfolio) Position(account identity.AccountID, instrument identity.InstrumentID) (*Position, bool) {
	pos, ok := p.open[pairKey{account, instrument}]
	return pos, ok
}

// NetQty returns the signed open quantity for a pair, zero when flat.
func (p *Portfolio) NetQty(account identity.AccountID, instrument identity.InstrumentID) decimal.Decimal {
	if pos, ok := p.Position(account, instrument); ok {
		return pos.NetQty()
	}
	return decimal.Zero
}

// Exposure returns the absolute open notional for one account across
// all instruments, valued at average entry price.
func (p *Portfolio) Exposure(account identity.AccountID) decimal.Decimal {
	total := decimal.Zero
	for key, pos := range p.open {
		if key.account == account {
			total = total.Add(pos.Notional())
		}
	}
	return total
}

// ClosedCount returns the number of retained closed positions.
func (p *Portfolio) ClosedCount() int { return len(p.closed) }

// ApplyFill folds a fill into the owning position and account, and
// returns the resulting position events in causal order.
func (p *Portfolio) ApplyFill(f events.OrderFilled) []events.Event {
	key := pairKey{f.AccountID, f.InstrumentID}
	if acct, ok := p.accounts[f.AccountID]; ok {
		acct.applyFill(f.Side, f.LastQty, f.LastPx)
	}

	var out []events.Event
	pos, existed := p.open[key]
	if !existed {
		pos = p.openPosition(key, f)
	}

	residual := pos.applyFill(f.Side, f.LastQty, f.LastPx, f.TsEvent)
	switch {
	case !existed:
		out = append(out, events.PositionOpened{PositionEvent: p.positionEvent(events.TypePositionOpened, pos, f.TsEvent)})
	case pos.IsClosed():
		delete(p.open, key)
		p.closed = append(p.closed, pos)
		out = append(out, events.PositionClosed{PositionEvent: p.positionEvent(events.TypePositionClosed, pos, f.TsEvent)})
	default:
		out = append(out, events.PositionChanged{PositionEvent: p.positionEvent(events.TypePositionChanged, pos, f.TsEvent)})
	}

	// A flip closed the old leg; the excess opens a fresh one.
	if residual.IsPositive() {
		next := p.openPosition(key, f)
		next.applyFill(f.Side, residual, f.LastPx, f.TsEvent)
		out = append(out, events.PositionOpened{PositionEvent: p.positionEvent(events.TypePositionOpened, next, f.TsEvent)})
	}
	return out
}

func (p *Portfolio) openPosition(key pairKey, f events.OrderFilled) *Position {
	pos := &Position{
		ID:           p.posIDs.Next(),
		StrategyID:   f.StrategyID,
		AccountID:    f.AccountID,
		InstrumentID: f.InstrumentID,
		tsOpened:     f.TsEvent,
	}
	p.open[key] = pos
	return pos
}

func (p *Portfolio) positionEvent(t events.Type, pos *Position, tsEvent int64) events.PositionEvent {
	return events.PositionEvent{
		Header:       p.seq.NextHeader(t, tsEvent, tsEvent),
		PositionID:   pos.ID,
		StrategyID:   pos.StrategyID,
		AccountID:    pos.AccountID,
		InstrumentID: pos.InstrumentID,
		NetQty:       pos.NetQty(),
		AvgPx:        pos.AvgPx(),
		RealizedPnL:  pos.RealizedPnL(),
	}
}
