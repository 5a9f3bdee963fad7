package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
)

// Position aggregates the fills of one instrument under one account.
// Net quantity is signed: positive long, negative short. A position
// never carries mixed-sign exposure; flips are handled by the Portfolio
// closing the leg and opening a new one.
type Position struct {
	ID           identity.PositionID
	StrategyID   identity.StrategyID
	AccountID    identity.AccountID
	InstrumentID identity.InstrumentID

	netQty      decimal.Decimal
	avgPx       decimal.Decimal
	realizedPnL decimal.Decimal
	tsOpened    int64
	tsClosed    int64
	closed      bool
}

// NetQty returns the signed net quantity.
func (p *Position) NetQty() decimal.Decimal { return p.netQty }

// AvgPx returns the quantity-weighted average entry price.
func (p *Position) AvgPx() decimal.Decimal { return p.avgPx }

// RealizedPnL returns the realized profit and loss of this leg.
func (p *Position) RealizedPnL() decimal.Decimal { return p.realizedPnL }

// IsClosed reports whether the position returned to flat.
func (p *Position) IsClosed() bool { return p.closed }

// IsLong reports a positive net quantity.
func (p *Position) IsLong() bool { return p.netQty.IsPositive() }

// IsShort reports a negative net quantity.
func (p *Position) IsShort() bool { return p.netQty.IsNegative() }

// UnrealizedPnL marks the open quantity against the given price.
func (p *Position) UnrealizedPnL(markPx decimal.Decimal) decimal.Decimal {
	if p.netQty.IsZero() {
		return decimal.Zero
	}
	return markPx.Sub(p.avgPx).Mul(p.netQty)
}

// Notional returns the absolute exposure at the average entry price.
func (p *Position) Notional() decimal.Decimal {
	return p.avgPx.Mul(p.netQty).Abs()
}

// applyFill folds one fill into the position. qty and px are positive;
// side gives direction. The returned residual is non-zero only when the
// fill flips the position: the position is then closed and the caller
// opens a new leg with the residual quantity.
func (p *Position) applyFill(side events.Side, qty, px decimal.Decimal, tsEvent int64) (residual decimal.Decimal) {
	signed := qty
	if side == events.SideSell {
		signed = qty.Neg()
	}

	// Same direction (or opening): weighted-average entry, atomically
	// recomputed per fill.
	if p.netQty.IsZero() || p.netQty.Sign() == signed.Sign() {
		abs := p.netQty.Abs()
		total := abs.Add(qty)
		p.avgPx = p.avgPx.Mul(abs).Add(px.Mul(qty)).Div(total)
		p.netQty = p.netQty.Add(signed)
		return decimal.Zero
	}

	// Opposite direction: realize PnL on the reduced quantity.
	abs := p.netQty.Abs()
	reduce := decimal.Min(qty, abs)
	direction := decimal.NewFromInt(int64(p.netQty.Sign()))
	p.realizedPnL = p.realizedPnL.Add(px.Sub(p.avgPx).Mul(reduce).Mul(direction))
	p.netQty = p.netQty.Add(signed)

	if p.netQty.Sign() == 0 || p.netQty.Sign() != int(direction.IntPart()) {
		// Reduced to flat, or flipped through flat. Either way this
		// leg is done; any excess becomes a new position.
		residual = qty.Sub(reduce)
		p.netQty = decimal.Zero
		p.closed = true
		p.tsClosed = tsEvent
	}
	return residual
}
