package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
)

// Account holds a cash balance and is the unit of risk aggregation.
// Only the portfolio mutates it, and only in response to fills.
type Account struct {
	ID       identity.AccountID
	Currency string

	balance decimal.Decimal
}

// NewAccount creates an account with a starting balance.
func NewAccount(id identity.AccountID, currency string, balance decimal.Decimal) *Account {
	return &Account{ID: id, Currency: currency, balance: balance}
}

// Balance returns the current cash balance.
func (a *Account) Balance() decimal.Decimal { return a.balance }

// applyFill adjusts cash for one fill: buys consume cash, sells free it.
func (a *Account) applyFill(side events.Side, qty, px decimal.Decimal) {
	notional := qty.Mul(px)
	if side == events.SideBuy {
		a.balance = a.balance.Sub(notional)
	} else {
		a.balance = a.balance.Add(notional)
	}
}
