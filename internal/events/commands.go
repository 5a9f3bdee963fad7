package events

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// Commands express strategy intent. They are distinct from events:
// a command asks the kernel to act, an event records what happened.

// SubmitOrder asks the execution engine to submit a new order.
type SubmitOrder struct {
	TraderID      identity.TraderID      `json:"traderId"`
	StrategyID    identity.StrategyID    `json:"strategyId"`
	AccountID     identity.AccountID     `json:"accountId"`
	InstrumentID  identity.InstrumentID  `json:"instrumentId"`
	ClientOrderID identity.ClientOrderID `json:"clientOrderId"`
	Side          Side                   `json:"side"`
	OrderType     OrderType              `json:"orderType"`
	TimeInForce   TimeInForce            `json:"timeInForce"`
	Qty           decimal.Decimal        `json:"qty"`
	Price         decimal.Decimal        `json:"price"`
	TsInit        int64                  `json:"tsInit"`
}

// Validate checks the command shape before it reaches the risk engine.
func (c SubmitOrder) Validate() error {
	if c.ClientOrderID == "" {
		return errors.Wrap(exception.ErrValidation, "client order id is empty")
	}
	if c.StrategyID == "" {
		return errors.Wrap(exception.ErrValidation, "strategy id is empty")
	}
	if c.AccountID == "" {
		return errors.Wrap(exception.ErrValidation, "account id is empty")
	}
	if c.Side == SideUnknown {
		return errors.Wrap(exception.ErrValidation, "side is unknown")
	}
	if c.OrderType == OrderTypeUnknown {
		return errors.Wrap(exception.ErrValidation, "order type is unknown")
	}
	if !c.Qty.IsPositive() {
		return errors.Wrap(exception.ErrOrderInvalidQty, "submit order")
	}
	if c.OrderType != OrderTypeMarket && !c.Price.IsPositive() {
		return errors.Wrap(exception.ErrOrderInvalidPrice, "submit order")
	}
	return nil
}

// Notional returns the command's exposure value. Market orders use the
// provided reference price.
func (c SubmitOrder) Notional(refPx decimal.Decimal) decimal.Decimal {
	px := c.Price
	if c.OrderType == OrderTypeMarket {
		px = refPx
	}
	return px.Mul(c.Qty).Abs()
}

// CancelOrder asks the execution engine to cancel a working order.
type CancelOrder struct {
	TraderID      identity.TraderID      `json:"traderId"`
	StrategyID    identity.StrategyID    `json:"strategyId"`
	InstrumentID  identity.InstrumentID  `json:"instrumentId"`
	ClientOrderID identity.ClientOrderID `json:"clientOrderId"`
	TsInit        int64                  `json:"tsInit"`
}

// Validate checks the command shape.
func (c CancelOrder) Validate() error {
	if c.ClientOrderID == "" {
		return errors.Wrap(exception.ErrValidation, "client order id is empty")
	}
	return nil
}

// ModifyOrder asks the execution engine to amend price and/or quantity
// of a working order. Zero values leave the field unchanged.
type ModifyOrder struct {
	TraderID      identity.TraderID      `json:"traderId"`
	StrategyID    identity.StrategyID    `json:"strategyId"`
	InstrumentID  identity.InstrumentID  `json:"instrumentId"`
	ClientOrderID identity.ClientOrderID `json:"clientOrderId"`
	NewQty        decimal.Decimal        `json:"newQty"`
	NewPrice      decimal.Decimal        `json:"newPrice"`
	TsInit        int64                  `json:"tsInit"`
}

// Validate checks the command shape.
func (c ModifyOrder) Validate() error {
	if c.ClientOrderID == "" {
		return errors.Wrap(exception.ErrValidation, "client order id is empty")
	}
	if c.NewQty.IsZero() && c.NewPrice.IsZero() {
		return errors.Wrap(exception.ErrValidation, "modify changes nothing")
	}
	if c.NewQty.IsNegative() || c.NewPrice.IsNegative() {
		return errors.Wrap(exception.ErrValidation, "modify values must be positive")
	}
	return nil
}
