package events

import (
	"github.com/shopspring/decimal"

	"github.com/alexanu/nautilus-trader/internal/identity"
)

// PositionEvent is the common identity carried by position lifecycle
// events.
type PositionEvent struct {
	Header
	PositionID   identity.PositionID   `json:"positionId"`
	StrategyID   identity.StrategyID   `json:"strategyId"`
	AccountID    identity.AccountID    `json:"accountId"`
	InstrumentID identity.InstrumentID `json:"instrumentId"`
	NetQty       decimal.Decimal       `json:"netQty"`
	AvgPx        decimal.Decimal       `json:"avgPx"`
	RealizedPnL  decimal.Decimal       `json:"realizedPnl"`
}

// EventTopic routes position events by strategy.
func (e PositionEvent) EventTopic() string { return TopicPositions(e.StrategyID) }

// PositionOpened is published on the first fill of a flat pair.
type PositionOpened struct {
	PositionEvent
}

// PositionChanged is published on every fill that leaves the position
// open.
type PositionChanged struct {
	PositionEvent
}

// PositionClosed is published when net quantity returns to zero.
type PositionClosed struct {
	PositionEvent
}
