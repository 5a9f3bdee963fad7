package events

import (
	"github.com/shopspring/decimal"

	"github.com/alexanu/nautilus-trader/internal/identity"
)

// OrderEvent is the common identity carried by every order lifecycle
// event.
type OrderEvent struct {
	Header
	TraderID      identity.TraderID      `json:"traderId"`
	StrategyID    identity.StrategyID    `json:"strategyId"`
	AccountID     identity.AccountID     `json:"accountId"`
	InstrumentID  identity.InstrumentID  `json:"instrumentId"`
	ClientOrderID identity.ClientOrderID `json:"clientOrderId"`
	VenueOrderID  identity.VenueOrderID  `json:"venueOrderId,omitempty"`
}

// EventTopic routes order events by strategy.
func (e OrderEvent) EventTopic() string { return TopicOrders(e.StrategyID) }

// OrderSubmitted is published when a cleared order leaves for the venue.
type OrderSubmitted struct {
	OrderEvent
}

// OrderAccepted is published when the venue acknowledges an order.
type OrderAccepted struct {
	OrderEvent
}

// OrderRejected is published when the venue or the risk engine rejects
// an order. Reason is free text; risk denials also publish RiskDenied.
type OrderRejected struct {
	OrderEvent
	Reason string `json:"reason"`
}

// OrderFilled is published per fill. LeavesQty zero means the order is
// fully filled.
type OrderFilled struct {
	OrderEvent
	Side      Side            `json:"side"`
	LastQty   decimal.Decimal `json:"lastQty"`
	LastPx    decimal.Decimal `json:"lastPx"`
	LeavesQty decimal.Decimal `json:"leavesQty"`
	CumQty    decimal.Decimal `json:"cumQty"`
}

// OrderCanceled is published when a cancel is confirmed by the venue.
type OrderCanceled struct {
	OrderEvent
}

// OrderExpired is published when an order expires by time in force.
type OrderExpired struct {
	OrderEvent
}

// OrderPendingCancel is published when a cancel command is in flight.
type OrderPendingCancel struct {
	OrderEvent
}

// RiskDenied is published when the risk engine denies a command before
// it reaches any collaborator.
type RiskDenied struct {
	OrderEvent
	Reason string `json:"reason"`
}

// EventTopic routes risk denials to the shared risk topic.
func (e RiskDenied) EventTopic() string { return TopicRisk }
