package events

import (
	"github.com/shopspring/decimal"

	"github.com/alexanu/nautilus-trader/internal/identity"
)

// QuoteTick is a normalized top-of-book update.
type QuoteTick struct {
	Header
	InstrumentID identity.InstrumentID `json:"instrumentId"`
	BidPx        decimal.Decimal       `json:"bidPx"`
	AskPx        decimal.Decimal       `json:"askPx"`
	BidSz        decimal.Decimal       `json:"bidSz"`
	AskSz        decimal.Decimal       `json:"askSz"`
}

// EventTopic routes quote ticks by symbol.
func (e QuoteTick) EventTopic() string { return TopicQuotes(e.InstrumentID.Symbol()) }

// Mid returns the midpoint price.
func (e QuoteTick) Mid() decimal.Decimal {
	return e.BidPx.Add(e.AskPx).Div(decimal.NewFromInt(2))
}

// TradeTick is a normalized last-trade print.
type TradeTick struct {
	Header
	InstrumentID  identity.InstrumentID `json:"instrumentId"`
	Px            decimal.Decimal       `json:"px"`
	Sz            decimal.Decimal       `json:"sz"`
	AggressorSide Side                  `json:"aggressorSide"`
}

// EventTopic routes trade ticks by symbol.
func (e TradeTick) EventTopic() string { return TopicTrades(e.InstrumentID.Symbol()) }

// Bar is a normalized OHLCV aggregate.
type Bar struct {
	Header
	InstrumentID identity.InstrumentID `json:"instrumentId"`
	Open         decimal.Decimal       `json:"open"`
	High         decimal.Decimal       `json:"high"`
	Low          decimal.Decimal       `json:"low"`
	Close        decimal.Decimal       `json:"close"`
	Volume       decimal.Decimal       `json:"volume"`
}

// EventTopic routes bars by symbol.
func (e Bar) EventTopic() string { return TopicBars(e.InstrumentID.Symbol()) }
