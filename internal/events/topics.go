package events

import "github.com/alexanu/nautilus-trader/internal/identity"

// Topic name builders. Handlers may subscribe with a trailing "*"
// wildcard, e.g. "data.quotes.*" or "events.orders.*".
const (
	TopicRisk   = "events.risk"
	TopicErrors = "events.errors"
)

// TopicQuotes is the quote tick topic for one symbol.
func TopicQuotes(symbol string) string { return "data.quotes." + symbol }

// TopicTrades is the trade tick topic for one symbol.
func TopicTrades(symbol string) string { return "data.trades." + symbol }

// TopicBars is the bar topic for one symbol.
func TopicBars(symbol string) string { return "data.bars." + symbol }

// TopicOrders is the order event topic for one strategy.
func TopicOrders(strategy identity.StrategyID) string {
	return "events.orders." + string(strategy)
}

// TopicPositions is the position event topic for one strategy.
func TopicPositions(strategy identity.StrategyID) string {
	return "events.positions." + string(strategy)
}
