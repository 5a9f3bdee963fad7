package identity

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Identifier kinds are distinct Go types so two identifiers compare
// equal only when both kind and value match.
type (
	// TraderID identifies one trading node.
	TraderID string
	// StrategyID identifies a strategy instance.
	StrategyID string
	// AccountID identifies the unit of risk aggregation.
	AccountID string
	// InstrumentID identifies a tradable instrument as "SYMBOL.VENUE".
	InstrumentID string
	// ClientOrderID identifies an order minted by this node.
	ClientOrderID string
	// VenueOrderID identifies an order on the venue side.
	VenueOrderID string
	// PositionID identifies one open-to-closed position leg.
	PositionID string
)

// NewInstrumentID joins a symbol and venue into the canonical form.
func NewInstrumentID(symbol, venue string) InstrumentID {
	return InstrumentID(symbol + "." + venue)
}

// Symbol returns the symbol part of the instrument identifier.
func (id InstrumentID) Symbol() string {
	if i := strings.LastIndexByte(string(id), '.'); i >= 0 {
		return string(id)[:i]
	}
	return string(id)
}

// Venue returns the venue part of the instrument identifier.
func (id InstrumentID) Venue() string {
	if i := strings.LastIndexByte(string(id), '.'); i >= 0 {
		return string(id)[i+1:]
	}
	return ""
}

// OrderIDGenerator mints client order identifiers. IDs are sequential
// per trader so backtest runs produce identical identifier streams.
type OrderIDGenerator struct {
	trader TraderID
	count  uint64
}

// NewOrderIDGenerator creates a generator scoped to one trader.
func NewOrderIDGenerator(trader TraderID) *OrderIDGenerator {
	return &OrderIDGenerator{trader: trader}
}

// Next returns a new never-reused client order identifier.
func (g *OrderIDGenerator) Next() ClientOrderID {
	n := atomic.AddUint64(&g.count, 1)
	return ClientOrderID(fmt.Sprintf("O-%s-%d", g.trader, n))
}

// Reset rewinds the sequence. Only meaningful between backtest runs.
func (g *OrderIDGenerator) Reset() {
	atomic.StoreUint64(&g.count, 0)
}

// PositionIDGenerator mints position identifiers. A new identifier is
// issued every time a flat instrument/account pair opens again.
type PositionIDGenerator struct {
	trader TraderID
	count  uint64
}

// NewPositionIDGenerator creates a generator scoped to one trader.
func NewPositionIDGenerator(trader TraderID) *PositionIDGenerator {
	return &PositionIDGenerator{trader: trader}
}

// Next returns a new position identifier.
func (g *PositionIDGenerator) Next() PositionID {
	n := atomic.AddUint64(&g.count, 1)
	return PositionID(fmt.Sprintf("P-%s-%d", g.trader, n))
}

// NewSessionID returns a random per-process session identifier. It is
// never written to the event stream, so live randomness does not break
// backtest determinism.
func NewSessionID() string {
	return uuid.NewString()
}
