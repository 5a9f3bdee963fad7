package data

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// RawKind describes the meaning of a raw market data payload.
type RawKind uint16

const (
	RawUnknown RawKind = iota
	RawQuote
	RawTrade
	RawBar
)

// RawEvent is the heterogeneous shape delivered by data-client
// collaborators. Prices and sizes arrive as venue strings and are
// parsed and quantized during normalization.
type RawEvent struct {
	Symbol  string  `json:"symbol"`
	Kind    RawKind `json:"kind"`
	TsEvent int64   `json:"tsEvent"`

	BidPx string `json:"bidPx,omitempty"`
	AskPx string `json:"askPx,omitempty"`
	BidSz string `json:"bidSz,omitempty"`
	AskSz string `json:"askSz,omitempty"`

	Px   string `json:"px,omitempty"`
	Sz   string `json:"sz,omitempty"`
	Side string `json:"side,omitempty"`

	Open   string `json:"open,omitempty"`
	High   string `json:"high,omitempty"`
	Low    string `json:"low,omitempty"`
	Close  string `json:"close,omitempty"`
	Volume string `json:"volume,omitempty"`
}

// StreamClient is a live data-client collaborator. Stream blocks until
// the context is done, pushing raw events through emit as they arrive.
type StreamClient interface {
	Stream(ctx context.Context, emit func(RawEvent)) error
}

// ReplayClient is a historical data-client collaborator. Replay yields
// raw events in nondecreasing timestamp order within [from, to].
type ReplayClient interface {
	Replay(ctx context.Context, from, to int64, emit func(RawEvent) error) error
}

// Engine normalizes raw market data into canonical ticks and bars and
// republishes them on the bus. Downstream consumers may assume
// per-instrument timestamp monotonicity: anything not newer than the
// last seen timestamp for its instrument is dropped and counted.
type Engine struct {
	reg *identity.Registry
	bus *bus.MessageBus
	seq *events.Sequencer

	lastTs   map[identity.InstrumentID]int64
	lastPx   map[identity.InstrumentID]decimal.Decimal
	dropped  map[identity.InstrumentID]uint64
	received uint64
}

// NewEngine creates a data engine bound to the registry and bus.
func NewEngine(reg *identity.Registry, b *bus.MessageBus, seq *events.Sequencer) *Engine {
	return &Engine{
		reg:     reg,
		bus:     b,
		seq:     seq,
		lastTs:  make(map[identity.InstrumentID]int64),
		lastPx:  make(map[identity.InstrumentID]decimal.Decimal),
		dropped: make(map[identity.InstrumentID]uint64),
	}
}

// Process normalizes one raw event and publishes the canonical form.
// Stale and malformed events are dropped, counted, and reported via the
// returned error; they are never forwarded downstream.
func (e *Engine) Process(raw RawEvent) error {
	e.received++
	inst, ok := e.reg.InstrumentBySymbol(raw.Symbol)
	if !ok {
		return errors.Wrapf(exception.ErrDataUnknownSymbol, "symbol: %s", raw.Symbol)
	}
	if last, ok := e.lastTs[inst.ID]; ok && raw.TsEvent <= last {
		e.dropped[inst.ID]++
		logs.Warnf("drop stale market data, instrument: %s, ts: %d, last: %d", inst.ID, raw.TsEvent, last)
		return errors.Wrapf(exception.ErrDataStaleTimestamp, "instrument: %s", inst.ID)
	}

	ev, lastPx, err := e.normalize(raw, inst)
	if err != nil {
		e.dropped[inst.ID]++
		return err
	}

	e.lastTs[inst.ID] = raw.TsEvent
	if !lastPx.IsZero() {
		e.lastPx[inst.ID] = lastPx
	}
	e.bus.Publish(ev.EventTopic(), ev)
	return nil
}

func (e *Engine) normalize(raw RawEvent, inst identity.Instrument) (events.Event, decimal.Decimal, error) {
	switch raw.Kind {
	case RawQuote:
		bidPx, err := parsePx(raw.BidPx, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		askPx, err := parsePx(raw.AskPx, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		bidSz, err := parseSz(raw.BidSz, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		askSz, err := parseSz(raw.AskSz, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		ev := events.QuoteTick{
			Header:       e.seq.NextHeader(events.TypeQuoteTick, raw.TsEvent, raw.TsEvent),
			InstrumentID: inst.ID,
			BidPx:        bidPx,
			AskPx:        askPx,
			BidSz:        bidSz,
			AskSz:        askSz,
		}
		return ev, ev.Mid(), nil

	case RawTrade:
		px, err := parsePx(raw.Px, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		sz, err := parseSz(raw.Sz, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		ev := events.TradeTick{
			Header:        e.seq.NextHeader(events.TypeTradeTick, raw.TsEvent, raw.TsEvent),
			InstrumentID:  inst.ID,
			Px:            px,
			Sz:            sz,
			AggressorSide: parseSide(raw.Side),
		}
		return ev, px, nil

	case RawBar:
		open, err := parsePx(raw.Open, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		high, err := parsePx(raw.High, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		low, err := parsePx(raw.Low, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		closePx, err := parsePx(raw.Close, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		volume, err := parseSz(raw.Volume, inst)
		if err != nil {
			return nil, decimal.Zero, err
		}
		ev := events.Bar{
			Header:       e.seq.NextHeader(events.TypeBar, raw.TsEvent, raw.TsEvent),
			InstrumentID: inst.ID,
			Open:         open,
			High:         high,
			Low:          low,
			Close:        closePx,
			Volume:       volume,
		}
		return ev, closePx, nil

	default:
		return nil, decimal.Zero, errors.Wrapf(exception.ErrDataInvalidPayload, "kind: %d", raw.Kind)
	}
}

// LastPx returns the most recent traded or mid price per instrument.
// The execution and risk engines use it as the market-order reference.
func (e *Engine) LastPx(id identity.InstrumentID) (decimal.Decimal, bool) {
	px, ok := e.lastPx[id]
	return px, ok
}

// LastTs returns the last accepted event timestamp per instrument.
func (e *Engine) LastTs(id identity.InstrumentID) (int64, bool) {
	ts, ok := e.lastTs[id]
	return ts, ok
}

// Dropped returns the stale/malformed drop count per instrument.
func (e *Engine) Dropped(id identity.InstrumentID) uint64 {
	return e.dropped[id]
}

// Received returns the total number of raw events seen.
func (e *Engine) Received() uint64 { return e.received }

func parsePx(s string, inst identity.Instrument) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.Wrap(exception.ErrDataInvalidPayload, "empty price")
	}
	px, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(exception.ErrDataInvalidPayload, "price: %s", s)
	}
	return inst.QuantizePrice(px), nil
}

func parseSz(s string, inst identity.Instrument) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.Wrap(exception.ErrDataInvalidPayload, "empty size")
	}
	sz, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(exception.ErrDataInvalidPayload, "size: %s", s)
	}
	return inst.QuantizeSize(sz), nil
}

func parseSide(s string) events.Side {
	switch s {
	case "buy", "BUY", "b":
		return events.SideBuy
	case "sell", "SELL", "s":
		return events.SideSell
	default:
		return events.SideUnknown
	}
}
