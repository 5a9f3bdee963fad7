package data

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

func testEngine(t *testing.T) (*Engine, *bus.MessageBus) {
	t.Helper()
	reg := identity.NewRegistry()
	require.NoError(t, reg.AddVenue("SIM"))
	require.NoError(t, reg.AddInstrument(identity.Instrument{
		ID:             identity.NewInstrumentID("BTCUSDT", "SIM"),
		Symbol:         "BTCUSDT",
		Venue:          "SIM",
		PricePrecision: 2,
		SizePrecision:  3,
	}))
	b := bus.New()
	return NewEngine(reg, b, events.NewSequencer()), b
}

func rawQuote(ts int64, bid, ask string) RawEvent {
	return RawEvent{
		Symbol:  "BTCUSDT",
		Kind:    RawQuote,
		TsEvent: ts,
		BidPx:   bid,
		AskPx:   ask,
		BidSz:   "1",
		AskSz:   "1",
	}
}

func TestProcessPublishesNormalizedQuote(t *testing.T) {
	e, b := testEngine(t)

	var got []events.QuoteTick
	_, err := b.Subscribe(events.TopicQuotes("BTCUSDT"), func(ev events.Event) {
		got = append(got, ev.(events.QuoteTick))
	})
	require.NoError(t, err)

	require.NoError(t, e.Process(rawQuote(100, "99.5", "100.5")))
	require.Len(t, got, 1)
	assert.True(t, got[0].BidPx.Equal(decimal.RequireFromString("99.5")))
	assert.True(t, got[0].AskPx.Equal(decimal.RequireFromString("100.5")))
	assert.Equal(t, int64(100), got[0].TsEvent)
}

func TestStaleTimestampDroppedAndCounted(t *testing.T) {
	e, _ := testEngine(t)
	require.NoError(t, e.Process(rawQuote(100, "99", "101")))

	// Equal to the last seen timestamp is stale, not just older.
	err := e.Process(rawQuote(100, "99", "101"))
	assert.True(t, errors.Is(err, exception.ErrDataStaleTimestamp))

	err = e.Process(rawQuote(50, "99", "101"))
	assert.True(t, errors.Is(err, exception.ErrDataStaleTimestamp))

	assert.Equal(t, uint64(2), e.Dropped("BTCUSDT.SIM"))
	assert.Equal(t, uint64(3), e.Received())

	ts, ok := e.LastTs("BTCUSDT.SIM")
	require.True(t, ok)
	assert.Equal(t, int64(100), ts)
}

func TestUnknownSymbolRejected(t *testing.T) {
	e, _ := testEngine(t)
	raw := rawQuote(100, "99", "101")
	raw.Symbol = "DOGEUSDT"

	err := e.Process(raw)
	assert.True(t, errors.Is(err, exception.ErrDataUnknownSymbol))
}

func TestMalformedPriceDroppedAndCounted(t *testing.T) {
	e, _ := testEngine(t)

	err := e.Process(rawQuote(100, "not-a-price", "101"))
	assert.True(t, errors.Is(err, exception.ErrDataInvalidPayload))
	assert.Equal(t, uint64(1), e.Dropped("BTCUSDT.SIM"))

	// A malformed event must not advance the stale watermark.
	require.NoError(t, e.Process(rawQuote(100, "99", "101")))
}

func TestQuantizationAppliesInstrumentPrecision(t *testing.T) {
	e, b := testEngine(t)

	var got events.QuoteTick
	_, err := b.Subscribe(events.TopicQuotes("BTCUSDT"), func(ev events.Event) {
		got = ev.(events.QuoteTick)
	})
	require.NoError(t, err)

	raw := rawQuote(100, "99.123456", "101.987654")
	raw.BidSz = "0.12345"
	require.NoError(t, e.Process(raw))

	assert.True(t, got.BidPx.Equal(decimal.RequireFromString("99.12")))
	assert.True(t, got.AskPx.Equal(decimal.RequireFromString("101.99")))
	assert.True(t, got.BidSz.Equal(decimal.RequireFromString("0.123")))
}

func TestLastPxTracksMidAndTrades(t *testing.T) {
	e, _ := testEngine(t)

	require.NoError(t, e.Process(rawQuote(100, "99", "101")))
	px, ok := e.LastPx("BTCUSDT.SIM")
	require.True(t, ok)
	assert.True(t, px.Equal(decimal.NewFromInt(100)))

	require.NoError(t, e.Process(RawEvent{
		Symbol:  "BTCUSDT",
		Kind:    RawTrade,
		TsEvent: 200,
		Px:      "102.5",
		Sz:      "3",
		Side:    "buy",
	}))
	px, _ = e.LastPx("BTCUSDT.SIM")
	assert.True(t, px.Equal(decimal.RequireFromString("102.5")))
}

func TestBarNormalization(t *testing.T) {
	e, b := testEngine(t)

	var got events.Bar
	_, err := b.Subscribe(events.TopicBars("BTCUSDT"), func(ev events.Event) {
		got = ev.(events.Bar)
	})
	require.NoError(t, err)

	require.NoError(t, e.Process(RawEvent{
		Symbol:  "BTCUSDT",
		Kind:    RawBar,
		TsEvent: 300,
		Open:    "100",
		High:    "110",
		Low:     "95",
		Close:   "105",
		Volume:  "12.5",
	}))
	assert.True(t, got.Close.Equal(decimal.NewFromInt(105)))
	assert.True(t, got.Volume.Equal(decimal.RequireFromString("12.5")))

	// Bars update the reference price from the close.
	px, _ := e.LastPx("BTCUSDT.SIM")
	assert.True(t, px.Equal(decimal.NewFromInt(105)))
}

func TestUnknownRawKindRejected(t *testing.T) {
	e, _ := testEngine(t)
	err := e.Process(RawEvent{Symbol: "BTCUSDT", Kind: RawUnknown, TsEvent: 100})
	assert.True(t, errors.Is(err, exception.ErrDataInvalidPayload))
}
