package sim

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/data"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
)

func simRegistry(t *testing.T) *identity.Registry {
	t.Helper()
	reg := identity.NewRegistry()
	require.NoError(t, reg.AddVenue("SIM"))
	require.NoError(t, reg.AddInstrument(identity.Instrument{
		ID:     identity.NewInstrumentID("BTCUSDT", "SIM"),
		Symbol: "BTCUSDT",
		Venue:  "SIM",
	}))
	return reg
}

type capture struct {
	reports []events.ExecutionReport
}

func (c *capture) sink(r events.ExecutionReport) { c.reports = append(c.reports, r) }

func (c *capture) kinds() []events.ReportKind {
	out := make([]events.ReportKind, 0, len(c.reports))
	for _, r := range c.reports {
		out = append(out, r.Kind)
	}
	return out
}

func newExchange(t *testing.T) (*Exchange, *capture) {
	t.Helper()
	c := &capture{}
	x, err := NewExchange(clock.NewVirtual(time.Unix(0, 0)), simRegistry(t), c.sink)
	require.NoError(t, err)
	return x, c
}

func quote(bid, ask, bidSz, askSz int64) events.QuoteTick {
	return events.QuoteTick{
		InstrumentID: "BTCUSDT.SIM",
		BidPx:        decimal.NewFromInt(bid),
		AskPx:        decimal.NewFromInt(ask),
		BidSz:        decimal.NewFromInt(bidSz),
		AskSz:        decimal.NewFromInt(askSz),
	}
}

func simOrder(coid string, side events.Side, typ events.OrderType, qty, px int64) events.SubmitOrder {
	return events.SubmitOrder{
		TraderID:      "T-1",
		StrategyID:    "S-1",
		AccountID:     "A-1",
		InstrumentID:  "BTCUSDT.SIM",
		ClientOrderID: identity.ClientOrderID(coid),
		Side:          side,
		OrderType:     typ,
		TimeInForce:   events.TimeInForceGTC,
		Qty:           decimal.NewFromInt(qty),
		Price:         decimal.NewFromInt(px),
	}
}

func TestMarketOrderSweepsTopOfBook(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 101, 5, 5))

	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeMarket, 10, 0)))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, c.kinds())

	fill := c.reports[1]
	assert.True(t, fill.LastQty.Equal(decimal.NewFromInt(10)))
	assert.True(t, fill.LastPx.Equal(decimal.NewFromInt(101)))
	assert.Equal(t, identity.VenueOrderID("SIM-1"), fill.VenueOrderID)
	assert.Equal(t, 0, x.RestingCount())
}

func TestMarketOrderWithoutLiquidityCancels(t *testing.T) {
	x, c := newExchange(t)

	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeMarket, 10, 0)))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportCanceled}, c.kinds())
	assert.Equal(t, "no liquidity", c.reports[1].Reason)
}

func TestLimitOrderRestsUntilMarketable(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 101, 5, 5))

	// Buy limit below the ask rests.
	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 100)))
	require.Equal(t, []events.ReportKind{events.ReportAccepted}, c.kinds())
	assert.Equal(t, 1, x.RestingCount())

	// The ask coming down to the limit price triggers the fill.
	x.OnQuote(quote(98, 100, 5, 20))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, c.kinds())
	assert.True(t, c.reports[1].LastPx.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0, x.RestingCount())
}

func TestLimitOrderPartialFillCappedAtDisplayedSize(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 100, 5, 4))

	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 100)))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, c.kinds())
	assert.True(t, c.reports[1].LastQty.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 1, x.RestingCount())

	// The rest fills on the next marketable quote.
	x.OnQuote(quote(99, 100, 5, 50))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill, events.ReportFill}, c.kinds())
	assert.True(t, c.reports[2].LastQty.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, 0, x.RestingCount())
}

func TestIOCCancelsRemainder(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 100, 5, 4))

	cmd := simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 100)
	cmd.TimeInForce = events.TimeInForceIOC
	require.NoError(t, x.Submit(context.Background(), cmd))

	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill, events.ReportCanceled}, c.kinds())
	assert.Equal(t, 0, x.RestingCount())
}

func TestFOKIsAllOrNothing(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 100, 5, 4))

	cmd := simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 100)
	cmd.TimeInForce = events.TimeInForceFOK
	require.NoError(t, x.Submit(context.Background(), cmd))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportCanceled}, c.kinds())

	// With full size displayed the same order fills whole.
	c.reports = nil
	x.OnQuote(quote(99, 100, 5, 10))
	cmd.ClientOrderID = "O-2"
	require.NoError(t, x.Submit(context.Background(), cmd))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, c.kinds())
	assert.True(t, c.reports[1].LastQty.Equal(decimal.NewFromInt(10)))
}

func TestStopOrdersRejected(t *testing.T) {
	x, c := newExchange(t)
	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeStop, 10, 100)))
	require.Equal(t, []events.ReportKind{events.ReportRejected}, c.kinds())
}

func TestUnknownInstrumentRejected(t *testing.T) {
	x, c := newExchange(t)
	cmd := simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 100)
	cmd.InstrumentID = "DOGEUSDT.SIM"
	require.NoError(t, x.Submit(context.Background(), cmd))
	require.Equal(t, []events.ReportKind{events.ReportRejected}, c.kinds())
	assert.Equal(t, "unknown instrument", c.reports[0].Reason)
}

func TestCancelRestingOrder(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 101, 5, 5))
	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 95)))

	require.NoError(t, x.Cancel(context.Background(), events.CancelOrder{ClientOrderID: "O-1", InstrumentID: "BTCUSDT.SIM"}))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportCanceled}, c.kinds())
	assert.Equal(t, 0, x.RestingCount())

	// A second cancel finds nothing working.
	require.NoError(t, x.Cancel(context.Background(), events.CancelOrder{ClientOrderID: "O-1", InstrumentID: "BTCUSDT.SIM"}))
	assert.Equal(t, events.ReportRejected, c.reports[len(c.reports)-1].Kind)
}

func TestModifyRepricesAndRematches(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 101, 5, 20))
	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 95)))
	require.Equal(t, 1, x.RestingCount())

	// Moving the limit up to the ask makes it marketable immediately.
	require.NoError(t, x.Modify(context.Background(), events.ModifyOrder{
		ClientOrderID: "O-1",
		InstrumentID:  "BTCUSDT.SIM",
		NewPrice:      decimal.NewFromInt(101),
	}))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, c.kinds())
	assert.Equal(t, 0, x.RestingCount())
}

func TestModifyBelowFilledQtyCancels(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 100, 5, 4))
	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 10, 100)))
	require.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, c.kinds())

	require.NoError(t, x.Modify(context.Background(), events.ModifyOrder{
		ClientOrderID: "O-1",
		InstrumentID:  "BTCUSDT.SIM",
		NewQty:        decimal.NewFromInt(3),
	}))
	assert.Equal(t, events.ReportCanceled, c.reports[len(c.reports)-1].Kind)
	assert.Equal(t, 0, x.RestingCount())
}

func TestRestingOrdersMatchInSubmissionOrder(t *testing.T) {
	x, c := newExchange(t)
	x.OnQuote(quote(99, 101, 5, 5))
	require.NoError(t, x.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 3, 100)))
	require.NoError(t, x.Submit(context.Background(), simOrder("O-2", events.SideBuy, events.OrderTypeLimit, 3, 100)))

	c.reports = nil
	x.OnQuote(quote(98, 100, 5, 50))
	require.Len(t, c.reports, 2)
	assert.Equal(t, identity.ClientOrderID("O-1"), c.reports[0].ClientOrderID)
	assert.Equal(t, identity.ClientOrderID("O-2"), c.reports[1].ClientOrderID)
}

func TestGeneratorIsDeterministic(t *testing.T) {
	reg := simRegistry(t)
	cfg := GeneratorConfig{BasePrice: 100, Amplitude: 3, Spread: 1, Size: 5, Interval: time.Second}

	run := func() []data.RawEvent {
		g, err := NewGenerator(reg, cfg)
		require.NoError(t, err)
		var out []data.RawEvent
		require.NoError(t, g.Replay(context.Background(), 0, 20*time.Second.Nanoseconds(), func(raw data.RawEvent) error {
			out = append(out, raw)
			return nil
		}))
		return out
	}

	first, second := run(), run()
	require.Equal(t, len(first), len(second))
	assert.Equal(t, first, second)
}

func TestGeneratorWalksWithinAmplitude(t *testing.T) {
	reg := simRegistry(t)
	g, err := NewGenerator(reg, GeneratorConfig{BasePrice: 100, Amplitude: 2, Spread: 0, Size: 1, Interval: time.Second})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		raw := g.Next(int64(i))
		mid, err := strconv.ParseInt(raw.BidPx, 10, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, mid, int64(98))
		assert.LessOrEqual(t, mid, int64(102))
	}
}

func TestReportBufferDrainsInFIFOOrder(t *testing.T) {
	b := NewReportBuffer()
	b.Push(events.ExecutionReport{ClientOrderID: "O-1"})
	b.Push(events.ExecutionReport{ClientOrderID: "O-2"})
	require.Equal(t, 2, b.Len())

	var got []identity.ClientOrderID
	n := b.Drain(func(r events.ExecutionReport) {
		got = append(got, r.ClientOrderID)
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, []identity.ClientOrderID{"O-1", "O-2"}, got)
	assert.Equal(t, 0, b.Len())
}

func TestReportBufferPicksUpReportsPushedWhileDraining(t *testing.T) {
	b := NewReportBuffer()
	b.Push(events.ExecutionReport{ClientOrderID: "O-1"})

	var got []identity.ClientOrderID
	n := b.Drain(func(r events.ExecutionReport) {
		got = append(got, r.ClientOrderID)
		if r.ClientOrderID == "O-1" {
			b.Push(events.ExecutionReport{ClientOrderID: "O-2"})
		}
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, []identity.ClientOrderID{"O-1", "O-2"}, got)
}
