package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/events"
)

func newPaperClient(t *testing.T) *PaperClient {
	t.Helper()
	c, err := NewPaperClient(clock.NewVirtual(time.Unix(0, 0)), simRegistry(t))
	require.NoError(t, err)
	return c
}

func TestPaperClientBuffersReportsUntilBound(t *testing.T) {
	pc := newPaperClient(t)
	pc.OnEvent(quote(99, 101, 5, 5))

	require.NoError(t, pc.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeMarket, 3, 0)))

	// Nothing is lost while no sink is bound; Bind flushes the backlog.
	sink := &capture{}
	pc.Bind(sink.sink)
	assert.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, sink.kinds())
}

func TestPaperClientFlushesAfterEachCall(t *testing.T) {
	pc := newPaperClient(t)
	sink := &capture{}
	pc.Bind(sink.sink)
	pc.OnEvent(quote(99, 101, 5, 5))

	require.NoError(t, pc.Submit(context.Background(), simOrder("O-1", events.SideBuy, events.OrderTypeLimit, 2, 98)))
	require.Equal(t, []events.ReportKind{events.ReportAccepted}, sink.kinds())
	assert.Equal(t, 1, pc.RestingCount())

	// A marketable quote through the bus handler fills the resting order.
	pc.OnEvent(quote(97, 98, 5, 5))
	assert.Equal(t, []events.ReportKind{events.ReportAccepted, events.ReportFill}, sink.kinds())

	require.NoError(t, pc.Cancel(context.Background(), events.CancelOrder{
		TraderID:      "T-1",
		StrategyID:    "S-1",
		InstrumentID:  "BTCUSDT.SIM",
		ClientOrderID: "O-1",
	}))
	// The order already filled, so the venue answers with a rejection.
	assert.Equal(t, events.ReportRejected, sink.kinds()[len(sink.kinds())-1])
}

func TestPaperClientIgnoresNonQuoteEvents(t *testing.T) {
	pc := newPaperClient(t)
	sink := &capture{}
	pc.Bind(sink.sink)

	pc.OnEvent(events.TradeTick{InstrumentID: "BTCUSDT.SIM"})
	assert.Empty(t, sink.reports)
}
