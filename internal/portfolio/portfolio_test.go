package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
)

func newTestPortfolio(t *testing.T) *Portfolio {
	t.Helper()
	p := New("T-1", events.NewSequencer())
	require.NoError(t, p.AddAccount(NewAccount("A-1", "USD", decimal.NewFromInt(100000))))
	return p
}

func fill(side events.Side, qty, px int64, ts int64) events.OrderFilled {
	return events.OrderFilled{
		OrderEvent: events.OrderEvent{
			Header:       events.Header{TsEvent: ts, TsInit: ts},
			StrategyID:   "S-1",
			AccountID:    "A-1",
			InstrumentID: "BTCUSDT.SIM",
		},
		Side:    side,
		LastQty: decimal.NewFromInt(qty),
		LastPx:  decimal.NewFromInt(px),
	}
}

func TestFirstFillOpensPosition(t *testing.T) {
	p := newTestPortfolio(t)

	out := p.ApplyFill(fill(events.SideBuy, 10, 100, 1))
	require.Len(t, out, 1)
	opened, ok := out[0].(events.PositionOpened)
	require.True(t, ok)
	assert.Equal(t, identity.PositionID("P-T-1-1"), opened.PositionID)
	assert.True(t, opened.NetQty.Equal(decimal.NewFromInt(10)))

	assert.True(t, p.NetQty("A-1", "BTCUSDT.SIM").Equal(decimal.NewFromInt(10)))
}

func TestWeightedAverageEntryPrice(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 60, 10, 1))
	p.ApplyFill(fill(events.SideBuy, 40, 11, 2))

	pos, ok := p.Position("A-1", "BTCUSDT.SIM")
	require.True(t, ok)
	// (60*10 + 40*11) / 100 = 10.4
	assert.True(t, pos.AvgPx().Equal(decimal.RequireFromString("10.4")))
	assert.True(t, pos.NetQty().Equal(decimal.NewFromInt(100)))
}

func TestReductionRealizesPnL(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 100, 10, 1))
	out := p.ApplyFill(fill(events.SideSell, 40, 12, 2))

	require.Len(t, out, 1)
	changed, ok := out[0].(events.PositionChanged)
	require.True(t, ok)
	// (12-10) * 40 = 80.
	assert.True(t, changed.RealizedPnL.Equal(decimal.NewFromInt(80)))
	assert.True(t, changed.NetQty.Equal(decimal.NewFromInt(60)))
}

func TestCloseToFlatEmitsPositionClosed(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 50, 10, 1))
	out := p.ApplyFill(fill(events.SideSell, 50, 11, 2))

	require.Len(t, out, 1)
	closed, ok := out[0].(events.PositionClosed)
	require.True(t, ok)
	assert.True(t, closed.NetQty.IsZero())
	assert.True(t, closed.RealizedPnL.Equal(decimal.NewFromInt(50)))

	_, open := p.Position("A-1", "BTCUSDT.SIM")
	assert.False(t, open)
	assert.Equal(t, 1, p.ClosedCount())
}

func TestFlipClosesLegAndMintsNewPosition(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 30, 10, 1))
	out := p.ApplyFill(fill(events.SideSell, 50, 11, 2))

	require.Len(t, out, 2)
	closed, ok := out[0].(events.PositionClosed)
	require.True(t, ok)
	assert.Equal(t, identity.PositionID("P-T-1-1"), closed.PositionID)

	opened, ok := out[1].(events.PositionOpened)
	require.True(t, ok)
	assert.Equal(t, identity.PositionID("P-T-1-2"), opened.PositionID)
	assert.True(t, opened.NetQty.Equal(decimal.NewFromInt(-20)))

	pos, _ := p.Position("A-1", "BTCUSDT.SIM")
	assert.True(t, pos.IsShort())
	assert.True(t, pos.AvgPx().Equal(decimal.NewFromInt(11)))
}

func TestReopenAfterFlatMintsFreshID(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 10, 10, 1))
	p.ApplyFill(fill(events.SideSell, 10, 10, 2))
	out := p.ApplyFill(fill(events.SideBuy, 5, 10, 3))

	opened, ok := out[0].(events.PositionOpened)
	require.True(t, ok)
	assert.Equal(t, identity.PositionID("P-T-1-2"), opened.PositionID)
}

func TestAccountBalanceMovesWithFills(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 10, 100, 1))

	acct, ok := p.Account("A-1")
	require.True(t, ok)
	assert.True(t, acct.Balance().Equal(decimal.NewFromInt(99000)))

	p.ApplyFill(fill(events.SideSell, 10, 110, 2))
	assert.True(t, acct.Balance().Equal(decimal.NewFromInt(100100)))
}

func TestExposureSumsOpenNotional(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 10, 100, 1))

	other := fill(events.SideSell, 2, 50, 2)
	other.InstrumentID = "ETHUSDT.SIM"
	p.ApplyFill(other)

	// 10*100 + 2*50 = 1100, shorts count in absolute terms.
	assert.True(t, p.Exposure("A-1").Equal(decimal.NewFromInt(1100)))
}

func TestUnrealizedPnLMarksOpenQty(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 10, 100, 1))
	pos, _ := p.Position("A-1", "BTCUSDT.SIM")

	assert.True(t, pos.UnrealizedPnL(decimal.NewFromInt(105)).Equal(decimal.NewFromInt(50)))
	assert.True(t, pos.UnrealizedPnL(decimal.NewFromInt(95)).Equal(decimal.NewFromInt(-50)))
}

func TestSnapshotRoundTripAndCompare(t *testing.T) {
	p := newTestPortfolio(t)
	p.ApplyFill(fill(events.SideBuy, 10, 100, 1))

	snap := p.Snapshot(2)
	require.Len(t, snap.Positions, 1)
	require.Len(t, snap.Accounts, 1)

	path := t.TempDir() + "/positions.json"
	require.NoError(t, WriteSnapshot(path, snap))
	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.NoError(t, CompareSnapshots(snap, loaded))

	// A diverging book fails the comparison.
	p.ApplyFill(fill(events.SideBuy, 1, 100, 3))
	assert.Error(t, CompareSnapshots(snap, p.Snapshot(4)))
}
