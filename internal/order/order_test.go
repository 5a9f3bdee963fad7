package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

func newTestOrder(qty int64) *Order {
	return New(events.SubmitOrder{
		TraderID:      "T-1",
		StrategyID:    "S-1",
		AccountID:     "A-1",
		InstrumentID:  "BTCUSDT.SIM",
		ClientOrderID: "O-T-1-1",
		Side:          events.SideBuy,
		OrderType:     events.OrderTypeLimit,
		TimeInForce:   events.TimeInForceGTC,
		Qty:           decimal.NewFromInt(qty),
		Price:         decimal.NewFromInt(10),
	})
}

func TestLifecycleHappyPath(t *testing.T) {
	o := newTestOrder(100)
	require.Equal(t, StatusInitialized, o.Status())

	require.NoError(t, o.Apply(KindSubmitted, 1))
	require.Equal(t, StatusSubmitted, o.Status())
	require.True(t, o.IsOpen())

	require.NoError(t, o.Apply(KindAccepted, 2))
	require.Equal(t, StatusAccepted, o.Status())

	require.NoError(t, o.ApplyFill(decimal.NewFromInt(100), decimal.NewFromInt(10), 3))
	require.Equal(t, StatusFilled, o.Status())
	require.True(t, o.IsTerminal())
	require.False(t, o.IsOpen())
}

func TestPartialFillsSumToFilledExactlyOnce(t *testing.T) {
	o := newTestOrder(100)
	require.NoError(t, o.Apply(KindSubmitted, 1))
	require.NoError(t, o.Apply(KindAccepted, 2))

	require.NoError(t, o.ApplyFill(decimal.NewFromInt(40), decimal.NewFromInt(10), 3))
	assert.Equal(t, StatusPartiallyFilled, o.Status())
	assert.True(t, o.LeavesQty().Equal(decimal.NewFromInt(60)))

	require.NoError(t, o.ApplyFill(decimal.NewFromInt(60), decimal.NewFromInt(10), 4))
	assert.Equal(t, StatusFilled, o.Status())
	assert.True(t, o.FilledQty().Equal(decimal.NewFromInt(100)))
	assert.True(t, o.LeavesQty().IsZero())

	filledCount := 0
	for _, tr := range o.Transitions() {
		if tr.To == StatusFilled {
			filledCount++
		}
	}
	assert.Equal(t, 1, filledCount)
}

func TestOverfillRejectedNeverClamped(t *testing.T) {
	o := newTestOrder(100)
	require.NoError(t, o.Apply(KindSubmitted, 1))
	require.NoError(t, o.Apply(KindAccepted, 2))
	require.NoError(t, o.ApplyFill(decimal.NewFromInt(90), decimal.NewFromInt(10), 3))

	err := o.ApplyFill(decimal.NewFromInt(20), decimal.NewFromInt(10), 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOrderOverfill))

	// State untouched by the rejected fill.
	assert.Equal(t, StatusPartiallyFilled, o.Status())
	assert.True(t, o.FilledQty().Equal(decimal.NewFromInt(90)))
}

func TestWeightedAverageFillPrice(t *testing.T) {
	o := newTestOrder(100)
	require.NoError(t, o.Apply(KindSubmitted, 1))
	require.NoError(t, o.Apply(KindAccepted, 2))

	require.NoError(t, o.ApplyFill(decimal.NewFromInt(60), decimal.NewFromInt(10), 3))
	require.NoError(t, o.ApplyFill(decimal.NewFromInt(40), decimal.NewFromInt(11), 4))

	// (60*10 + 40*11) / 100 = 10.4
	want := decimal.RequireFromString("10.4")
	assert.Truef(t, o.AvgFillPx().Equal(want), "avg fill px: %s", o.AvgFillPx())
}

func TestDenyFromInitializedOnly(t *testing.T) {
	o := newTestOrder(10)
	require.NoError(t, o.Deny(1))
	require.Equal(t, StatusRejected, o.Status())
	require.True(t, o.IsTerminal())

	o2 := newTestOrder(10)
	require.NoError(t, o2.Apply(KindSubmitted, 1))
	err := o2.Deny(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOrderInvalidTransition))
}

func TestCancelFillRaceFillWins(t *testing.T) {
	o := newTestOrder(100)
	require.NoError(t, o.Apply(KindSubmitted, 1))
	require.NoError(t, o.Apply(KindAccepted, 2))
	require.NoError(t, o.Apply(KindPendingCancel, 3))
	require.Equal(t, StatusPendingCancel, o.Status())

	// Partial fill while the cancel is pending keeps waiting.
	require.NoError(t, o.ApplyFill(decimal.NewFromInt(30), decimal.NewFromInt(10), 4))
	assert.Equal(t, StatusPendingCancel, o.Status())

	// Completing fill wins the race.
	require.NoError(t, o.ApplyFill(decimal.NewFromInt(70), decimal.NewFromInt(10), 5))
	assert.Equal(t, StatusFilled, o.Status())
}

func TestCancelFillRaceCancelWins(t *testing.T) {
	o := newTestOrder(100)
	require.NoError(t, o.Apply(KindSubmitted, 1))
	require.NoError(t, o.Apply(KindAccepted, 2))
	require.NoError(t, o.Apply(KindPendingCancel, 3))
	require.NoError(t, o.ApplyFill(decimal.NewFromInt(30), decimal.NewFromInt(10), 4))

	require.NoError(t, o.Apply(KindCanceled, 5))
	assert.Equal(t, StatusCanceled, o.Status())
	assert.True(t, o.FilledQty().Equal(decimal.NewFromInt(30)))
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	terminalVia := map[string]func(*Order){
		"rejected": func(o *Order) {
			_ = o.Apply(KindSubmitted, 1)
			_ = o.Apply(KindRejected, 2)
		},
		"filled": func(o *Order) {
			_ = o.Apply(KindSubmitted, 1)
			_ = o.Apply(KindAccepted, 2)
			_ = o.ApplyFill(decimal.NewFromInt(10), decimal.NewFromInt(10), 3)
		},
		"canceled": func(o *Order) {
			_ = o.Apply(KindSubmitted, 1)
			_ = o.Apply(KindAccepted, 2)
			_ = o.Apply(KindCanceled, 3)
		},
		"expired": func(o *Order) {
			_ = o.Apply(KindSubmitted, 1)
			_ = o.Apply(KindAccepted, 2)
			_ = o.Apply(KindExpired, 3)
		},
	}
	for name, drive := range terminalVia {
		t.Run(name, func(t *testing.T) {
			o := newTestOrder(10)
			drive(o)
			require.True(t, o.IsTerminal())

			for _, kind := range []EventKind{KindSubmitted, KindAccepted, KindRejected, KindCanceled, KindExpired, KindPendingCancel} {
				err := o.Apply(kind, 9)
				assert.Truef(t, errors.Is(err, exception.ErrOrderInvalidTransition), "kind: %s", kind)
			}
			err := o.ApplyFill(decimal.NewFromInt(1), decimal.NewFromInt(10), 9)
			assert.True(t, errors.Is(err, exception.ErrOrderInvalidTransition))
		})
	}
}

func TestNoPendingCancelFromPartiallyFilled(t *testing.T) {
	o := newTestOrder(100)
	_ = o.Apply(KindSubmitted, 1)
	_ = o.Apply(KindAccepted, 2)
	_ = o.ApplyFill(decimal.NewFromInt(10), decimal.NewFromInt(10), 3)

	err := o.Apply(KindPendingCancel, 4)
	assert.True(t, errors.Is(err, exception.ErrOrderInvalidTransition))
	// Direct cancel is still legal.
	assert.NoError(t, o.Apply(KindCanceled, 5))
}

func TestZeroQtyFillRejected(t *testing.T) {
	o := newTestOrder(10)
	_ = o.Apply(KindSubmitted, 1)
	_ = o.Apply(KindAccepted, 2)
	err := o.ApplyFill(decimal.Zero, decimal.NewFromInt(10), 3)
	assert.True(t, errors.Is(err, exception.ErrOrderInvalidQty))
}

func TestTransitionLogRecordsEdges(t *testing.T) {
	o := newTestOrder(10)
	_ = o.Apply(KindSubmitted, 1)
	_ = o.Apply(KindAccepted, 2)
	_ = o.ApplyFill(decimal.NewFromInt(10), decimal.NewFromInt(10), 3)

	trs := o.Transitions()
	if len(trs) != 3 {
		t.Fatalf("transitions: got %d want 3", len(trs))
	}
	if trs[0].From != StatusInitialized || trs[2].To != StatusFilled {
		t.Fatalf("unexpected edge log: %+v", trs)
	}
}
