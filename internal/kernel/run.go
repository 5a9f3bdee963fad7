package kernel

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/data"
)

// Run drives the kernel until the data source is exhausted (backtest)
// or the context is done (live).
func (k *Kernel) Run(ctx context.Context) error {
	if k.mode == ModeBacktest {
		return k.runBacktest(ctx)
	}
	return k.runLive(ctx)
}

// runBacktest replays historical data on a single goroutine. The clock
// advances to each event's timestamp before dispatch, so timers,
// rate-limit windows and event times land identically on every run.
func (k *Kernel) runBacktest(ctx context.Context) error {
	logs.Infof("backtest start, session: %s, from: %d, to: %d", k.session, k.window.From, k.window.To)
	if err := k.startStrategies(ctx); err != nil {
		return err
	}

	err := k.replay.Replay(ctx, k.window.From, k.window.To, func(raw data.RawEvent) error {
		if raw.TsEvent > 0 {
			if err := k.clock.AdvanceTo(time.Unix(0, raw.TsEvent).UTC()); err != nil {
				return errors.Wrap(err, "advance clock")
			}
		}
		k.step(raw)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "replay")
	}

	k.stopStrategies(ctx)
	logs.Infof("backtest done, session: %s, events: %d, orders: %d, closed positions: %d",
		k.session, k.data.Received(), k.exec.OrderCount(), k.portfolio.ClosedCount())
	return nil
}

// runLive consumes streaming data. Feed goroutines only enqueue; the
// queue's single consumer performs every mutation, giving live mode the
// same single-writer semantics the backtest gets for free.
func (k *Kernel) runLive(ctx context.Context) error {
	logs.Infof("live start, session: %s", k.session)
	if err := k.startStrategies(ctx); err != nil {
		return err
	}

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- k.stream.Stream(ctx, func(raw data.RawEvent) {
			if err := k.queue.TryPublish(func() { k.step(raw) }); err != nil {
				logs.Warnf("drop market data, queue: %+v", err)
			}
		})
	}()

	k.queue.Run(ctx)

	k.stopStrategies(context.WithoutCancel(ctx))
	err := <-streamErr
	if err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "stream")
	}
	logs.Infof("live stop, session: %s", k.session)
	return nil
}

// step pushes one raw event through the data engine and settles any
// fills it triggered. Stale data errors are counted, not fatal.
func (k *Kernel) step(raw data.RawEvent) {
	if err := k.data.Process(raw); err != nil {
		k.metrics.IncDataDrop()
		return
	}
	k.settle()
}
