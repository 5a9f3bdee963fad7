package kernel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/data"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/exec"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/internal/obs"
	"github.com/alexanu/nautilus-trader/internal/ops"
	"github.com/alexanu/nautilus-trader/internal/portfolio"
	"github.com/alexanu/nautilus-trader/internal/recorder"
	"github.com/alexanu/nautilus-trader/internal/risk"
	"github.com/alexanu/nautilus-trader/internal/sim"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// Mode selects the clock and concurrency model. Everything between the
// clock and the collaborators is the same code in both modes.
type Mode uint8

const (
	ModeBacktest Mode = iota
	ModeLive
)

func (m Mode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "backtest"
}

// Strategy is user trading logic hosted by the kernel. Start runs after
// wiring is complete and before data flows; strategies subscribe to bus
// topics and send commands through the kernel handle.
type Strategy interface {
	ID() identity.StrategyID
	Start(ctx context.Context, k *Kernel) error
	Stop(ctx context.Context, k *Kernel) error
}

// Options tunes kernel construction beyond the loaded config.
// ExecClient plugs in the venue adapter; when nil a backtest falls
// back to the built-in simulated exchange, while live construction
// fails so a run can never silently paper-trade.
type Options struct {
	EventLogPath string
	QueueSize    int
	Stream       data.StreamClient
	Replay       data.ReplayClient
	ExecClient   exec.Client
}

// Kernel assembles one trading system instance: clock, bus, engines,
// portfolio and collaborators, wired per config. Construction validates
// the wiring; a missing collaborator fails fast rather than surfacing
// halfway through a run.
type Kernel struct {
	mode    Mode
	session string
	trader  identity.TraderID

	clock     clock.Clock
	bus       *bus.MessageBus
	seq       *events.Sequencer
	registry  *identity.Registry
	risk      *risk.Engine
	portfolio *portfolio.Portfolio
	exec      *exec.Engine
	data      *data.Engine
	metrics   *obs.Metrics

	recorder *recorder.BusRecorder
	exchange *sim.Exchange
	reports  *sim.ReportBuffer
	replay   data.ReplayClient
	stream   data.StreamClient
	queue    *bus.Queue

	orderIDs   *identity.OrderIDGenerator
	strategies []Strategy
	window     ops.BacktestConfig
	faulting   uint32
}

// NewBacktest builds a deterministic backtest kernel: virtual clock,
// simulated venue, synchronous single-goroutine replay.
func NewBacktest(cfg ops.Loaded, opts Options) (*Kernel, error) {
	k, err := build(ModeBacktest, cfg, opts)
	if err != nil {
		return nil, err
	}
	if k.replay == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "backtest replay client")
	}
	return k, nil
}

// NewLive builds a live kernel: wall clock, streaming data client,
// bounded queue serializing every mutation onto one goroutine.
func NewLive(cfg ops.Loaded, opts Options) (*Kernel, error) {
	k, err := build(ModeLive, cfg, opts)
	if err != nil {
		return nil, err
	}
	if k.stream == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "live stream client")
	}
	return k, nil
}

func build(mode Mode, cfg ops.Loaded, opts Options) (*Kernel, error) {
	if cfg.Registry == nil || cfg.Registry.Count() == 0 {
		return nil, errors.Wrap(exception.ErrValidation, "registry is empty")
	}

	var clk clock.Clock
	if mode == ModeBacktest {
		clk = clock.NewVirtual(time.Unix(0, cfg.Backtest.From).UTC())
	} else {
		clk = clock.NewWall()
	}

	b := bus.New()
	seq := events.NewSequencer()
	metrics := obs.NewMetrics()
	pf := portfolio.New(cfg.TraderID, seq)
	if err := cfg.Apply(pf); err != nil {
		return nil, err
	}
	riskEngine := risk.NewEngine(cfg.Risk, clk, cfg.Registry)
	dataEngine := data.NewEngine(cfg.Registry, b, seq)

	k := &Kernel{
		mode:      mode,
		session:   identity.NewSessionID(),
		trader:    cfg.TraderID,
		clock:     clk,
		bus:       b,
		seq:       seq,
		registry:  cfg.Registry,
		risk:      riskEngine,
		portfolio: pf,
		data:      dataEngine,
		metrics:   metrics,
		reports:   sim.NewReportBuffer(),
		replay:    opts.Replay,
		stream:    opts.Stream,
		orderIDs:  identity.NewOrderIDGenerator(cfg.TraderID),
		window:    cfg.Backtest,
	}

	client := opts.ExecClient
	if client == nil {
		if mode == ModeLive {
			return nil, errors.Wrap(exception.ErrNilInstance, "live execution client")
		}
		exchange, err := sim.NewExchange(clk, cfg.Registry, k.reports.Push)
		if err != nil {
			return nil, err
		}
		k.exchange = exchange
		client = exchange
	}

	execEngine, err := exec.NewEngine(clk, b, cfg.Registry, riskEngine, pf, client,
		func(id identity.InstrumentID) (decimal.Decimal, bool) { return dataEngine.LastPx(id) },
		seq, metrics)
	if err != nil {
		return nil, err
	}
	k.exec = execEngine

	if k.exchange != nil {
		// The built-in exchange sees each quote before strategies do, so
		// resting orders fill against a price before anyone can react to
		// it. External clients receive their own market data.
		if _, err := b.Subscribe("data.quotes.*", k.onQuote); err != nil {
			return nil, err
		}
	}
	if _, err := b.Subscribe("*", k.onAnyEvent); err != nil {
		return nil, err
	}
	b.OnHandlerError(k.onHandlerPanic)

	if opts.EventLogPath != "" {
		rec, err := recorder.Attach(b, opts.EventLogPath)
		if err != nil {
			return nil, err
		}
		k.recorder = rec
	}

	if mode == ModeLive {
		size := opts.QueueSize
		if size <= 0 {
			size = 4096
		}
		k.queue = bus.NewQueue(size)
	}
	return k, nil
}

// AddStrategy registers a strategy before Run.
func (k *Kernel) AddStrategy(s Strategy) error {
	if s == nil {
		return errors.Wrap(exception.ErrNilInstance, "strategy")
	}
	k.strategies = append(k.strategies, s)
	return nil
}

// Session returns the unique identifier of this kernel run.
func (k *Kernel) Session() string { return k.session }

// Trader returns the trader identity this kernel runs under.
func (k *Kernel) Trader() identity.TraderID { return k.trader }

// Mode returns the kernel mode.
func (k *Kernel) Mode() Mode { return k.mode }

// Clock exposes the kernel clock. Strategies must use it instead of
// time.Now so backtest and live behave identically.
func (k *Kernel) Clock() clock.Clock { return k.clock }

// Bus exposes the message bus for strategy subscriptions.
func (k *Kernel) Bus() *bus.MessageBus { return k.bus }

// Registry exposes instrument definitions.
func (k *Kernel) Registry() *identity.Registry { return k.registry }

// Portfolio exposes positions and accounts.
func (k *Kernel) Portfolio() *portfolio.Portfolio { return k.portfolio }

// Metrics exposes kernel counters.
func (k *Kernel) Metrics() *obs.Metrics { return k.metrics }

// Risk exposes the risk engine, mainly for limit reloads.
func (k *Kernel) Risk() *risk.Engine { return k.risk }

// NextOrderID mints a fresh client order identifier.
func (k *Kernel) NextOrderID() identity.ClientOrderID { return k.orderIDs.Next() }

// Submit sends an order command through the execution engine and
// settles any synchronous venue responses.
func (k *Kernel) Submit(ctx context.Context, cmd events.SubmitOrder) error {
	err := k.exec.SubmitOrder(ctx, cmd)
	k.settle()
	return err
}

// Cancel sends a cancel command through the execution engine.
func (k *Kernel) Cancel(ctx context.Context, cmd events.CancelOrder) error {
	err := k.exec.CancelOrder(ctx, cmd)
	k.settle()
	return err
}

// Modify sends a modify command through the execution engine.
func (k *Kernel) Modify(ctx context.Context, cmd events.ModifyOrder) error {
	err := k.exec.ModifyOrder(ctx, cmd)
	k.settle()
	return err
}

// Exec exposes order state lookups.
func (k *Kernel) Exec() *exec.Engine { return k.exec }

// settle drains buffered venue reports into the execution engine. The
// simulated venue produces reports while the engine lock is held, so
// they queue up and land here, after the triggering call returned.
func (k *Kernel) settle() {
	k.reports.Drain(k.exec.HandleExecutionReport)
}

func (k *Kernel) onQuote(ev events.Event) {
	if quote, ok := ev.(events.QuoteTick); ok {
		k.exchange.OnQuote(quote)
	}
}

func (k *Kernel) onAnyEvent(ev events.Event) {
	k.metrics.ObserveEvent(ev.EventHeader().Type)
}

// onHandlerPanic turns a recovered subscriber panic into a fault event
// on TopicErrors. The guard stops a panicking error subscriber from
// publishing its own failure recursively; the bus has already logged
// the panic either way.
func (k *Kernel) onHandlerPanic(topic string, recovered any) {
	if !atomic.CompareAndSwapUint32(&k.faulting, 0, 1) {
		return
	}
	defer atomic.StoreUint32(&k.faulting, 0)

	now := k.clock.Now().UnixNano()
	k.bus.Publish(events.TopicErrors, events.HandlerFailed{
		Header: k.seq.NextHeader(events.TypeHandlerFailed, now, now),
		Topic:  topic,
		Reason: fmt.Sprint(recovered),
	})
}

// OnExecutionReport ingests a report produced by an external execution
// client. Live reports are serialized onto the kernel queue alongside
// market data; backtest reports queue behind the triggering command and
// apply when the kernel settles.
func (k *Kernel) OnExecutionReport(r events.ExecutionReport) {
	if k.queue != nil {
		if err := k.queue.TryPublish(func() {
			k.exec.HandleExecutionReport(r)
			k.settle()
		}); err != nil {
			logs.Errorf("drop execution report, order: %s, err: %+v", r.ClientOrderID, err)
		}
		return
	}
	k.reports.Push(r)
}

func (k *Kernel) startStrategies(ctx context.Context) error {
	for _, s := range k.strategies {
		if err := s.Start(ctx, k); err != nil {
			return errors.Wrapf(err, "start strategy: %s", s.ID())
		}
		k.settle()
	}
	return nil
}

func (k *Kernel) stopStrategies(ctx context.Context) {
	for i := len(k.strategies) - 1; i >= 0; i-- {
		s := k.strategies[i]
		if err := s.Stop(ctx, k); err != nil {
			logs.Errorf("stop strategy: %s, err: %+v", s.ID(), err)
		}
		k.settle()
	}
}

// Shutdown flushes and closes collaborators. Safe to call once after
// Run returns.
func (k *Kernel) Shutdown() error {
	if k.queue != nil {
		k.queue.Close()
	}
	if k.recorder != nil {
		if err := k.recorder.Close(); err != nil {
			return errors.Wrap(err, "close event log")
		}
	}
	return nil
}
