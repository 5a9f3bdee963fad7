package strategy

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/bus"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/internal/kernel"
	"github.com/alexanu/nautilus-trader/internal/ops"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// ThresholdConfig parameterizes a threshold reversion strategy.
type ThresholdConfig struct {
	Symbol    string
	AccountID identity.AccountID
	BuyBelow  decimal.Decimal
	SellAbove decimal.Decimal
	Qty       decimal.Decimal
}

// Threshold buys at market when the mid drops to the lower band and
// exits when it reaches the upper band. One position at a time. It
// exists to exercise the full command path; it is not investment
// advice.
type Threshold struct {
	id  identity.StrategyID
	cfg ThresholdConfig

	instrument identity.InstrumentID
	sub        bus.Subscription
	working    identity.ClientOrderID
	long       bool
}

// FromConfig builds a threshold strategy from its file config form.
func FromConfig(cfg ops.StrategyConfig) (*Threshold, error) {
	buyBelow, err := decimal.NewFromString(cfg.BuyBelow)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrValidation, "strategy buyBelow: %s", cfg.BuyBelow)
	}
	sellAbove, err := decimal.NewFromString(cfg.SellAbove)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrValidation, "strategy sellAbove: %s", cfg.SellAbove)
	}
	qty, err := decimal.NewFromString(cfg.Qty)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrValidation, "strategy qty: %s", cfg.Qty)
	}
	return NewThreshold(identity.StrategyID(cfg.ID), ThresholdConfig{
		Symbol:    cfg.Symbol,
		AccountID: identity.AccountID(cfg.Account),
		BuyBelow:  buyBelow,
		SellAbove: sellAbove,
		Qty:       qty,
	})
}

// NewThreshold validates the config and creates the strategy.
func NewThreshold(id identity.StrategyID, cfg ThresholdConfig) (*Threshold, error) {
	if id == "" {
		return nil, errors.Wrap(exception.ErrValidation, "strategy id is empty")
	}
	if cfg.Symbol == "" || cfg.AccountID == "" {
		return nil, errors.Wrap(exception.ErrValidation, "threshold symbol and account are required")
	}
	if !cfg.Qty.IsPositive() {
		return nil, errors.Wrap(exception.ErrOrderInvalidQty, "threshold qty")
	}
	if !cfg.BuyBelow.IsPositive() || cfg.SellAbove.LessThanOrEqual(cfg.BuyBelow) {
		return nil, errors.Wrap(exception.ErrValidation, "threshold bands are inverted")
	}
	return &Threshold{id: id, cfg: cfg}, nil
}

// ID returns the strategy identifier.
func (s *Threshold) ID() identity.StrategyID { return s.id }

// Start resolves the instrument and subscribes to its quote stream.
func (s *Threshold) Start(ctx context.Context, k *kernel.Kernel) error {
	inst, ok := k.Registry().InstrumentBySymbol(s.cfg.Symbol)
	if !ok {
		return errors.Wrapf(exception.ErrInstrumentUnknown, "symbol: %s", s.cfg.Symbol)
	}
	s.instrument = inst.ID

	sub, err := k.Bus().Subscribe(events.TopicQuotes(s.cfg.Symbol), func(ev events.Event) {
		quote, ok := ev.(events.QuoteTick)
		if !ok {
			return
		}
		s.onQuote(ctx, k, quote)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Stop unsubscribes. Open orders are left to the venue's lifecycle.
func (s *Threshold) Stop(_ context.Context, k *kernel.Kernel) error {
	k.Bus().Unsubscribe(s.sub)
	return nil
}

func (s *Threshold) onQuote(ctx context.Context, k *kernel.Kernel, quote events.QuoteTick) {
	if s.working != "" {
		if o, ok := k.Exec().Order(s.working); !ok || o.IsTerminal() {
			s.working = ""
		} else {
			return
		}
	}

	mid := quote.Mid()
	switch {
	case !s.long && mid.LessThanOrEqual(s.cfg.BuyBelow):
		s.enter(ctx, k, events.SideBuy, quote.Header.TsEvent)
		s.long = true
	case s.long && mid.GreaterThanOrEqual(s.cfg.SellAbove):
		s.enter(ctx, k, events.SideSell, quote.Header.TsEvent)
		s.long = false
	}
}

func (s *Threshold) enter(ctx context.Context, k *kernel.Kernel, side events.Side, ts int64) {
	coid := k.NextOrderID()
	cmd := events.SubmitOrder{
		TraderID:      k.Trader(),
		StrategyID:    s.id,
		AccountID:     s.cfg.AccountID,
		InstrumentID:  s.instrument,
		ClientOrderID: coid,
		Side:          side,
		OrderType:     events.OrderTypeMarket,
		TimeInForce:   events.TimeInForceIOC,
		Qty:           s.cfg.Qty,
		TsInit:        ts,
	}
	if err := k.Submit(ctx, cmd); err != nil {
		logs.Warnf("threshold submit, order: %s, err: %+v", coid, err)
		s.long = side != events.SideBuy
		return
	}
	s.working = coid
}
