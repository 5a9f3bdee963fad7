package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/identity"
)

// Action is the outcome of a risk decision.
type Action uint16

const (
	ActionUnknown Action = iota
	ActionAllow
	ActionDeny
)

// Reason is a coarse reason code for risk decisions.
type Reason uint16

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonUnknownInstrument
	ReasonMaxQty
	ReasonMaxNotional
	ReasonExposureLimit
	ReasonPositionLimit
	ReasonRateLimit
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonKillSwitch:
		return "kill switch engaged"
	case ReasonUnknownInstrument:
		return "instrument not registered"
	case ReasonMaxQty:
		return "max order quantity exceeded"
	case ReasonMaxNotional:
		return "max order notional exceeded"
	case ReasonExposureLimit:
		return "account exposure limit exceeded"
	case ReasonPositionLimit:
		return "position limit exceeded"
	case ReasonRateLimit:
		return "order rate limit exceeded"
	default:
		return "unknown"
	}
}

// Decision is the immediate accept-or-deny result of a pre-trade check.
// The engine never holds a command pending.
type Decision struct {
	Action Action
	Reason Reason
}

// Allowed reports whether the command may proceed.
func (d Decision) Allowed() bool { return d.Action == ActionAllow }

// Config defines static risk limits. Zero values disable a check.
type Config struct {
	KillSwitch         bool            `json:"killSwitch"`
	MaxOrderQty        decimal.Decimal `json:"maxOrderQty"`
	MaxOrderNotional   decimal.Decimal `json:"maxOrderNotional"`
	MaxAccountExposure decimal.Decimal `json:"maxAccountExposure"`
	MaxPosition        decimal.Decimal `json:"maxPosition"`
	OrderRatePerSec    float64         `json:"orderRatePerSec"`
	OrderRateBurst     int             `json:"orderRateBurst"`
}

// StateView is the snapshot of current state a check runs against.
// Exposure includes in-flight unacknowledged orders so limits cannot be
// evaded by rapid-fire submission.
type StateView struct {
	PositionQty      decimal.Decimal
	AccountExposure  decimal.Decimal
	InFlightNotional decimal.Decimal
	RefPx            decimal.Decimal
}

// Engine runs synchronous pre-trade checks. All checks are pure
// functions of the config, the command, and the supplied state view;
// the token buckets draw time from the injected clock so backtests stay
// deterministic. The mutex exists for live mode, where the config
// watcher swaps limits from another goroutine.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	clock   clock.Clock
	reg     *identity.Registry
	buckets map[identity.StrategyID]*tokenBucket
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config, clk clock.Clock, reg *identity.Registry) *Engine {
	return &Engine{
		cfg:     cfg,
		clock:   clk,
		reg:     reg,
		buckets: make(map[identity.StrategyID]*tokenBucket),
	}
}

// UpdateConfig swaps the limit set. Token bucket state survives so a
// limit change cannot reset rate accounting.
func (e *Engine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// EvaluateSubmit clears or denies a submit command.
func (e *Engine) EvaluateSubmit(cmd events.SubmitOrder, view StateView) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.KillSwitch {
		return Decision{Action: ActionDeny, Reason: ReasonKillSwitch}
	}
	if _, ok := e.reg.Instrument(cmd.InstrumentID); !ok {
		return Decision{Action: ActionDeny, Reason: ReasonUnknownInstrument}
	}
	if e.cfg.MaxOrderQty.IsPositive() && cmd.Qty.GreaterThan(e.cfg.MaxOrderQty) {
		return Decision{Action: ActionDeny, Reason: ReasonMaxQty}
	}

	notional := cmd.Notional(view.RefPx)
	if e.cfg.MaxOrderNotional.IsPositive() && notional.GreaterThan(e.cfg.MaxOrderNotional) {
		return Decision{Action: ActionDeny, Reason: ReasonMaxNotional}
	}
	if e.cfg.MaxAccountExposure.IsPositive() {
		projected := view.AccountExposure.Add(view.InFlightNotional).Add(notional)
		if projected.GreaterThan(e.cfg.MaxAccountExposure) {
			return Decision{Action: ActionDeny, Reason: ReasonExposureLimit}
		}
	}
	if e.cfg.MaxPosition.IsPositive() {
		signed := cmd.Qty
		if cmd.Side == events.SideSell {
			signed = signed.Neg()
		}
		if view.PositionQty.Add(signed).Abs().GreaterThan(e.cfg.MaxPosition) {
			return Decision{Action: ActionDeny, Reason: ReasonPositionLimit}
		}
	}
	// Rate limiting runs last so a command denied on limits does not
	// also burn a token.
	if !e.takeToken(cmd.StrategyID) {
		return Decision{Action: ActionDeny, Reason: ReasonRateLimit}
	}
	return Decision{Action: ActionAllow, Reason: ReasonNone}
}

// EvaluateCancel clears or denies a cancel command. Cancels are
// first-class commands but bypass exposure checks: removing exposure is
// always allowed, only the rate limit applies, and the kill switch
// never blocks a cancel so a strategy can flatten itself.
func (e *Engine) EvaluateCancel(cmd events.CancelOrder) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.KillSwitch {
		return Decision{Action: ActionAllow, Reason: ReasonNone}
	}
	if !e.takeToken(cmd.StrategyID) {
		return Decision{Action: ActionDeny, Reason: ReasonRateLimit}
	}
	return Decision{Action: ActionAllow, Reason: ReasonNone}
}

// EvaluateModify clears or denies a modify command against the working
// order's replacement exposure.
func (e *Engine) EvaluateModify(cmd events.ModifyOrder, newNotional decimal.Decimal) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.KillSwitch {
		return Decision{Action: ActionDeny, Reason: ReasonKillSwitch}
	}
	if e.cfg.MaxOrderQty.IsPositive() && cmd.NewQty.IsPositive() && cmd.NewQty.GreaterThan(e.cfg.MaxOrderQty) {
		return Decision{Action: ActionDeny, Reason: ReasonMaxQty}
	}
	if e.cfg.MaxOrderNotional.IsPositive() && newNotional.GreaterThan(e.cfg.MaxOrderNotional) {
		return Decision{Action: ActionDeny, Reason: ReasonMaxNotional}
	}
	if !e.takeToken(cmd.StrategyID) {
		return Decision{Action: ActionDeny, Reason: ReasonRateLimit}
	}
	return Decision{Action: ActionAllow, Reason: ReasonNone}
}

// tokenBucket is a per-strategy rate limiter refilled from clock time.
type tokenBucket struct {
	tokens float64
	last   time.Time
}

func (e *Engine) takeToken(strategy identity.StrategyID) bool {
	if e.cfg.OrderRatePerSec <= 0 || e.cfg.OrderRateBurst <= 0 {
		return true
	}
	now := e.clock.Now()
	b, ok := e.buckets[strategy]
	if !ok {
		b = &tokenBucket{tokens: float64(e.cfg.OrderRateBurst), last: now}
		e.buckets[strategy] = b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * e.cfg.OrderRatePerSec
		if max := float64(e.cfg.OrderRateBurst); b.tokens > max {
			b.tokens = max
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
