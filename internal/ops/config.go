package ops

import (
	"os"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/internal/portfolio"
	"github.com/alexanu/nautilus-trader/internal/risk"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// Env holds process-level settings resolved from the environment. A
// .env file in the working directory is honored when present.
type Env struct {
	ConfigPath   string `envconfig:"CONFIG_PATH" default:"config.json"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	EventLogPath string `envconfig:"EVENT_LOG_PATH" default:"events.elog"`
	DatabaseDSN  string `envconfig:"DATABASE_DSN"`
	PyroscopeURL string `envconfig:"PYROSCOPE_URL"`
	FeedURL      string `envconfig:"FEED_URL"`
}

// LoadEnv resolves environment settings.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, errors.Wrap(err, "process environment")
	}
	return env, nil
}

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	TraderID string          `json:"traderId"`
	Registry RegistryConfig  `json:"registry"`
	Risk     risk.Config     `json:"risk"`
	Accounts []AccountConfig `json:"accounts"`
	Data     DataConfig      `json:"data"`
	Backtest BacktestConfig  `json:"backtest"`
	Strategy StrategyConfig  `json:"strategy"`
}

// StrategyConfig parameterizes the built-in threshold strategy.
type StrategyConfig struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Account   string `json:"account"`
	BuyBelow  string `json:"buyBelow"`
	SellAbove string `json:"sellAbove"`
	Qty       string `json:"qty"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues"`
	Instruments []InstrumentConfig `json:"instruments"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// InstrumentConfig describes an instrument entry.
type InstrumentConfig struct {
	Symbol         string `json:"symbol"`
	Venue          string `json:"venue"`
	TickSize       string `json:"tickSize"`
	LotSize        string `json:"lotSize"`
	PricePrecision int32  `json:"pricePrecision"`
	SizePrecision  int32  `json:"sizePrecision"`
}

// AccountConfig describes a trading account entry.
type AccountConfig struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// DataConfig selects and shapes the market data source.
type DataConfig struct {
	// Source is "generator" or "file".
	Source     string `json:"source"`
	ReplayPath string `json:"replayPath"`

	BasePrice  int64 `json:"basePrice"`
	Amplitude  int64 `json:"amplitude"`
	Spread     int64 `json:"spread"`
	Size       int64 `json:"size"`
	IntervalMs int64 `json:"intervalMs"`
}

// BacktestConfig bounds the replay window in unix nanoseconds.
type BacktestConfig struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// ResolvedAccount is a validated account definition.
type ResolvedAccount struct {
	ID       identity.AccountID
	Currency string
	Balance  decimal.Decimal
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	TraderID identity.TraderID
	Registry *identity.Registry
	Risk     risk.Config
	Accounts []ResolvedAccount
	Data     DataConfig
	Backtest BacktestConfig
	Strategy StrategyConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "read config: %s", path)
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(raw, &cfg); err != nil {
		return Loaded{}, errors.Wrapf(err, "decode config: %s", path)
	}
	return Resolve(cfg)
}

// LoadRisk reads a JSON config file and returns only the risk limits.
// Used by the hot-reload watcher so a malformed edit cannot disturb the
// rest of the loaded config.
func LoadRisk(path string) (risk.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return risk.Config{}, errors.Wrapf(err, "read config: %s", path)
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(raw, &cfg); err != nil {
		return risk.Config{}, errors.Wrapf(err, "decode config: %s", path)
	}
	return cfg.Risk, nil
}

// Resolve validates a file config and builds the registry and accounts.
func Resolve(cfg FileConfig) (Loaded, error) {
	if cfg.TraderID == "" {
		return Loaded{}, errors.Wrap(exception.ErrValidation, "traderId is empty")
	}
	reg, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	accounts, err := resolveAccounts(cfg.Accounts)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateData(cfg.Data); err != nil {
		return Loaded{}, err
	}
	return Loaded{
		TraderID: identity.TraderID(cfg.TraderID),
		Registry: reg,
		Risk:     cfg.Risk,
		Accounts: accounts,
		Data:     cfg.Data,
		Backtest: cfg.Backtest,
		Strategy: cfg.Strategy,
	}, nil
}

// Apply registers the resolved accounts on a portfolio.
func (l Loaded) Apply(p *portfolio.Portfolio) error {
	for _, acct := range l.Accounts {
		if err := p.AddAccount(portfolio.NewAccount(acct.ID, acct.Currency, acct.Balance)); err != nil {
			return err
		}
	}
	return nil
}

func buildRegistry(cfg RegistryConfig) (*identity.Registry, error) {
	reg := identity.NewRegistry()
	for _, venue := range cfg.Venues {
		if err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	if len(cfg.Instruments) == 0 {
		return nil, errors.Wrap(exception.ErrValidation, "no instruments configured")
	}
	for _, inst := range cfg.Instruments {
		tick, err := decimal.NewFromString(inst.TickSize)
		if err != nil {
			return nil, errors.Wrapf(exception.ErrValidation, "tickSize for %s: %s", inst.Symbol, inst.TickSize)
		}
		lot, err := decimal.NewFromString(inst.LotSize)
		if err != nil {
			return nil, errors.Wrapf(exception.ErrValidation, "lotSize for %s: %s", inst.Symbol, inst.LotSize)
		}
		err = reg.AddInstrument(identity.Instrument{
			Symbol:         inst.Symbol,
			Venue:          inst.Venue,
			TickSize:       tick,
			LotSize:        lot,
			PricePrecision: inst.PricePrecision,
			SizePrecision:  inst.SizePrecision,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveAccounts(cfgs []AccountConfig) ([]ResolvedAccount, error) {
	if len(cfgs) == 0 {
		return nil, errors.Wrap(exception.ErrValidation, "no accounts configured")
	}
	out := make([]ResolvedAccount, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.ID == "" {
			return nil, errors.Wrap(exception.ErrValidation, "account id is empty")
		}
		if cfg.Currency == "" {
			cfg.Currency = "USD"
		}
		balance := decimal.Zero
		if cfg.Balance != "" {
			var err error
			balance, err = decimal.NewFromString(cfg.Balance)
			if err != nil {
				return nil, errors.Wrapf(exception.ErrValidation, "balance for %s: %s", cfg.ID, cfg.Balance)
			}
		}
		out = append(out, ResolvedAccount{
			ID:       identity.AccountID(cfg.ID),
			Currency: cfg.Currency,
			Balance:  balance,
		})
	}
	return out, nil
}

func validateData(cfg DataConfig) error {
	switch cfg.Source {
	case "", "generator":
		if cfg.BasePrice <= 0 {
			return errors.Wrap(exception.ErrValidation, "data.basePrice must be positive")
		}
	case "file":
		if cfg.ReplayPath == "" {
			return errors.Wrap(exception.ErrValidation, "data.replayPath is empty")
		}
	case "websocket":
		// Feed URL comes from the environment; nothing to check here.
	default:
		return errors.Wrapf(exception.ErrValidation, "unknown data source: %s", cfg.Source)
	}
	return nil
}
