package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/internal/ops"
)

func validConfig() ops.StrategyConfig {
	return ops.StrategyConfig{
		ID:        "S-1",
		Symbol:    "BTCUSDT",
		Account:   "A-1",
		BuyBelow:  "99",
		SellAbove: "101",
		Qty:       "0.5",
	}
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(validConfig())
	require.NoError(t, err)
	assert.Equal(t, identity.StrategyID("S-1"), s.ID())
}

func TestFromConfigRejectsBadDecimals(t *testing.T) {
	for _, mutate := range []func(*ops.StrategyConfig){
		func(c *ops.StrategyConfig) { c.BuyBelow = "low" },
		func(c *ops.StrategyConfig) { c.SellAbove = "" },
		func(c *ops.StrategyConfig) { c.Qty = "1.2.3" },
	} {
		cfg := validConfig()
		mutate(&cfg)
		_, err := FromConfig(cfg)
		assert.Error(t, err)
	}
}

func TestNewThresholdValidation(t *testing.T) {
	base := ThresholdConfig{
		Symbol:    "BTCUSDT",
		AccountID: "A-1",
		BuyBelow:  decimal.NewFromInt(99),
		SellAbove: decimal.NewFromInt(101),
		Qty:       decimal.NewFromInt(1),
	}

	_, err := NewThreshold("", base)
	assert.Error(t, err)

	cfg := base
	cfg.Symbol = ""
	_, err = NewThreshold("S-1", cfg)
	assert.Error(t, err)

	cfg = base
	cfg.Qty = decimal.Zero
	_, err = NewThreshold("S-1", cfg)
	assert.Error(t, err)

	// Inverted bands would buy high and sell low forever.
	cfg = base
	cfg.SellAbove = decimal.NewFromInt(98)
	_, err = NewThreshold("S-1", cfg)
	assert.Error(t, err)

	_, err = NewThreshold("S-1", base)
	assert.NoError(t, err)
}
