package ops

import (
	"bytes"
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/risk"
)

// WatchRisk polls the config file and invokes apply whenever the risk
// section changes on disk. Malformed edits are logged and skipped; the
// previous limits stay in force. Blocks until the context is done.
// Live mode only; backtests never reload config mid-run.
func WatchRisk(ctx context.Context, path string, interval time.Duration, apply func(risk.Config)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	last, err := fingerprint(path)
	if err != nil {
		logs.Errorf("risk watch initial load, path: %s, err: %+v", path, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, err := fingerprint(path)
			if err != nil {
				logs.Warnf("risk watch reload skipped, path: %s, err: %+v", path, err)
				continue
			}
			if bytes.Equal(next, last) {
				continue
			}
			cfg, err := LoadRisk(path)
			if err != nil {
				logs.Warnf("risk watch reload skipped, path: %s, err: %+v", path, err)
				continue
			}
			last = next
			apply(cfg)
			logs.Infof("risk limits reloaded, path: %s", path)
		}
	}
}

// fingerprint serializes the on-disk risk section for change detection.
// Decimal limits make the config struct unfit for direct comparison.
func fingerprint(path string) ([]byte, error) {
	cfg, err := LoadRisk(path)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(cfg)
}
