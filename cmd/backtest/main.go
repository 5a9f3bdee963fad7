package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/alexanu/nautilus-trader/internal/data"
	"github.com/alexanu/nautilus-trader/internal/kernel"
	"github.com/alexanu/nautilus-trader/internal/ops"
	"github.com/alexanu/nautilus-trader/internal/portfolio"
	"github.com/alexanu/nautilus-trader/internal/sim"
	"github.com/alexanu/nautilus-trader/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config (default: CONFIG_PATH env)")
	eventLog := flag.String("event-log", "", "Event log output path (default: EVENT_LOG_PATH env)")
	snapshotOut := flag.String("snapshot", "", "Position snapshot output path")
	verifyAgainst := flag.String("verify-snapshot", "", "Compare the final book against a recorded snapshot")
	flag.Parse()

	env, err := ops.LoadEnv()
	if err != nil {
		log.Fatalf("env load failed: %v", err)
	}
	if *configPath == "" {
		*configPath = env.ConfigPath
	}
	if *eventLog == "" {
		*eventLog = env.EventLogPath
	}

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	replay, err := buildReplay(cfg)
	if err != nil {
		log.Fatalf("replay source failed: %v", err)
	}

	k, err := kernel.NewBacktest(cfg, kernel.Options{
		EventLogPath: *eventLog,
		Replay:       replay,
	})
	if err != nil {
		log.Fatalf("kernel build failed: %v", err)
	}

	if cfg.Strategy.ID != "" {
		s, err := strategy.FromConfig(cfg.Strategy)
		if err != nil {
			log.Fatalf("strategy build failed: %v", err)
		}
		if err := k.AddStrategy(s); err != nil {
			log.Fatalf("strategy add failed: %v", err)
		}
	}

	if err := k.Run(context.Background()); err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
	if err := k.Shutdown(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}

	snap := k.Portfolio().Snapshot(k.Clock().Now().UnixNano())
	if *snapshotOut != "" {
		if err := portfolio.WriteSnapshot(*snapshotOut, snap); err != nil {
			log.Fatalf("snapshot write failed: %v", err)
		}
	}
	if *verifyAgainst != "" {
		expected, err := portfolio.ReadSnapshot(*verifyAgainst)
		if err != nil {
			log.Fatalf("snapshot read failed: %v", err)
		}
		if err := portfolio.CompareSnapshots(expected, snap); err != nil {
			log.Fatalf("snapshot verification failed: %v", err)
		}
		log.Printf("snapshot verified against %s", *verifyAgainst)
	}

	m := k.Metrics().Snapshot()
	var total uint64
	for _, n := range m.EventCounts {
		total += n
	}
	log.Printf("session=%s events=%d drops=%d invalid_transitions=%d unknown_reports=%d",
		k.Session(), total, m.DataDrops, m.InvalidTransitions, m.UnknownReports)
}

func buildReplay(cfg ops.Loaded) (data.ReplayClient, error) {
	if cfg.Data.Source == "file" {
		return sim.NewFileReplay(cfg.Data.ReplayPath)
	}
	interval := time.Duration(cfg.Data.IntervalMs) * time.Millisecond
	return sim.NewGenerator(cfg.Registry, sim.GeneratorConfig{
		BasePrice: cfg.Data.BasePrice,
		Amplitude: cfg.Data.Amplitude,
		Spread:    cfg.Data.Spread,
		Size:      cfg.Data.Size,
		Interval:  interval,
	})
}
