package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"

	"github.com/alexanu/nautilus-trader/internal/clock"
	"github.com/alexanu/nautilus-trader/internal/data"
	"github.com/alexanu/nautilus-trader/internal/feed"
	"github.com/alexanu/nautilus-trader/internal/identity"
	"github.com/alexanu/nautilus-trader/internal/kernel"
	"github.com/alexanu/nautilus-trader/internal/ops"
	"github.com/alexanu/nautilus-trader/internal/persist"
	"github.com/alexanu/nautilus-trader/internal/sim"
	"github.com/alexanu/nautilus-trader/internal/strategy"
	"github.com/alexanu/nautilus-trader/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config (default: CONFIG_PATH env)")
	eventLog := flag.String("event-log", "", "Event log output path (default: EVENT_LOG_PATH env)")
	riskReload := flag.Duration("risk-reload-interval", 5*time.Second, "Risk limit reload interval (0=disable)")
	queueSize := flag.Int("queue-size", 4096, "Market data queue capacity")
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

	if env.PyroscopeURL != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trading-kernel",
			ServerAddress:   env.PyroscopeURL,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	stream, err := buildStream(cfg, env)
	if err != nil {
		log.Fatalf("stream source failed: %v", err)
	}

	// No production venue adapter is configured yet, so live runs trade
	// against the paper venue. Swapping in a real adapter is a matter of
	// passing a different ExecClient here.
	paper, err := sim.NewPaperClient(clock.NewWall(), cfg.Registry)
	if err != nil {
		log.Fatalf("paper venue failed: %v", err)
	}

	k, err := kernel.NewLive(cfg, kernel.Options{
		EventLogPath: *eventLog,
		QueueSize:    *queueSize,
		Stream:       stream,
		ExecClient:   paper,
	})
	if err != nil {
		log.Fatalf("kernel build failed: %v", err)
	}
	paper.Bind(k.OnExecutionReport)
	if _, err := k.Bus().Subscribe("data.quotes.*", paper.OnEvent); err != nil {
		log.Fatalf("paper venue subscribe failed: %v", err)
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

	if env.DatabaseDSN != "" {
		store, err := persist.NewStore(conn.Option{ConnString: env.DatabaseDSN}, k.Session(), 128)
		if err != nil {
			log.Fatalf("persist store failed: %v", err)
		}
		if err := store.Attach(k.Bus()); err != nil {
			log.Fatalf("persist attach failed: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("persist close: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *riskReload > 0 {
		go ops.WatchRisk(ctx, *configPath, *riskReload, k.Risk().UpdateConfig)
	}

	if err := k.Run(ctx); err != nil {
		log.Fatalf("live run failed: %v", err)
	}
	if err := k.Shutdown(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Printf("session=%s stopped", k.Session())
}

func buildStream(cfg ops.Loaded, env ops.Env) (data.StreamClient, error) {
	if cfg.Data.Source == "websocket" {
		symbols := make([]string, 0, cfg.Registry.Count())
		cfg.Registry.Each(func(inst identity.Instrument) {
			symbols = append(symbols, inst.Symbol)
		})
		return feed.NewClient(feed.Config{
			URL:     env.FeedURL,
			Symbols: symbols,
			Backoff: feed.DefaultBackoff(),
		})
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
