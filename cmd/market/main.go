package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/cdamarket/params"
	"github.com/uhyunpark/cdamarket/pkg/api"
	"github.com/uhyunpark/cdamarket/pkg/app/agent"
	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/storage"
	"github.com/uhyunpark/cdamarket/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	level, err := util.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	var logger *zap.Logger
	if cfg.Node.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile, level)
	} else {
		logger, err = util.NewLogger(level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "level", level.String())

	// ---- Storage ----
	var store storage.Store
	if cfg.Node.DataDir != "" {
		ps, err := storage.NewPebbleStore(cfg.Node.DataDir, util.RealClock{})
		if err != nil {
			sugar.Fatalw("storage_open_failed", "dir", cfg.Node.DataDir, "err", err)
		}
		store = ps
	} else {
		store = storage.NewInMemoryStore()
	}
	defer store.Close()

	// ---- Market ----
	pricing, err := market.ParsePricing(cfg.Market.Pricing, cfg.Market.PricingK)
	if err != nil {
		sugar.Fatalw("bad_pricing_policy", "err", err)
	}
	funds, err := decimal.NewFromString(cfg.Market.OpeningFunds)
	if err != nil {
		sugar.Fatalw("bad_opening_funds", "value", cfg.Market.OpeningFunds, "err", err)
	}

	pop, err := agent.NewPopulation(agent.PopulationConfig{
		Buyers:   cfg.Agents.Buyers,
		Sellers:  cfg.Agents.Sellers,
		Units:    cfg.Agents.Units,
		MinPrice: cfg.Agents.MinPrice,
		MaxPrice: cfg.Agents.MaxPrice,
		Seed:     cfg.Agents.Seed,
	})
	if err != nil {
		sugar.Fatalw("bad_agent_config", "err", err)
	}

	sim := market.NewSimulation(market.Config{
		ID:              cfg.Market.ID,
		Closing:         closingCondition(cfg.Market),
		DayEnding:       dayEndingCondition(cfg.Market),
		Pricing:         pricing,
		OpeningFunds:    funds,
		CheckInvariants: cfg.Market.CheckIntegrity,
		Checkpointer:    store,
		Logger:          sugar,
	}, pop.Traders()...)

	// Resume from the last checkpoint of an unfinished run
	if snap, ok, err := store.Latest(cfg.Market.ID); err != nil {
		sugar.Fatalw("checkpoint_load_failed", "err", err)
	} else if ok && !snap.Closed {
		if err := sim.Restore(snap); err != nil {
			sugar.Fatalw("checkpoint_restore_failed", "err", err)
		}
	}

	registry := market.NewRegistry()
	if err := registry.Register(sim); err != nil {
		sugar.Fatalw("market_register_failed", "err", err)
	}

	// ---- API Server ----
	apiServer := api.NewServer(registry, store, sugar)
	sim.Subscribe(apiServer.Listener())
	sim.OnRound = apiServer.Publish

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("market_starting",
		"market", cfg.Market.ID,
		"buyers", cfg.Agents.Buyers,
		"sellers", cfg.Agents.Sellers,
		"pricing", pricing.String(),
		"round_interval_ms", cfg.Node.RoundInterval.Milliseconds())

	err = sim.Run(ctx, cfg.Node.RoundInterval, util.RealClock{})
	if err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("simulation_failed", "err", err)
	}

	snap := sim.Snapshot()
	sugar.Infow("market_finished",
		"closed", snap.Closed,
		"age", snap.Age,
		"trades", snap.Trades,
		"volume", snap.Volume,
		"surplus", pop.Surplus(),
		"efficiency", pop.Efficiency())

	// Keep serving the final state until interrupted
	if err == nil {
		<-ctx.Done()
	}
}

func closingCondition(m params.Market) market.Condition {
	var conds market.Any
	if m.MaxRounds > 0 {
		conds = append(conds, market.MaxRounds{N: m.MaxRounds})
	}
	if m.MaxDays > 0 {
		conds = append(conds, market.MaxDays{N: m.MaxDays})
	}
	if len(conds) == 0 {
		return market.Never{}
	}
	return conds
}

func dayEndingCondition(m params.Market) market.Condition {
	if m.RoundsPerDay > 0 {
		return market.RoundsPerDay{N: m.RoundsPerDay}
	}
	return market.Never{}
}
