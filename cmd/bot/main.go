package main

import (
	"context"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/api"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/config"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/exchange"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/monitor"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/orchestrator"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/position"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/scheduler"
	tradesignal "github.com/hamgua/alpha-trading-bot-okx-sub001/internal/signal"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("starting alpha trading bot")

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := storage.NewSQLiteDB(cfg.Store.WarmPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sqlite store")
	}
	defer db.Close()

	hot := storage.NewQueueManagerWithDefaults()
	warm := storage.NewBarRepository(db)
	tiered := storage.NewTieredStore(hot, warm)

	okxClient := exchange.NewOKXClient(
		cfg.Exchange.APIKey,
		cfg.Exchange.Secret,
		cfg.Exchange.Password,
		cfg.Exchange.Testnet,
	)

	if err := okxClient.SetLeverage(context.Background(), cfg.Exchange.Symbol, cfg.Exchange.Leverage); err != nil {
		log.Warn().Err(err).Msg("set_leverage failed, continuing with exchange-side default")
	}

	mon := monitor.NewMonitor(cfg, exchange.AsBarFetcher(okxClient), tiered, db)
	posMgr := position.NewManager(cfg.StopPolicy.LossPct, cfg.StopPolicy.ProfitPct, cfg.StopPolicy.TolerancePct)
	orders := exchange.NewService(okxClient)

	var advisor tradesignal.Advisor = tradesignal.NewRuleAdvisor()
	if cfg.Scoring.AdvisorEndpoint != "" {
		advisor = tradesignal.NewHTTPAdvisor(cfg.Scoring.AdvisorEndpoint)
		log.Info().Str("endpoint", cfg.Scoring.AdvisorEndpoint).Msg("using http advisor")
	}

	orch := orchestrator.NewOrchestrator(cfg, mon, posMgr, okxClient, orders, advisor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch.Start(ctx)

	sched := scheduler.New(cfg.Cadence.CycleIntervalMinutes, cfg.Cadence.JitterSeconds, cfg.Cadence.FirstRunImmediate)
	go sched.Run(ctx, orch.RunCycle)

	apiCfg := &api.ServerConfig{
		Port:        cfg.API.Port,
		ReadTimeout: cfg.API.ReadTimeout,
		CORSOrigins: cfg.API.CORSOrigins,
		Symbol:      cfg.Exchange.Symbol,
		Timeframe:   cfg.Store.WorkingTimeframe,
	}
	server := api.NewServer(apiCfg, orch, tiered)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("api server error")
		}
	}()

	log.Info().
		Str("symbol", cfg.Exchange.Symbol).
		Str("apiPort", cfg.API.Port).
		Msg("alpha trading bot started")

	quit := make(chan os.Signal, 1)
	osignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	cancel()
	orch.Stop()

	if err := server.Shutdown(); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}

	log.Info().Msg("alpha trading bot stopped")
}
