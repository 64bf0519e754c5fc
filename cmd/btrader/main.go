package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"btrader/internal/arbitrage"
	"btrader/internal/backtest"
	"btrader/internal/config"
	"btrader/internal/exchange/binance"
	"btrader/internal/exchange/common"
	"btrader/internal/infra/health"
	"btrader/internal/infra/log"
	"btrader/internal/infra/metrics"
	"btrader/internal/infra/runner"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	logger := log.NewLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	registry := metrics.Init(logger)

	eng, err := buildEngine(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine options")
	}

	var adapter *binance.Adapter
	if cfg.Feed.Enabled || cfg.Trading.Discover {
		adapter = binance.New(cfg, logger)
	}
	var lister marketLister
	if adapter != nil {
		lister = adapter
	}
	listCtx, cancelList := context.WithTimeout(ctx, 30*time.Second)
	markets, err := loadMarkets(listCtx, cfg, lister)
	cancelList()
	if err != nil {
		logger.Fatal().Err(err).Msg("load markets")
	}
	symbols, err := registerRelationships(eng, cfg, markets, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("register relationships")
	}
	logger.Info().Int("pairs", len(symbols)).Int("relationships", len(eng.Relationships())).Msg("relationships registered")

	// offline replay instead of a live run
	if path := os.Getenv("BTRADER_BACKTEST_CSV"); path != "" {
		opts := backtest.Options{ProfitThresholdPct: cfg.Trading.ProfitThreshold, MaxAgeMs: cfg.Trading.AgeThresholdMs}
		if _, err := backtest.RunCSV(path, eng, opts, logger); err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("backtest failed")
		}
		return
	}

	sinks, history, closers, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("deal sinks")
	}
	defer closeAll(closers, logger)

	handler, err := newHTTPHandler(cfg, logger, registry, eng, history)
	if err != nil {
		logger.Fatal().Err(err).Msg("http handler")
	}
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().Str("base", cfg.Trading.InvestmentBase).Str("addr", cfg.Server.Addr).Msg("btrader started")

	g := &runner.Group{}
	if cfg.Feed.Enabled {
		updates := make(chan common.DepthUpdate, 4096)
		loaded := common.Prime(ctx, logger, adapter, symbols, cfg.Feed.Depth, eng)
		logger.Info().Int("books", loaded).Msg("depth snapshots loaded")
		g.Go(ctx, func(ctx context.Context) error { return adapter.Stream(ctx, symbols, updates) })
		g.Go(ctx, func(ctx context.Context) error {
			return common.Pump(ctx, logger, adapter.Name(), updates, eng)
		})
	}
	scanner := arbitrage.NewScanner(eng, arbitrage.ScannerOptions{
		Interval:           time.Duration(cfg.Trading.ScanIntervalMs) * time.Millisecond,
		ReportEvery:        time.Duration(cfg.Trading.ReportSeconds) * time.Second,
		ProfitThresholdPct: cfg.Trading.ProfitThreshold,
		MaxAgeMs:           cfg.Trading.AgeThresholdMs,
	}, logger, sinks...)
	workerErrCh := g.Go(ctx, scanner.Run)

	// mark ready after initialization completes
	health.SetReady(true)

	// Wait for termination signals or worker error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
	case err := <-workerErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("worker error")
		}
	}

	// mark not ready before shutdown
	health.SetReady(false)
	cancel()
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker error")
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
}

func closeAll(closers []io.Closer, logger log.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}
}
