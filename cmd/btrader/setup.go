package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"btrader/internal/api/rest"
	"btrader/internal/arbitrage"
	"btrader/internal/config"
	"btrader/internal/graph"
	"btrader/internal/infra/health"
	"btrader/internal/infra/http/middleware"
	"btrader/internal/infra/metrics"
	"btrader/internal/infra/netutil"
	"btrader/internal/infra/version"
	"btrader/internal/journal"
	"btrader/internal/notify"
	"btrader/internal/orderbook"
	"btrader/internal/publish"
)

type marketLister interface {
	ListMarkets(ctx context.Context) ([]graph.Market, error)
}

func buildEngine(cfg config.Config) (*arbitrage.Engine, error) {
	policy, err := orderbook.ParseDepthPolicy(cfg.Engine.DepthPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", arbitrage.ErrConfiguration, err)
	}
	grid, err := cfg.Grid()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", arbitrage.ErrConfiguration, err)
	}
	return arbitrage.New(arbitrage.Options{
		FeePercent: cfg.Engine.FeePercent,
		FeeLegs:    cfg.Engine.FeeLegs,
		Grid:       grid,
		Policy:     policy,
		NoQuantize: !cfg.Engine.Quantize,
	})
}

// loadMarkets returns the configured markets, or the exchange listing when
// discovery is on.
func loadMarkets(ctx context.Context, cfg config.Config, lister marketLister) ([]graph.Market, error) {
	if cfg.Trading.Discover {
		if lister == nil {
			return nil, errors.New("market discovery needs an exchange adapter")
		}
		return lister.ListMarkets(ctx)
	}
	out := make([]graph.Market, 0, len(cfg.Trading.Markets))
	for _, m := range cfg.Trading.Markets {
		out = append(out, graph.Market{Symbol: m.Symbol, Base: m.Base, Quote: m.Quote, LotStep: m.LotStep})
	}
	return out, nil
}

// registerRelationships registers the explicit relationships of the config,
// or every triangle through the investment base when none are listed. It
// returns the registered symbols.
func registerRelationships(eng *arbitrage.Engine, cfg config.Config, markets []graph.Market, logger zerolog.Logger) ([]string, error) {
	bySymbol := make(map[string]graph.Market, len(markets))
	for _, m := range markets {
		bySymbol[m.Symbol] = m
	}
	var symbols []string
	registered := make(map[string]bool)
	registerPair := func(symbol string) error {
		if registered[symbol] {
			return nil
		}
		m, ok := bySymbol[symbol]
		if !ok {
			return fmt.Errorf("%w: no market %s", arbitrage.ErrConfiguration, symbol)
		}
		if err := eng.RegisterPair(symbol, m.LotStep); err != nil {
			return err
		}
		registered[symbol] = true
		symbols = append(symbols, symbol)
		return nil
	}

	if len(cfg.Trading.Relationships) > 0 {
		for _, r := range cfg.Trading.Relationships {
			legs, err := arbitrage.LegsFromParallel(r.Symbols, r.Sides)
			if err != nil {
				return nil, fmt.Errorf("relationship %s: %w", r.Name, err)
			}
			for _, l := range legs {
				if err := registerPair(l.Symbol); err != nil {
					return nil, err
				}
			}
			if err := eng.RegisterRelationship(r.Name, legs); err != nil {
				return nil, err
			}
		}
		return symbols, nil
	}

	tris := graph.Triangles(cfg.Trading.InvestmentBase, markets)
	if len(tris) == 0 {
		return nil, fmt.Errorf("%w: no triangles through %s", arbitrage.ErrConfiguration, cfg.Trading.InvestmentBase)
	}
	for _, s := range graph.Symbols(tris) {
		if err := registerPair(s); err != nil {
			return nil, err
		}
	}
	for _, t := range tris {
		if err := eng.RegisterRelationship(t.Name(), t.Legs()); err != nil {
			return nil, err
		}
		logger.Debug().Str("relationship", t.Name()).Str("path", t.Text()).Msg(t.Describe())
	}
	return symbols, nil
}

// buildSinks opens the journal, publisher and notifier enabled in the config. The
// returned closers must be closed on shutdown.
func buildSinks(ctx context.Context, cfg config.Config, logger zerolog.Logger) ([]arbitrage.Sink, rest.History, []io.Closer, error) {
	var (
		sinks   []arbitrage.Sink
		history rest.History
		closers []io.Closer
	)
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, j)
		history = j
		closers = append(closers, j)
	}
	if cfg.Redis.Enabled {
		p := publish.New(cfg, logger)
		if err := p.Ping(ctx); err != nil {
			// deals are still journaled and logged
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
		}
		sinks = append(sinks, p)
		closers = append(closers, p)
	}
	if cfg.Telegram.Enabled {
		tg, err := notify.New(cfg, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, nil, nil, err
		}
		sinks = append(sinks, tg)
		closers = append(closers, tg)
	}
	return sinks, history, closers, nil
}

func anyInitialized(eng *arbitrage.Engine) func() bool {
	return func() bool {
		for _, n := range eng.Relationships() {
			if info, ok := eng.Relationship(n); ok && info.Initialized {
				return true
			}
		}
		return false
	}
}

func newHTTPHandler(cfg config.Config, logger zerolog.Logger, registry *prometheus.Registry, eng *arbitrage.Engine, history rest.History) (http.Handler, error) {
	mux := http.NewServeMux()
	// admin endpoints (metrics, pprof) behind IP allowlist gate
	adminCIDRs, err := netutil.ParseCIDRs(cfg.Server.AdminAllowCIDRs)
	if err != nil {
		return nil, err
	}
	mux.Handle("/metrics", middleware.AdminGate(adminCIDRs, metrics.Handler(registry)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.ReadyWhen(anyInitialized(eng)))
	mux.HandleFunc("/version", version.Handler)
	if cfg.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Trace)))
	}
	mux.Handle("/", rest.New(eng, history, logger).Handler())

	// wrap mux with middlewares (request id and logging)
	return middleware.Chain(mux, middleware.RequestID, middleware.Logger(logger)), nil
}
