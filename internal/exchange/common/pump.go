package common

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"btrader/internal/arbitrage"
	"btrader/internal/infra/metrics"
)

// Pump applies updates from in to ing until ctx is done or in is closed.
// Rejected updates are counted and logged; they never stop the pump.
func Pump(ctx context.Context, logger zerolog.Logger, source string, in <-chan DepthUpdate, ing Ingestor) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-in:
			if !ok {
				return nil
			}
			if err := ing.IngestUpdate(u.Symbol, u.Timestamp, u.Asks, u.Bids); err != nil {
				reason := "invalid"
				if errors.Is(err, arbitrage.ErrNotFound) {
					reason = "unknown_symbol"
				}
				metrics.BookRejectsTotal.WithLabelValues(source, reason).Inc()
				logger.Debug().Err(err).Str("symbol", u.Symbol).Str("source", source).Msg("book update rejected")
				continue
			}
			metrics.BookUpdatesTotal.WithLabelValues(source).Inc()
		}
	}
}

// Prime loads a REST snapshot for each symbol so relationships can initialize
// before the first stream frame.
func Prime(ctx context.Context, logger zerolog.Logger, ex ExchangeAdapter, symbols []string, depth int, ing Ingestor) int {
	loaded := 0
	for _, s := range symbols {
		if ctx.Err() != nil {
			break
		}
		u, err := ex.Snapshot(ctx, s, depth)
		if err != nil {
			metrics.APIErrorsTotal.WithLabelValues(ex.Name(), "depth").Inc()
			logger.Warn().Err(err).Str("symbol", s).Msg("depth snapshot failed")
			continue
		}
		if err := ing.IngestUpdate(u.Symbol, u.Timestamp, u.Asks, u.Bids); err != nil {
			metrics.BookRejectsTotal.WithLabelValues(ex.Name(), "invalid").Inc()
			logger.Warn().Err(err).Str("symbol", s).Msg("depth snapshot rejected")
			continue
		}
		metrics.BookUpdatesTotal.WithLabelValues(ex.Name()).Inc()
		loaded++
	}
	return loaded
}
