package common

import (
	"context"

	"btrader/internal/graph"
	"btrader/internal/orderbook"
)

// DepthUpdate is a full top-of-book replacement for one symbol. Timestamp is
// in milliseconds since the epoch.
type DepthUpdate struct {
	Symbol    string
	Timestamp float64
	Asks      []orderbook.Level
	Bids      []orderbook.Level
}

type ExchangeAdapter interface {
	Name() string
	// ListMarkets returns the tradable markets with their lot steps.
	ListMarkets(ctx context.Context) ([]graph.Market, error)
	// Snapshot fetches a depth-limited book over REST.
	Snapshot(ctx context.Context, symbol string, depth int) (DepthUpdate, error)
}

// Optional capability: live depth feed. Stream blocks until ctx is done,
// reconnecting as needed, and delivers every book on out.
type DepthStreamer interface {
	Stream(ctx context.Context, symbols []string, out chan<- DepthUpdate) error
}

// Ingestor is the book sink fed by adapters, satisfied by *arbitrage.Engine.
type Ingestor interface {
	IngestUpdate(symbol string, timestamp float64, asks, bids []orderbook.Level) error
}
