package common

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"btrader/internal/arbitrage"
	"btrader/internal/graph"
	"btrader/internal/orderbook"
)

type recordingIngestor struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingIngestor) IngestUpdate(symbol string, ts float64, asks, bids []orderbook.Level) error {
	if symbol == "BAD" {
		return fmt.Errorf("%w: %s", arbitrage.ErrNotFound, symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, symbol)
	return nil
}

func TestPumpSkipsRejectedUpdates(t *testing.T) {
	in := make(chan DepthUpdate, 3)
	in <- DepthUpdate{Symbol: "ETHBTC"}
	in <- DepthUpdate{Symbol: "BAD"}
	in <- DepthUpdate{Symbol: "BNBBTC"}
	close(in)

	ing := &recordingIngestor{}
	require.NoError(t, Pump(context.Background(), zerolog.Nop(), "test", in, ing))
	require.Equal(t, []string{"ETHBTC", "BNBBTC"}, ing.seen)
}

func TestPumpStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, Pump(ctx, zerolog.Nop(), "test", make(chan DepthUpdate), &recordingIngestor{}))
}

type snapshotAdapter struct{}

func (snapshotAdapter) Name() string { return "fake" }
func (snapshotAdapter) ListMarkets(ctx context.Context) ([]graph.Market, error) {
	return nil, nil
}
func (snapshotAdapter) Snapshot(ctx context.Context, symbol string, depth int) (DepthUpdate, error) {
	if symbol == "DOWN" {
		return DepthUpdate{}, errors.New("unavailable")
	}
	return DepthUpdate{Symbol: symbol, Timestamp: 1}, nil
}

func TestPrime(t *testing.T) {
	ing := &recordingIngestor{}
	n := Prime(context.Background(), zerolog.Nop(), snapshotAdapter{}, []string{"ETHBTC", "DOWN", "BAD", "BNBETH"}, 5, ing)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"ETHBTC", "BNBETH"}, ing.seen)
}
