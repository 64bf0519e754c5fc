package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btrader/internal/arbitrage"
	"btrader/internal/infra/metrics"
	"btrader/internal/orderbook"
	"btrader/internal/strategy"
)

// CSV-based replay of top-of-book quotes through the engine.
// CSV format: ts,symbol,ask_price,ask_qty,bid_price,bid_qty (ts in ms).
// A header row is skipped.

type Options struct {
	ProfitThresholdPct float64
	MaxAgeMs           float64
}

type Summary struct {
	Rows             int     `json:"rows"`
	Skipped          int     `json:"skipped"`
	Evaluations      int     `json:"evaluations"`
	Accepted         int     `json:"accepted"`
	BestProfit       float64 `json:"best_profit"`
	BestRelationship string  `json:"best_relationship"`
}

// Replay feeds every row to eng as a single-level book and evaluates every
// relationship after each row, using the row timestamp as the clock.
func Replay(r io.Reader, eng *arbitrage.Engine, opts Options) (Summary, error) {
	sum := Summary{BestProfit: arbitrage.NotReady}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && len(rec) > 0 && strings.EqualFold(rec[0], "ts") {
			continue
		}
		sum.Rows++
		ts, symbol, asks, bids, err := parseRow(rec)
		if err != nil {
			sum.Skipped++
			continue
		}
		if err := eng.IngestUpdate(symbol, ts, asks, bids); err != nil {
			sum.Skipped++
			continue
		}
		for _, name := range eng.Relationships() {
			d, err := eng.Evaluate(name)
			if err != nil || !d.Ready() {
				continue
			}
			sum.Evaluations++
			metrics.ProfitBps.Observe(strategy.NetSpreadBps(d.Profit))
			if d.Profit > sum.BestProfit {
				sum.BestProfit = d.Profit
				sum.BestRelationship = name
			}
			if strategy.Accept(d.Profit, d.Timestamp, opts.ProfitThresholdPct, opts.MaxAgeMs, ts) {
				sum.Accepted++
			}
		}
	}
	return sum, nil
}

func parseRow(rec []string) (ts float64, symbol string, asks, bids []orderbook.Level, err error) {
	if len(rec) < 6 {
		return 0, "", nil, nil, fmt.Errorf("expected 6 fields, got %d", len(rec))
	}
	var v [5]float64
	for i, idx := range []int{0, 2, 3, 4, 5} {
		d, err := decimal.NewFromString(strings.TrimSpace(rec[idx]))
		if err != nil {
			return 0, "", nil, nil, err
		}
		v[i] = d.InexactFloat64()
	}
	asks = []orderbook.Level{{Price: v[1], Qty: v[2]}}
	bids = []orderbook.Level{{Price: v[3], Qty: v[4]}}
	return v[0], strings.TrimSpace(rec[1]), asks, bids, nil
}

// RunCSV replays the file at path and logs the summary.
func RunCSV(path string, eng *arbitrage.Engine, opts Options, logger zerolog.Logger) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()
	sum, err := Replay(f, eng, opts)
	if err != nil {
		return sum, err
	}
	logger.Info().
		Int("rows", sum.Rows).
		Int("skipped", sum.Skipped).
		Int("evaluations", sum.Evaluations).
		Int("accepted", sum.Accepted).
		Float64("best_profit_bps", strategy.NetSpreadBps(sum.BestProfit)).
		Str("best_relationship", sum.BestRelationship).
		Msg("backtest finished")
	return sum, nil
}
