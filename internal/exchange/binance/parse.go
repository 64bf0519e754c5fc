package binance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"btrader/internal/exchange/common"
	"btrader/internal/orderbook"
)

// ParseDecimal converts an exchange decimal string to float64.
func ParseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

// ParseLevels converts [price, qty] string pairs, preserving their order.
func ParseLevels(raw [][2]string) ([]orderbook.Level, error) {
	out := make([]orderbook.Level, 0, len(raw))
	for i, r := range raw {
		p, err := ParseDecimal(r[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		q, err := ParseDecimal(r[1])
		if err != nil {
			return nil, fmt.Errorf("level %d qty: %w", i, err)
		}
		out = append(out, orderbook.Level{Price: p, Qty: q})
	}
	return out, nil
}

func toUpdate(symbol string, ts float64, asks, bids [][2]string) (common.DepthUpdate, error) {
	a, err := ParseLevels(asks)
	if err != nil {
		return common.DepthUpdate{}, fmt.Errorf("asks: %w", err)
	}
	b, err := ParseLevels(bids)
	if err != nil {
		return common.DepthUpdate{}, fmt.Errorf("bids: %w", err)
	}
	return common.DepthUpdate{Symbol: symbol, Timestamp: ts, Asks: a, Bids: b}, nil
}
