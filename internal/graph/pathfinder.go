// Package graph finds triangular cycles that start and end in one asset.
package graph

import (
	"fmt"

	"btrader/internal/arbitrage"
)

// Market is one tradable symbol. LotStep is the LOT_SIZE step of the base asset.
type Market struct {
	Symbol  string  `yaml:"symbol" json:"symbol"`
	Base    string  `yaml:"base" json:"base"`
	Quote   string  `yaml:"quote" json:"quote"`
	LotStep float64 `yaml:"lot_step" json:"lot_step"`
}

func (m Market) HasAsset(asset string) bool { return asset == m.Base || asset == m.Quote }

// Other returns the asset on the opposite side of asset, or "" if m does not trade it.
func (m Market) Other(asset string) string {
	switch asset {
	case m.Quote:
		return m.Base
	case m.Base:
		return m.Quote
	}
	return ""
}

// Connects reports whether m trades a against b in either orientation.
func (m Market) Connects(a, b string) bool {
	return (m.Base == a && m.Quote == b) || (m.Base == b && m.Quote == a)
}

func (m Market) Text() string { return m.Base + "/" + m.Quote }

// Triangle is a three-leg cycle base -> X -> Y -> base.
type Triangle struct {
	Base          string
	Markets       [3]Market
	Sides         [3]arbitrage.Side
	Intermediates [2]string
}

// NewTriangle derives the side of every leg: holding a market's base asset
// means selling on its bids, anything else means buying on its asks.
func NewTriangle(base string, start, middle, end Market) Triangle {
	t := Triangle{Base: base, Markets: [3]Market{start, middle, end}}
	holding := base
	for i, m := range t.Markets {
		if holding == m.Base {
			t.Sides[i] = arbitrage.Sell
			holding = m.Quote
		} else {
			t.Sides[i] = arbitrage.Buy
			holding = m.Base
		}
		if i < 2 {
			t.Intermediates[i] = holding
		}
	}
	return t
}

// Name is the registry key of the triangle.
func (t Triangle) Name() string {
	return fmt.Sprintf("%s -> %s -> %s", t.Markets[0].Symbol, t.Markets[1].Symbol, t.Markets[2].Symbol)
}

// Text is the asset path, e.g. "BTC -> BNB -> ETH".
func (t Triangle) Text() string {
	return fmt.Sprintf("%s -> %s -> %s", t.Base, t.Intermediates[0], t.Intermediates[1])
}

func (t Triangle) Describe() string {
	return fmt.Sprintf("%s from %s, then %s from %s and finally %s from %s",
		t.Sides[0], t.Markets[0].Text(),
		t.Sides[1], t.Markets[1].Text(),
		t.Sides[2], t.Markets[2].Text())
}

func (t Triangle) Legs() []arbitrage.Leg {
	legs := make([]arbitrage.Leg, len(t.Markets))
	for i, m := range t.Markets {
		legs[i] = arbitrage.Leg{Symbol: m.Symbol, Side: t.Sides[i]}
	}
	return legs
}

// Triangles pairs every two markets that trade base and looks for a market
// closing the gap between their other assets. Markets are scanned in the
// order given, so the output is deterministic.
func Triangles(base string, markets []Market) []Triangle {
	var starters []Market
	for _, m := range markets {
		if m.HasAsset(base) {
			starters = append(starters, m)
		}
	}
	var out []Triangle
	for i := 0; i < len(starters); i++ {
		for j := i + 1; j < len(starters); j++ {
			a := starters[i].Other(base)
			b := starters[j].Other(base)
			if a == b {
				continue
			}
			for _, middle := range markets {
				if middle.Connects(a, b) {
					out = append(out, NewTriangle(base, starters[i], middle, starters[j]))
					break
				}
			}
		}
	}
	return out
}

// Symbols returns every distinct symbol used by the triangles, first use first.
func Symbols(triangles []Triangle) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range triangles {
		for _, m := range t.Markets {
			if _, ok := seen[m.Symbol]; ok {
				continue
			}
			seen[m.Symbol] = struct{}{}
			out = append(out, m.Symbol)
		}
	}
	return out
}
