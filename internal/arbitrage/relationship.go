package arbitrage

import (
	"fmt"
	"strings"
	"sync/atomic"

	"btrader/internal/orderbook"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts BUY or SELL in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrConfiguration, s)
}

// Leg is one trade of a cycle. BUY spends quote for base on the asks, SELL
// spends base for quote on the bids.
type Leg struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Side   Side   `json:"side" yaml:"side"`
}

// LegsFromParallel zips parallel symbol and side lists into legs.
func LegsFromParallel(symbols, sides []string) ([]Leg, error) {
	if len(symbols) != len(sides) {
		return nil, fmt.Errorf("%w: %d symbols for %d sides", ErrConfiguration, len(symbols), len(sides))
	}
	legs := make([]Leg, len(symbols))
	for i := range symbols {
		side, err := ParseSide(sides[i])
		if err != nil {
			return nil, err
		}
		legs[i] = Leg{Symbol: symbols[i], Side: side}
	}
	return legs, nil
}

// pair is the registry entry of one market. The book is published as an
// immutable snapshot so readers never see asks and bids from different updates.
type pair struct {
	symbol string
	step   float64
	snap   atomic.Pointer[snapshot]
}

type snapshot struct {
	ts   float64
	book orderbook.L2
}

// Relationship is a registered cycle. Legs are kept in execution order and
// point at their pairs directly.
type Relationship struct {
	name          string
	legs          []Leg
	pairs         []*pair
	feeMultiplier float64
	initialized   atomic.Bool
}

// RelationshipInfo is a read-only view of a registered relationship.
type RelationshipInfo struct {
	Name          string  `json:"name"`
	Legs          []Leg   `json:"legs"`
	FeeMultiplier float64 `json:"fee_multiplier"`
	Initialized   bool    `json:"initialized"`
}

func (r *Relationship) info() RelationshipInfo {
	return RelationshipInfo{
		Name:          r.name,
		Legs:          append([]Leg(nil), r.legs...),
		FeeMultiplier: r.feeMultiplier,
		Initialized:   r.initialized.Load(),
	}
}
