package orderbook

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DepthPolicy selects how much liquidity a walk removes from its running
// remainder when it takes a whole level.
type DepthPolicy int

const (
	// Approximate subtracts the level's full size even when quantization
	// left part of it unfilled. This is the default.
	Approximate DepthPolicy = iota
	// Exact subtracts only what was actually filled.
	Exact
)

func (p DepthPolicy) String() string {
	if p == Exact {
		return "exact"
	}
	return "approximate"
}

// ParseDepthPolicy accepts "approximate" (or "") and "exact".
func ParseDepthPolicy(s string) (DepthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "approximate":
		return Approximate, nil
	case "exact":
		return Exact, nil
	}
	return Approximate, fmt.Errorf("unknown depth policy %q", s)
}

// Quantize rounds q down to a multiple of step. The division runs in decimal
// so that values like 0.3/0.1 are not floored to 2 by binary rounding.
func Quantize(q, step float64) float64 {
	// decimal cannot represent NaN or Inf
	if !(q > 0) || math.IsInf(q, 1) {
		return 0
	}
	if !(step > 0) {
		return q
	}
	dq := decimal.NewFromFloat(q)
	ds := decimal.NewFromFloat(step)
	out, _ := dq.Div(ds).Floor().Mul(ds).Float64()
	// Div rounds at DivisionPrecision; never hand back more than q.
	if out > q {
		out -= step
	}
	if out < 0 {
		return 0
	}
	return out
}

// Walker simulates market orders against one side of a book.
type Walker struct {
	Policy DepthPolicy
	// NoQuantize disables lot-step rounding.
	NoQuantize bool
}

func (w Walker) quantize(q, step float64) float64 {
	if w.NoQuantize {
		if q < 0 {
			return 0
		}
		return q
	}
	return Quantize(q, step)
}

// Buy spends quote against asks and returns the base amount acquired.
func (w Walker) Buy(quote float64, asks []Level, step float64) float64 {
	var filled float64
	remaining := quote
	for _, lvl := range asks {
		if remaining <= 0 {
			break
		}
		notional := lvl.Price * lvl.Qty
		if notional >= remaining {
			filled += w.quantize(remaining/lvl.Price, step)
			break
		}
		got := w.quantize(lvl.Qty, step)
		filled += got
		if w.Policy == Exact {
			remaining -= got * lvl.Price
		} else {
			remaining -= notional
		}
	}
	return filled
}

// Sell offers base against bids and returns the quote amount received.
func (w Walker) Sell(base float64, bids []Level, step float64) float64 {
	var filled float64
	remaining := base
	for _, lvl := range bids {
		if remaining <= 0 {
			break
		}
		if lvl.Qty >= remaining {
			filled += w.quantize(remaining, step) * lvl.Price
			break
		}
		got := w.quantize(lvl.Qty, step)
		filled += got * lvl.Price
		if w.Policy == Exact {
			remaining -= got
		} else {
			remaining -= lvl.Qty
		}
	}
	return filled
}

// WalkBuy is Walker{}.Buy with the default approximate policy.
func WalkBuy(quote float64, asks []Level, step float64) float64 {
	return Walker{}.Buy(quote, asks, step)
}

// WalkSell is Walker{}.Sell with the default approximate policy.
func WalkSell(base float64, bids []Level, step float64) float64 {
	return Walker{}.Sell(base, bids, step)
}
