package slippage

import "btrader/internal/orderbook"

// Unfillable is returned when the book cannot absorb the requested size.
const Unfillable = 1e9

// IntegralBps walks L2 depth for qty base units and returns the slippage of
// the average fill price relative to ref, in bps.
func IntegralBps(book orderbook.L2, qty float64, isBuy bool, ref float64) float64 {
	if qty <= 0 || ref <= 0 {
		return 0
	}
	levels := book.Bids
	if isBuy {
		levels = book.Asks
	}
	var cost, filled float64
	for _, lvl := range levels {
		use := min(qty-filled, lvl.Qty)
		if use <= 0 {
			break
		}
		cost += use * lvl.Price
		filled += use
		if filled >= qty {
			break
		}
	}
	if filled < qty {
		return Unfillable
	}
	avg := cost / qty
	var diff float64
	if isBuy {
		diff = avg - ref
	} else {
		diff = ref - avg
	}
	return (diff / ref) * 10000.0
}

// LegBps measures slippage against the best level of the side being hit.
func LegBps(book orderbook.L2, qty float64, isBuy bool) float64 {
	levels := book.Bids
	if isBuy {
		levels = book.Asks
	}
	if len(levels) == 0 {
		return Unfillable
	}
	return IntegralBps(book, qty, isBuy, levels[0].Price)
}
