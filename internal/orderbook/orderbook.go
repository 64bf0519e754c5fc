package orderbook

import "math"

type Level struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// L2 holds both sides of a book. Callers supply each side best price first;
// nothing in this package sorts.
type L2 struct {
	Bids []Level // sorted desc by price
	Asks []Level // sorted asc by price
}

// Valid reports whether every level has a positive finite price and a
// non-negative finite quantity.
func (b L2) Valid() bool {
	return validSide(b.Asks) && validSide(b.Bids)
}

func validSide(levels []Level) bool {
	for _, lvl := range levels {
		// negated comparisons also reject NaN
		if !(lvl.Price > 0) || !(lvl.Qty >= 0) {
			return false
		}
		if math.IsInf(lvl.Price, 0) || math.IsInf(lvl.Qty, 0) {
			return false
		}
	}
	return true
}

// Clone copies both sides so the result shares no backing arrays with b.
func (b L2) Clone() L2 {
	return L2{
		Bids: append([]Level(nil), b.Bids...),
		Asks: append([]Level(nil), b.Asks...),
	}
}
