package arbitrage

// NotReady is the profit reported while a relationship still waits for its
// first books.
const NotReady = -1.0

// TradeAction is one leg of a simulated deal. Input is what the leg was handed
// (quote for BUY, base for SELL) and Quantity what the walk produced.
type TradeAction struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Input    float64 `json:"input"`
	Quantity float64 `json:"quantity"`
}

// Deal is the best candidate of one evaluation. Timestamp is the oldest book
// timestamp seen during the whole grid search.
type Deal struct {
	Relationship string        `json:"relationship"`
	Actions      []TradeAction `json:"actions"`
	Profit       float64       `json:"profit"`
	Timestamp    float64       `json:"timestamp"`
}

// Ready reports whether the deal came out of a search rather than the warm-up sentinel.
func (d Deal) Ready() bool { return len(d.Actions) > 0 }

func notReady(name string) Deal {
	return Deal{Relationship: name, Actions: []TradeAction{}, Profit: NotReady}
}
