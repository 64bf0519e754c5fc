package arbitrage

import (
	"fmt"
	"math"
	"sync"

	"btrader/internal/latency"
	"btrader/internal/orderbook"
)

// Options fixes the search parameters of an Engine for its whole lifetime.
type Options struct {
	// FeePercent is the taker fee charged on every leg, in [0, 100).
	FeePercent float64
	// FeeLegs pins the fee exponent. Zero uses each relationship's own leg count.
	FeeLegs int
	// Grid lists the starting quantities searched, in order.
	Grid []float64
	// Policy selects the depth accounting of the order book walk.
	Policy orderbook.DepthPolicy
	// NoQuantize disables lot-step rounding.
	NoQuantize bool
}

// Engine owns the pair and relationship registries and runs the grid search.
// All methods are safe for concurrent use.
type Engine struct {
	fee    float64
	legs   int
	grid   []float64
	walker orderbook.Walker

	mu    sync.RWMutex
	pairs map[string]*pair
	rels  map[string]*Relationship
	order []string

	ages *latency.Window
}

func New(opts Options) (*Engine, error) {
	if !(opts.FeePercent >= 0 && opts.FeePercent < 100) {
		return nil, fmt.Errorf("%w: fee percent %v outside [0,100)", ErrConfiguration, opts.FeePercent)
	}
	if opts.FeeLegs < 0 {
		return nil, fmt.Errorf("%w: negative fee legs %d", ErrConfiguration, opts.FeeLegs)
	}
	if len(opts.Grid) == 0 {
		return nil, fmt.Errorf("%w: empty quantity grid", ErrConfiguration)
	}
	for i, q := range opts.Grid {
		if !(q > 0) || math.IsInf(q, 1) {
			return nil, fmt.Errorf("%w: grid[%d]=%v must be positive", ErrConfiguration, i, q)
		}
	}
	return &Engine{
		fee:    opts.FeePercent,
		legs:   opts.FeeLegs,
		grid:   append([]float64(nil), opts.Grid...),
		walker: orderbook.Walker{Policy: opts.Policy, NoQuantize: opts.NoQuantize},
		pairs:  make(map[string]*pair),
		rels:   make(map[string]*Relationship),
		ages:   latency.NewWindow(0),
	}, nil
}

// Grid returns a copy of the quantity grid.
func (e *Engine) Grid() []float64 { return append([]float64(nil), e.grid...) }

// RegisterPair adds an uninitialized pair. Every pair also widens the latency
// window by one sample.
func (e *Engine) RegisterPair(symbol string, lotStep float64) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrConfiguration)
	}
	if !(lotStep > 0) || math.IsInf(lotStep, 1) {
		return fmt.Errorf("%w: lot step %v for %s", ErrConfiguration, lotStep, symbol)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pairs[symbol]; ok {
		return fmt.Errorf("%w: pair %s already registered", ErrConfiguration, symbol)
	}
	e.pairs[symbol] = &pair{symbol: symbol, step: lotStep}
	e.ages.Grow(1)
	return nil
}

// RegisterRelationship adds a cycle. Legs run in the order given and every
// symbol must already be registered.
func (e *Engine) RegisterRelationship(name string, legs []Leg) error {
	if name == "" {
		return fmt.Errorf("%w: empty relationship name", ErrConfiguration)
	}
	if len(legs) == 0 {
		return fmt.Errorf("%w: relationship %s has no legs", ErrConfiguration, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rels[name]; ok {
		return fmt.Errorf("%w: relationship %s already registered", ErrConfiguration, name)
	}
	rel := &Relationship{
		name:  name,
		legs:  make([]Leg, len(legs)),
		pairs: make([]*pair, len(legs)),
	}
	for i, leg := range legs {
		if leg.Side != Buy && leg.Side != Sell {
			return fmt.Errorf("%w: leg %d of %s has side %q", ErrConfiguration, i, name, leg.Side)
		}
		p, ok := e.pairs[leg.Symbol]
		if !ok {
			return fmt.Errorf("%w: leg %d of %s references unknown pair %s", ErrConfiguration, i, name, leg.Symbol)
		}
		rel.legs[i] = leg
		rel.pairs[i] = p
	}
	n := len(legs)
	if e.legs > 0 {
		n = e.legs
	}
	rel.feeMultiplier = math.Pow((100-e.fee)/100, float64(n))
	e.rels[name] = rel
	e.order = append(e.order, name)
	return nil
}

// IngestUpdate replaces the whole book and timestamp of a pair and marks it
// initialized. A rejected update leaves the previous snapshot in place.
func (e *Engine) IngestUpdate(symbol string, timestamp float64, asks, bids []orderbook.Level) error {
	e.mu.RLock()
	p, ok := e.pairs[symbol]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: pair %s", ErrNotFound, symbol)
	}
	book := orderbook.L2{Asks: asks, Bids: bids}
	if !book.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidBook, symbol)
	}
	p.snap.Store(&snapshot{ts: timestamp, book: book.Clone()})
	return nil
}

// Snapshot returns the current book of a pair. ok is false for unknown or
// not yet initialized pairs.
func (e *Engine) Snapshot(symbol string) (book orderbook.L2, timestamp float64, ok bool) {
	e.mu.RLock()
	p, found := e.pairs[symbol]
	e.mu.RUnlock()
	if !found {
		return orderbook.L2{}, 0, false
	}
	s := p.snap.Load()
	if s == nil {
		return orderbook.L2{}, 0, false
	}
	return s.book, s.ts, true
}

// Pairs lists registered symbols in no particular order.
func (e *Engine) Pairs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.pairs))
	for s := range e.pairs {
		out = append(out, s)
	}
	return out
}

// Relationships lists relationship names in registration order.
func (e *Engine) Relationships() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

func (e *Engine) Relationship(name string) (RelationshipInfo, bool) {
	e.mu.RLock()
	rel, ok := e.rels[name]
	e.mu.RUnlock()
	if !ok {
		return RelationshipInfo{}, false
	}
	return rel.info(), true
}

// Evaluate searches the quantity grid of a relationship and returns the best
// candidate. Until every pair of the relationship has received a book the
// NotReady sentinel is returned instead.
func (e *Engine) Evaluate(name string) (Deal, error) {
	e.mu.RLock()
	rel, ok := e.rels[name]
	e.mu.RUnlock()
	if !ok {
		return Deal{}, fmt.Errorf("%w: relationship %s", ErrNotFound, name)
	}

	// one snapshot per pair for the whole search
	snaps := make([]*snapshot, len(rel.pairs))
	for i, p := range rel.pairs {
		snaps[i] = p.snap.Load()
	}
	if !rel.initialized.Load() {
		for _, s := range snaps {
			if s == nil {
				return notReady(name), nil
			}
		}
		rel.initialized.CompareAndSwap(false, true)
	}

	best := Deal{Relationship: name, Profit: NotReady}
	lowest := math.MaxFloat64
	for _, q := range e.grid {
		current := q
		actions := make([]TradeAction, len(rel.legs))
		for j, leg := range rel.legs {
			s := snaps[j]
			if s.ts < lowest {
				lowest = s.ts
			}
			input := current
			step := rel.pairs[j].step
			if leg.Side == Buy {
				current = e.walker.Buy(input, s.book.Asks, step)
			} else {
				current = e.walker.Sell(input, s.book.Bids, step)
			}
			actions[j] = TradeAction{Symbol: leg.Symbol, Side: leg.Side, Input: input, Quantity: current}
		}
		profit := (current*rel.feeMultiplier - q) / q
		// overflowing books score as a total loss
		if math.IsNaN(profit) || math.IsInf(profit, 0) {
			profit = NotReady
		}
		if profit >= best.Profit {
			best.Actions = actions
			best.Profit = profit
		}
	}
	best.Timestamp = lowest
	return best, nil
}

// RecordLatencySample feeds one data age into the window sized by the pair count.
func (e *Engine) RecordLatencySample(age float64) { e.ages.Add(age) }

// LatencyStatistics reports the window statistics; ok is false with no data.
func (e *Engine) LatencyStatistics() (latency.Stats, bool) { return e.ages.Stats() }
