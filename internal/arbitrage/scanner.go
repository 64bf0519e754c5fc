package arbitrage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"btrader/internal/infra/metrics"
	"btrader/internal/slippage"
	"btrader/internal/strategy"
)

// Sink receives accepted deals.
type Sink interface {
	Name() string
	Record(ctx context.Context, d Deal) error
}

type ScannerOptions struct {
	Interval    time.Duration
	ReportEvery time.Duration
	// ProfitThresholdPct is the minimum profit in percent.
	ProfitThresholdPct float64
	// MaxAgeMs bounds the age of the oldest book; zero disables the check.
	MaxAgeMs float64
}

// Scanner periodically evaluates every relationship of an engine and hands
// accepted deals to its sinks.
type Scanner struct {
	eng    *Engine
	opts   ScannerOptions
	sinks  []Sink
	logger zerolog.Logger
	bestCh chan Deal
	now    func() time.Time
}

func NewScanner(eng *Engine, opts ScannerOptions, logger zerolog.Logger, sinks ...Sink) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.ReportEvery <= 0 {
		opts.ReportEvery = 30 * time.Second
	}
	return &Scanner{eng: eng, opts: opts, sinks: sinks, logger: logger, bestCh: make(chan Deal, 1024), now: time.Now}
}

func (s *Scanner) Run(ctx context.Context) error {
	// periodic logger of top deals and data freshness
	go func() {
		tick := time.NewTicker(s.opts.ReportEvery)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				s.report()
			}
		}
	}()

	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce evaluates every relationship once and returns the accepted deals.
func (s *Scanner) ScanOnce(ctx context.Context) []Deal {
	var accepted []Deal
	for _, name := range s.eng.Relationships() {
		start := time.Now()
		d, err := s.eng.Evaluate(name)
		metrics.EvaluateLatencyUs.Observe(float64(time.Since(start).Microseconds()))
		if err != nil {
			s.logger.Warn().Err(err).Str("relationship", name).Msg("evaluate failed")
			continue
		}
		metrics.EvaluationsTotal.WithLabelValues(name).Inc()
		if !d.Ready() {
			metrics.NotReadyTotal.WithLabelValues(name).Inc()
			continue
		}

		nowMs := float64(s.now().UnixMilli())
		age := nowMs - d.Timestamp
		s.eng.RecordLatencySample(age)
		metrics.DataAgeMs.Observe(age)
		bps := strategy.NetSpreadBps(d.Profit)
		metrics.ProfitBps.Observe(bps)
		metrics.BestProfitBps.WithLabelValues(name).Set(bps)

		select {
		case s.bestCh <- d:
		default:
		}

		if !strategy.Accept(d.Profit, d.Timestamp, s.opts.ProfitThresholdPct, s.opts.MaxAgeMs, nowMs) {
			continue
		}
		metrics.DealsAccepted.WithLabelValues(name).Inc()
		s.observeSlippage(d)
		s.logger.Info().
			Str("relationship", name).
			Float64("profit_bps", bps).
			Float64("age_ms", age).
			Float64("quantity", d.Actions[0].Input).
			Msg("deal accepted")
		for _, sink := range s.sinks {
			if err := sink.Record(ctx, d); err != nil {
				metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
				s.logger.Warn().Err(err).Str("sink", sink.Name()).Str("relationship", name).Msg("deal sink failed")
			}
		}
		accepted = append(accepted, d)
	}
	return accepted
}

// observeSlippage estimates each leg against the book it was simulated on.
// BUY legs take Quantity base from the asks, SELL legs hand Input base to the bids.
func (s *Scanner) observeSlippage(d Deal) {
	for _, a := range d.Actions {
		book, _, ok := s.eng.Snapshot(a.Symbol)
		if !ok {
			continue
		}
		qty := a.Input
		if a.Side == Buy {
			qty = a.Quantity
		}
		if qty <= 0 {
			continue
		}
		bps := slippage.LegBps(book, qty, a.Side == Buy)
		if bps >= slippage.Unfillable {
			continue
		}
		metrics.LegSlippageBps.WithLabelValues(string(a.Side)).Observe(bps)
	}
}

func (s *Scanner) report() {
	// drain channel and keep top 10 by profit
	buf := make([]Deal, 0, len(s.bestCh))
	for drained := false; !drained; {
		select {
		case d := <-s.bestCh:
			buf = append(buf, d)
		default:
			drained = true
		}
	}
	n := 10
	if len(buf) < n {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		maxIdx := i
		for j := i + 1; j < len(buf); j++ {
			if buf[j].Profit > buf[maxIdx].Profit {
				maxIdx = j
			}
		}
		buf[i], buf[maxIdx] = buf[maxIdx], buf[i]
	}
	for i := 0; i < n; i++ {
		s.logger.Info().Int("rank", i+1).Str("relationship", buf[i].Relationship).
			Float64("profit_bps", strategy.NetSpreadBps(buf[i].Profit)).Msg("top deal")
	}

	if st, ok := s.eng.LatencyStatistics(); ok {
		metrics.LatencyMeanMs.Set(st.Mean)
		metrics.LatencyStdDevMs.Set(st.StdDev)
		s.logger.Info().
			Float64("mean_ms", st.Mean).
			Float64("stddev_ms", st.StdDev).
			Float64("min_ms", st.Min).
			Int("samples", st.Count).
			Msg("data age")
	}
}
