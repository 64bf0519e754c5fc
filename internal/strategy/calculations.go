package strategy

// NetSpreadBps converts a profit ratio to basis points.
func NetSpreadBps(profit float64) float64 { return profit * 10000.0 }

// Accept decides whether an evaluated deal is worth acting on: the profit must
// reach thresholdPct percent and the oldest book must be at most maxAgeMs old.
// A non-positive maxAgeMs disables the age check.
func Accept(profit, timestampMs, thresholdPct, maxAgeMs, nowMs float64) bool {
	if profit < thresholdPct/100.0 {
		return false
	}
	if maxAgeMs > 0 && nowMs-timestampMs > maxAgeMs {
		return false
	}
	return true
}
