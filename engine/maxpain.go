package engine

import "optionflow/models"

// MaxPainStrike returns the strike minimizing the aggregate assignment cost
// to option writers. For a candidate strike K the cost is the sum of
// callOI*(K-callStrike) over calls struck below K plus putOI*(putStrike-K)
// over puts struck above K. Ties resolve to the lower strike. Returns 0 for
// an empty chain.
func MaxPainStrike(chain []models.StrikeSnapshot) float64 {
	if len(chain) == 0 {
		return 0
	}

	best := 0.0
	bestCost := 0.0
	for i, candidate := range chain {
		cost := 0.0
		for _, s := range chain {
			if s.Strike < candidate.Strike {
				cost += float64(s.Call.OpenInterest) * (candidate.Strike - s.Strike)
			}
			if s.Strike > candidate.Strike {
				cost += float64(s.Put.OpenInterest) * (s.Strike - candidate.Strike)
			}
		}
		if i == 0 || cost < bestCost {
			best = candidate.Strike
			bestCost = cost
		}
	}
	return best
}
