package models

import (
	"fmt"
	"sort"
	"time"
)

// OptionType identifies the side of an option contract.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// Quote represents the latest traded state of an underlying instrument.
type Quote struct {
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	LTP    float64 `json:"ltp"`
	Volume int64   `json:"volume"`
}

// OptionLeg holds one side (call or put) of a strike entry.
type OptionLeg struct {
	OpenInterest    int64   `json:"open_interest"`
	OIChange        int64   `json:"oi_change"`
	LastPrice       float64 `json:"last_price"`
	LastPriceChange float64 `json:"last_price_change"`
	Volume          int64   `json:"volume"`
}

// StrikeSnapshot carries both legs of a single strike. A missing leg is
// represented by zero values.
type StrikeSnapshot struct {
	Strike float64   `json:"strike"`
	Call   OptionLeg `json:"call"`
	Put    OptionLeg `json:"put"`
}

// MarketSnapshot is one acquisition of quote plus option chain for a symbol.
// Strikes are unique and sorted ascending.
type MarketSnapshot struct {
	Symbol        string           `json:"symbol"`
	Timestamp     time.Time        `json:"timestamp"`
	CurrentPrice  float64          `json:"current_price"`
	PreviousPrice float64          `json:"previous_price"`
	Chain         []StrikeSnapshot `json:"chain"`
	Expiry        string           `json:"expiry"`
	DataSource    string           `json:"data_source"`
	LatencyMs     int64            `json:"latency_ms"`
}

// NormalizeChain sorts the chain ascending by strike and merges duplicate
// strike entries. A leg present in a later duplicate wins over a zero leg in
// an earlier one.
func NormalizeChain(chain []StrikeSnapshot) []StrikeSnapshot {
	if len(chain) == 0 {
		return chain
	}
	merged := make(map[float64]StrikeSnapshot, len(chain))
	for _, s := range chain {
		cur, ok := merged[s.Strike]
		if !ok {
			merged[s.Strike] = s
			continue
		}
		if s.Call != (OptionLeg{}) {
			cur.Call = s.Call
		}
		if s.Put != (OptionLeg{}) {
			cur.Put = s.Put
		}
		merged[s.Strike] = cur
	}
	out := make([]StrikeSnapshot, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}

// Validate checks the snapshot invariants: non-empty chain, positive strikes,
// unique ascending ordering and non-negative OI/price/volume fields.
func (m *MarketSnapshot) Validate() error {
	if m.Symbol == "" {
		return fmt.Errorf("snapshot missing symbol")
	}
	if len(m.Chain) == 0 {
		return fmt.Errorf("snapshot for %s has empty chain", m.Symbol)
	}
	prev := 0.0
	for i, s := range m.Chain {
		if s.Strike <= 0 {
			return fmt.Errorf("strike at index %d is not positive", i)
		}
		if s.Strike <= prev {
			return fmt.Errorf("strikes not unique ascending at index %d", i)
		}
		prev = s.Strike
		for _, leg := range []OptionLeg{s.Call, s.Put} {
			if leg.OpenInterest < 0 || leg.Volume < 0 || leg.LastPrice < 0 {
				return fmt.Errorf("negative leg values at strike %.2f", s.Strike)
			}
		}
	}
	return nil
}

// ATMStrike returns the listed strike closest to price. Ties resolve to the
// lower strike. Returns 0 for an empty chain.
func ATMStrike(chain []StrikeSnapshot, price float64) float64 {
	best := 0.0
	bestDist := 0.0
	for i, s := range chain {
		d := s.Strike - price
		if d < 0 {
			d = -d
		}
		if i == 0 || d < bestDist {
			best = s.Strike
			bestDist = d
		}
	}
	return best
}
