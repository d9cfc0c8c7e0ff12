package models

import "time"

// SignalType names the analyzer that produced a pattern signal.
type SignalType string

const (
	SignalCallLongBuildup    SignalType = "call_long_buildup"
	SignalPutLongBuildup     SignalType = "put_long_buildup"
	SignalCallShortCovering  SignalType = "call_short_covering"
	SignalPutShortCovering   SignalType = "put_short_covering"
	SignalGammaConcentration SignalType = "gamma_concentration"
	SignalVolatilitySpike    SignalType = "volatility_spike"
	SignalUnusualActivity    SignalType = "unusual_activity"
	SignalSupport            SignalType = "support"
	SignalResistance         SignalType = "resistance"
	SignalMomentum           SignalType = "momentum_confirmation"
	SignalMaxPain            SignalType = "max_pain"
)

// SignalDirection is the directional bias of a signal.
type SignalDirection string

const (
	DirectionBullish SignalDirection = "BULLISH"
	DirectionBearish SignalDirection = "BEARISH"
	DirectionNeutral SignalDirection = "NEUTRAL"
)

// SignalStrength buckets confidence for display and alert routing.
type SignalStrength string

const (
	StrengthWeak     SignalStrength = "WEAK"
	StrengthModerate SignalStrength = "MODERATE"
	StrengthStrong   SignalStrength = "STRONG"
)

// Indicator is one contributing measurement behind a signal.
type Indicator struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Status    string  `json:"status"`
}

// PatternSignal is one detected tradeable condition. Signals are recomputed
// each cycle, never mutated; ValidUntil bounds how long consumers may act on
// one.
type PatternSignal struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Underlying string          `json:"underlying"`
	Strike     float64         `json:"strike"`
	Type       SignalType      `json:"type"`
	Direction  SignalDirection `json:"direction"`
	Confidence float64         `json:"confidence"`
	Strength   SignalStrength  `json:"strength"`
	ValidUntil time.Time       `json:"valid_until"`
	Indicators []Indicator     `json:"indicators"`
}

// StrengthFor derives the strength bucket from a clamped confidence value.
func StrengthFor(confidence float64) SignalStrength {
	switch {
	case confidence >= 0.75:
		return StrengthStrong
	case confidence >= 0.45:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}
