// Package engine runs the stateless pattern analyzers over one market
// snapshot. Every analyzer sees the same normalized chain and may emit zero
// or more signals; nothing here holds state between cycles.
package engine

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"optionflow/config"
	"optionflow/models"
)

// maxConfidence is the hard ceiling applied after every analyzer formula.
const maxConfidence = 0.95

// Thresholds collects the analyzer tunables. All fields are positive
// magnitudes; short-covering compares against the negated floor.
type Thresholds struct {
	OIBuildupFloor       float64
	ShortCoverFloor      float64
	PremiumSurge         float64
	VolumeFloor          float64
	GammaProximityPct    float64
	GammaOIFloor         float64
	GammaOIScale         float64
	SpikeAvgChange       float64
	UnusualVolumeOIRatio float64
	SRProximityPct       float64
	SROIFloor            float64
	MomentumPricePct     float64
	MaxPainGapPct        float64
	SignalValidity       time.Duration
}

// DefaultThresholds returns the tunables used when configuration leaves a
// field unset.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OIBuildupFloor:       10000,
		ShortCoverFloor:      10000,
		PremiumSurge:         5,
		VolumeFloor:          10000,
		GammaProximityPct:    5,
		GammaOIFloor:         100000,
		GammaOIScale:         500000,
		SpikeAvgChange:       5,
		UnusualVolumeOIRatio: 0.5,
		SRProximityPct:       2,
		SROIFloor:            50000,
		MomentumPricePct:     2,
		MaxPainGapPct:        2,
		SignalValidity:       3 * time.Hour,
	}
}

// FromConfig overlays configured values on the defaults; zero config fields
// keep the default.
func FromConfig(cfg config.ThresholdsConfig) Thresholds {
	t := DefaultThresholds()
	overlay := []struct {
		dst *float64
		src float64
	}{
		{&t.OIBuildupFloor, cfg.OIBuildupFloor},
		{&t.ShortCoverFloor, cfg.ShortCoverFloor},
		{&t.PremiumSurge, cfg.PremiumSurge},
		{&t.VolumeFloor, cfg.VolumeFloor},
		{&t.GammaProximityPct, cfg.GammaProximityPct},
		{&t.GammaOIFloor, cfg.GammaOIFloor},
		{&t.GammaOIScale, cfg.GammaOIScale},
		{&t.SpikeAvgChange, cfg.SpikeAvgChange},
		{&t.UnusualVolumeOIRatio, cfg.UnusualVolumeOIRatio},
		{&t.SRProximityPct, cfg.SRProximityPct},
		{&t.SROIFloor, cfg.SROIFloor},
		{&t.MomentumPricePct, cfg.MomentumPricePct},
		{&t.MaxPainGapPct, cfg.MaxPainGapPct},
	}
	for _, o := range overlay {
		if o.src > 0 {
			*o.dst = o.src
		}
	}
	if cfg.SignalValidity > 0 {
		t.SignalValidity = cfg.SignalValidity
	}
	return t
}

type Engine struct {
	thresholds Thresholds
}

func New(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Analyze runs every analyzer over the snapshot chain and returns the merged
// signal list sorted by confidence, highest first.
func (e *Engine) Analyze(snap *models.MarketSnapshot) []models.PatternSignal {
	if snap == nil || len(snap.Chain) == 0 {
		return nil
	}

	atm := models.ATMStrike(snap.Chain, snap.CurrentPrice)

	var signals []models.PatternSignal
	signals = append(signals, e.longBuildups(snap, atm)...)
	signals = append(signals, e.shortCoverings(snap)...)
	signals = append(signals, e.gammaConcentration(snap, atm)...)
	signals = append(signals, e.volatilitySpike(snap, atm)...)
	signals = append(signals, e.unusualActivity(snap)...)
	signals = append(signals, e.supportResistance(snap)...)
	signals = append(signals, e.momentumConfirmation(snap, atm)...)
	signals = append(signals, e.maxPainDisplacement(snap)...)

	for i := range signals {
		signals[i].ID = uuid.New().String()
		signals[i].Timestamp = snap.Timestamp
		signals[i].Underlying = snap.Symbol
		signals[i].ValidUntil = snap.Timestamp.Add(e.thresholds.SignalValidity)
		signals[i].Strength = models.StrengthFor(signals[i].Confidence)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Confidence > signals[j].Confidence
	})
	return signals
}

// buildupConfidence is the shared weighted formula: each ratio is capped at
// one, then combined 0.4/0.3/0.3 and clamped to the ceiling.
func (e *Engine) buildupConfidence(oiChange, premiumChange, volume float64) float64 {
	c := 0.4*cappedRatio(oiChange, e.thresholds.OIBuildupFloor) +
		0.3*cappedRatio(premiumChange, e.thresholds.PremiumSurge) +
		0.3*cappedRatio(volume, e.thresholds.VolumeFloor)
	return clamp(c)
}

func (e *Engine) longBuildups(snap *models.MarketSnapshot, atm float64) []models.PatternSignal {
	t := e.thresholds
	var out []models.PatternSignal
	for _, s := range snap.Chain {
		call := s.Call
		if float64(call.OIChange) > t.OIBuildupFloor && call.LastPriceChange > 0 && s.Strike >= atm {
			out = append(out, models.PatternSignal{
				Strike:     s.Strike,
				Type:       models.SignalCallLongBuildup,
				Direction:  models.DirectionBullish,
				Confidence: e.buildupConfidence(float64(call.OIChange), call.LastPriceChange, float64(call.Volume)),
				Indicators: []models.Indicator{
					indicator("oi_change", float64(call.OIChange), t.OIBuildupFloor),
					indicator("premium_change", call.LastPriceChange, 0),
					indicator("volume", float64(call.Volume), t.VolumeFloor),
				},
			})
		}
		put := s.Put
		if float64(put.OIChange) > t.OIBuildupFloor && put.LastPriceChange > 0 && s.Strike <= atm {
			out = append(out, models.PatternSignal{
				Strike:     s.Strike,
				Type:       models.SignalPutLongBuildup,
				Direction:  models.DirectionBearish,
				Confidence: e.buildupConfidence(float64(put.OIChange), put.LastPriceChange, float64(put.Volume)),
				Indicators: []models.Indicator{
					indicator("oi_change", float64(put.OIChange), t.OIBuildupFloor),
					indicator("premium_change", put.LastPriceChange, 0),
					indicator("volume", float64(put.Volume), t.VolumeFloor),
				},
			})
		}
	}
	return out
}

func (e *Engine) shortCoverings(snap *models.MarketSnapshot) []models.PatternSignal {
	t := e.thresholds
	var out []models.PatternSignal
	emit := func(strike float64, leg models.OptionLeg, sigType models.SignalType, dir models.SignalDirection) []models.PatternSignal {
		if float64(leg.OIChange) >= -t.ShortCoverFloor ||
			leg.LastPriceChange <= t.PremiumSurge ||
			float64(leg.Volume) <= t.VolumeFloor {
			return nil
		}
		c := clamp(0.4*cappedRatio(math.Abs(float64(leg.OIChange)), t.ShortCoverFloor) +
			0.3*cappedRatio(leg.LastPriceChange, t.PremiumSurge) +
			0.3*cappedRatio(float64(leg.Volume), t.VolumeFloor))
		return []models.PatternSignal{{
			Strike:     strike,
			Type:       sigType,
			Direction:  dir,
			Confidence: c,
			Indicators: []models.Indicator{
				indicator("oi_change", float64(leg.OIChange), -t.ShortCoverFloor),
				indicator("premium_change", leg.LastPriceChange, t.PremiumSurge),
				indicator("volume", float64(leg.Volume), t.VolumeFloor),
			},
		}}
	}
	for _, s := range snap.Chain {
		out = append(out, emit(s.Strike, s.Call, models.SignalCallShortCovering, models.DirectionBullish)...)
		out = append(out, emit(s.Strike, s.Put, models.SignalPutShortCovering, models.DirectionBearish)...)
	}
	return out
}

func (e *Engine) gammaConcentration(snap *models.MarketSnapshot, atm float64) []models.PatternSignal {
	t := e.thresholds
	if atm <= 0 {
		return nil
	}
	var callOI, putOI float64
	for _, s := range snap.Chain {
		if math.Abs(s.Strike-atm)/atm*100 > t.GammaProximityPct {
			continue
		}
		callOI += float64(s.Call.OpenInterest)
		putOI += float64(s.Put.OpenInterest)
	}
	total := callOI + putOI
	if total <= t.GammaOIFloor {
		return nil
	}

	dir := models.DirectionNeutral
	if callOI > putOI {
		dir = models.DirectionBullish
	} else if putOI > callOI {
		dir = models.DirectionBearish
	}
	return []models.PatternSignal{{
		Strike:     atm,
		Type:       models.SignalGammaConcentration,
		Direction:  dir,
		Confidence: clamp(total / t.GammaOIScale),
		Indicators: []models.Indicator{
			indicator("near_atm_oi", total, t.GammaOIFloor),
			indicator("call_oi", callOI, 0),
			indicator("put_oi", putOI, 0),
		},
	}}
}

func (e *Engine) volatilitySpike(snap *models.MarketSnapshot, atm float64) []models.PatternSignal {
	t := e.thresholds
	var sum float64
	var legs int
	for _, s := range snap.Chain {
		sum += math.Abs(s.Call.LastPriceChange) + math.Abs(s.Put.LastPriceChange)
		legs += 2
	}
	avg := sum / float64(legs)
	if avg <= t.SpikeAvgChange {
		return nil
	}
	return []models.PatternSignal{{
		Strike:     atm,
		Type:       models.SignalVolatilitySpike,
		Direction:  models.DirectionNeutral,
		Confidence: clamp(0.5 * avg / t.SpikeAvgChange),
		Indicators: []models.Indicator{
			indicator("avg_premium_change", avg, t.SpikeAvgChange),
		},
	}}
}

func (e *Engine) unusualActivity(snap *models.MarketSnapshot) []models.PatternSignal {
	t := e.thresholds
	var out []models.PatternSignal
	for _, s := range snap.Chain {
		totalOI := float64(s.Call.OpenInterest + s.Put.OpenInterest)
		totalVol := float64(s.Call.Volume + s.Put.Volume)
		if totalOI <= 0 || totalVol <= 2*t.VolumeFloor {
			continue
		}
		ratio := totalVol / totalOI
		if ratio <= t.UnusualVolumeOIRatio {
			continue
		}

		dir := models.DirectionNeutral
		if s.Call.Volume > s.Put.Volume {
			dir = models.DirectionBullish
		} else if s.Put.Volume > s.Call.Volume {
			dir = models.DirectionBearish
		}
		out = append(out, models.PatternSignal{
			Strike:     s.Strike,
			Type:       models.SignalUnusualActivity,
			Direction:  dir,
			Confidence: clamp(0.5 * ratio / t.UnusualVolumeOIRatio),
			Indicators: []models.Indicator{
				indicator("volume_oi_ratio", ratio, t.UnusualVolumeOIRatio),
				indicator("total_volume", totalVol, 2*t.VolumeFloor),
			},
		})
	}
	return out
}

func (e *Engine) supportResistance(snap *models.MarketSnapshot) []models.PatternSignal {
	t := e.thresholds
	price := snap.CurrentPrice
	if price <= 0 {
		return nil
	}
	var out []models.PatternSignal
	for _, s := range snap.Chain {
		if math.Abs(s.Strike-price)/price*100 > t.SRProximityPct {
			continue
		}
		callOI := float64(s.Call.OpenInterest)
		putOI := float64(s.Put.OpenInterest)
		total := callOI + putOI
		if total <= t.SROIFloor {
			continue
		}

		switch {
		case s.Strike < price && putOI > callOI:
			out = append(out, models.PatternSignal{
				Strike:     s.Strike,
				Type:       models.SignalSupport,
				Direction:  models.DirectionBullish,
				Confidence: clamp(total / (2 * t.SROIFloor)),
				Indicators: []models.Indicator{
					indicator("total_oi", total, t.SROIFloor),
					indicator("put_oi", putOI, callOI),
				},
			})
		case s.Strike > price && callOI > putOI:
			out = append(out, models.PatternSignal{
				Strike:     s.Strike,
				Type:       models.SignalResistance,
				Direction:  models.DirectionBearish,
				Confidence: clamp(total / (2 * t.SROIFloor)),
				Indicators: []models.Indicator{
					indicator("total_oi", total, t.SROIFloor),
					indicator("call_oi", callOI, putOI),
				},
			})
		}
	}
	return out
}

func (e *Engine) momentumConfirmation(snap *models.MarketSnapshot, atm float64) []models.PatternSignal {
	t := e.thresholds
	if snap.PreviousPrice <= 0 {
		return nil
	}
	pricePct := (snap.CurrentPrice - snap.PreviousPrice) / snap.PreviousPrice * 100
	if math.Abs(pricePct) <= t.MomentumPricePct {
		return nil
	}

	var netFlow float64
	for _, s := range snap.Chain {
		netFlow += float64(s.Call.OIChange) - float64(s.Put.OIChange)
	}
	if netFlow == 0 || (netFlow > 0) != (pricePct > 0) {
		return nil
	}

	dir := models.DirectionBullish
	if pricePct < 0 {
		dir = models.DirectionBearish
	}
	return []models.PatternSignal{{
		Strike:     atm,
		Type:       models.SignalMomentum,
		Direction:  dir,
		Confidence: clamp(0.5 * math.Abs(pricePct) / t.MomentumPricePct),
		Indicators: []models.Indicator{
			indicator("price_change_pct", pricePct, t.MomentumPricePct),
			indicator("net_oi_flow", netFlow, 0),
		},
	}}
}

func (e *Engine) maxPainDisplacement(snap *models.MarketSnapshot) []models.PatternSignal {
	t := e.thresholds
	maxPain := MaxPainStrike(snap.Chain)
	if maxPain <= 0 || snap.CurrentPrice <= 0 {
		return nil
	}
	gapPct := (snap.CurrentPrice - maxPain) / maxPain * 100
	if math.Abs(gapPct) <= t.MaxPainGapPct {
		return nil
	}

	// Price above max pain implies downward pull toward it, and vice versa.
	dir := models.DirectionBearish
	if gapPct < 0 {
		dir = models.DirectionBullish
	}
	return []models.PatternSignal{{
		Strike:     maxPain,
		Type:       models.SignalMaxPain,
		Direction:  dir,
		Confidence: clamp(0.5 * math.Abs(gapPct) / t.MaxPainGapPct),
		Indicators: []models.Indicator{
			indicator("max_pain_strike", maxPain, 0),
			indicator("displacement_pct", gapPct, t.MaxPainGapPct),
		},
	}}
}

func indicator(name string, value, threshold float64) models.Indicator {
	status := "ok"
	if threshold != 0 && math.Abs(value) < math.Abs(threshold) {
		status = "below"
	}
	return models.Indicator{Name: name, Value: value, Threshold: threshold, Status: status}
}

func cappedRatio(value, floor float64) float64 {
	if floor <= 0 {
		return 0
	}
	r := value / floor
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	return r
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
