// Package tracker maintains the last observed open interest per
// (symbol, strike, option type) key and emits delta records whenever a new
// snapshot moves a key by at least the configured floor.
package tracker

import (
	"sync"

	"optionflow/logger"
	"optionflow/models"
)

const defaultLargeDeltaFloor = 50000

type legKey struct {
	strike     float64
	optionType models.OptionType
}

// shard holds the OI cache for one symbol behind its own lock so symbols
// polled concurrently never contend.
type shard struct {
	mu   sync.Mutex
	last map[legKey]int64
}

type OIDeltaTracker struct {
	mu                sync.RWMutex
	shards            map[string]*shard
	significanceFloor int64
	largeDeltaFloor   int64
	log               *logger.Log
}

func New(significanceFloor, largeDeltaFloor int64) *OIDeltaTracker {
	if largeDeltaFloor <= 0 {
		largeDeltaFloor = defaultLargeDeltaFloor
	}
	return &OIDeltaTracker{
		shards:            make(map[string]*shard),
		significanceFloor: significanceFloor,
		largeDeltaFloor:   largeDeltaFloor,
		log:               logger.GetLogger(),
	}
}

func (t *OIDeltaTracker) shardFor(symbol string) *shard {
	t.mu.RLock()
	s, ok := t.shards[symbol]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.shards[symbol]; ok {
		return s
	}
	s = &shard{last: make(map[legKey]int64)}
	t.shards[symbol] = s
	return s
}

// Observe compares the snapshot against the cached OI values and returns one
// record per leg whose absolute move meets the significance floor. A leg's
// cache entry starts at zero, so its first live observation emits the full
// open interest as the delta. The cache is updated for every leg regardless,
// so a sub-floor drift never accumulates into a phantom jump later.
func (t *OIDeltaTracker) Observe(snap *models.MarketSnapshot, trigger models.TriggerReason) []models.OIDeltaRecord {
	if snap == nil || len(snap.Chain) == 0 {
		return nil
	}

	s := t.shardFor(snap.Symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.OIDeltaRecord
	for _, strike := range snap.Chain {
		for _, side := range []struct {
			optionType models.OptionType
			leg        models.OptionLeg
		}{
			{models.OptionCall, strike.Call},
			{models.OptionPut, strike.Put},
		} {
			key := legKey{strike: strike.Strike, optionType: side.optionType}
			oldOI := s.last[key]
			s.last[key] = side.leg.OpenInterest

			delta := side.leg.OpenInterest - oldOI
			if abs64(delta) < t.significanceFloor || delta == 0 {
				continue
			}

			rec := models.OIDeltaRecord{
				Symbol:        snap.Symbol,
				Strike:        strike.Strike,
				OptionType:    side.optionType,
				Timestamp:     snap.Timestamp,
				OldOI:         oldOI,
				NewOI:         side.leg.OpenInterest,
				DeltaOI:       delta,
				TriggerReason: trigger,
				Severity:      t.severityFor(delta),
				DataSource:    snap.DataSource,
			}
			if oldOI > 0 {
				rec.PercentChange = float64(delta) / float64(oldOI) * 100
			}
			records = append(records, rec)
		}
	}

	if len(records) > 0 {
		logger.IncrementDeltasEmitted(len(records))
		t.log.WithComponent("oi_tracker").WithFields(logger.Fields{
			"symbol":  snap.Symbol,
			"deltas":  len(records),
			"trigger": string(trigger),
		}).Debug("oi deltas observed")
	}
	return records
}

func (t *OIDeltaTracker) severityFor(delta int64) models.DeltaSeverity {
	if abs64(delta) >= t.largeDeltaFloor {
		return models.SeverityLarge
	}
	return models.SeverityModerate
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
