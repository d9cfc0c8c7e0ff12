package provider

import (
	"context"
	"errors"
	"time"

	"optionflow/logger"
	"optionflow/models"
)

// Acquirer produces one MarketSnapshot per symbol per cycle by walking the
// registry's active sources in priority order. The first source that serves
// both a quote and a non-empty chain wins; everything else is recorded as a
// failure and skipped. When every source fails the acquirer returns nil and
// the caller skips the symbol for the cycle — no synthetic data, ever.
type Acquirer struct {
	registry    *Registry
	callTimeout time.Duration
	log         *logger.Log
}

func NewAcquirer(registry *Registry, callTimeout time.Duration) *Acquirer {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Acquirer{
		registry:    registry,
		callTimeout: callTimeout,
		log:         logger.GetLogger(),
	}
}

// Acquire fetches quote plus option chain for symbol with provider fallback.
func (a *Acquirer) Acquire(ctx context.Context, symbol string) *models.MarketSnapshot {
	log := a.log.WithComponent("acquirer").WithFields(logger.Fields{"symbol": symbol})

	sources := a.registry.ActiveSources()
	if len(sources) == 0 {
		log.Warn("no active data sources configured")
		return nil
	}

	for _, gw := range sources {
		start := time.Now()
		snap, err := a.trySource(ctx, gw, symbol)
		elapsed := time.Since(start)

		if err != nil {
			a.registry.RecordOutcome(gw.Name(), false, elapsed)

			var authErr *AuthError
			if errors.As(err, &authErr) {
				a.registry.Deactivate(gw.Name())
			}

			log.WithError(err).WithFields(logger.Fields{
				"provider":   gw.Name(),
				"latency_ms": elapsed.Milliseconds(),
			}).Warn("provider attempt failed, falling through")
			continue
		}

		a.registry.RecordOutcome(gw.Name(), true, elapsed)
		snap.DataSource = gw.Name()
		snap.LatencyMs = elapsed.Milliseconds()

		logger.IncrementSnapshotFetched(len(snap.Chain))
		logger.LogDataFlowEntry(log, gw.Name(), "pipeline", len(snap.Chain), "strike_snapshots")
		return snap
	}

	log.Warn("all active providers failed, skipping symbol this cycle")
	return nil
}

func (a *Acquirer) trySource(ctx context.Context, gw Gateway, symbol string) (*models.MarketSnapshot, error) {
	qctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	quote, err := gw.GetQuote(qctx, symbol)
	cancel()
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	chain, err := gw.GetOptionChain(cctx, symbol, "")
	cancel()
	if err != nil {
		return nil, err
	}

	snap := &models.MarketSnapshot{
		Symbol:        symbol,
		Timestamp:     time.Now().UTC(),
		CurrentPrice:  quote.LTP,
		PreviousPrice: quote.Close,
		Chain:         chain,
	}
	if err := snap.Validate(); err != nil {
		return nil, &MalformedPayloadError{Provider: gw.Name(), Err: err}
	}
	return snap, nil
}
