// Package orchestrator drives the acquisition pipeline: it schedules polls
// during the trading session, fans work out across a bounded worker pool, and
// runs the end-of-day rollup and weekly reconciliation passes.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"optionflow/config"
	"optionflow/engine"
	"optionflow/internal/channel"
	"optionflow/logger"
	"optionflow/models"
	"optionflow/provider"
	"optionflow/store"
	"optionflow/tracker"
)

// State is the orchestrator's current phase.
type State string

const (
	StateIdle           State = "IDLE"
	StatePolling        State = "POLLING"
	StateEODRollup      State = "EOD_ROLLUP"
	StateReconciliation State = "RECONCILIATION"
)

// Acquirer is the snapshot source. A nil snapshot means every provider
// failed and the symbol is skipped this cycle.
type Acquirer interface {
	Acquire(ctx context.Context, symbol string) *models.MarketSnapshot
}

// Archiver persists the raw snapshots of a finished trading day.
type Archiver interface {
	ArchiveSnapshots(ctx context.Context, symbol string, day time.Time, snaps []*models.MarketSnapshot) (models.RawArchiveRecord, error)
}

// Reconciler cross-checks persisted data for one symbol and day.
type Reconciler interface {
	Reconcile(ctx context.Context, symbol string, day time.Time) error
}

type Orchestrator struct {
	cfg      config.OrchestratorConfig
	symbols  []string
	calendar *SessionCalendar

	acquirer   Acquirer
	tracker    *tracker.OIDeltaTracker
	engine     *engine.Engine
	oiStore    store.OIStore
	archives   store.ArchiveStore
	archiver   Archiver
	reconciler Reconciler
	channels   *channel.Channels
	registry   *provider.Registry

	mu            sync.Mutex
	state         State
	lastSnapshots map[string]*models.MarketSnapshot
	lastRollupDay string
	lastReconcile string

	reconcileWeekday time.Weekday
	reconcileAt      clockTime

	log *logger.Log
}

type Deps struct {
	Acquirer   Acquirer
	Tracker    *tracker.OIDeltaTracker
	Engine     *engine.Engine
	OIStore    store.OIStore
	Archives   store.ArchiveStore
	Archiver   Archiver
	Reconciler Reconciler
	Channels   *channel.Channels
	Registry   *provider.Registry
}

func New(cfg config.OrchestratorConfig, symbols []string, calendar *SessionCalendar, deps Deps) (*Orchestrator, error) {
	wd, ok := weekdayNames[strings.ToLower(cfg.ReconcileWeekday)]
	if !ok {
		return nil, fmt.Errorf("unknown reconcile weekday '%s'", cfg.ReconcileWeekday)
	}
	at, err := parseClock(cfg.ReconcileTime)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:              cfg,
		symbols:          symbols,
		calendar:         calendar,
		acquirer:         deps.Acquirer,
		tracker:          deps.Tracker,
		engine:           deps.Engine,
		oiStore:          deps.OIStore,
		archives:         deps.Archives,
		archiver:         deps.Archiver,
		reconciler:       deps.Reconciler,
		channels:         deps.Channels,
		registry:         deps.Registry,
		state:            StateIdle,
		lastSnapshots:    make(map[string]*models.MarketSnapshot),
		reconcileWeekday: wd,
		reconcileAt:      at,
		log:              logger.GetLogger(),
	}
	if o.reconciler == nil && deps.OIStore != nil && deps.Archives != nil {
		o.reconciler = NewRowCountReconciler(deps.OIStore, deps.Archives)
	}
	return o, nil
}

// Start runs the scheduling loop until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	log := o.log.WithComponent("orchestrator")
	log.WithFields(logger.Fields{
		"symbols":       len(o.symbols),
		"poll_interval": o.cfg.PollInterval.String(),
		"max_workers":   o.cfg.MaxWorkers,
	}).Info("orchestrator started")

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("orchestrator stopped")
			return
		case now := <-ticker.C:
			o.tick(ctx, now)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context, now time.Time) {
	switch {
	case o.calendar.IsOpen(now):
		o.setState(StatePolling)
		o.runCycle(ctx, o.symbols, models.TriggerScheduled)
	case o.eodPending(now):
		o.setState(StateEODRollup)
		o.runEODRollup(ctx, now)
		o.setState(StateIdle)
	case o.reconcilePending(now):
		o.setState(StateReconciliation)
		o.runReconciliation(ctx, now)
		o.setState(StateIdle)
	default:
		o.setState(StateIdle)
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != s {
		o.log.WithComponent("orchestrator").WithFields(logger.Fields{
			"from": string(o.state),
			"to":   string(s),
		}).Info("state changed")
		o.state = s
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// runCycle processes every symbol through the pipeline using a bounded pool.
// Failures are isolated per symbol; one bad instrument never blocks the rest.
func (o *Orchestrator) runCycle(ctx context.Context, symbols []string, trigger models.TriggerReason) map[string]*models.MarketSnapshot {
	workers := o.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var mu sync.Mutex
	results := make(map[string]*models.MarketSnapshot, len(symbols))

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					o.log.WithComponent("orchestrator").WithFields(logger.Fields{
						"symbol": symbol,
						"panic":  r,
					}).Error("symbol pipeline panicked")
				}
			}()

			snap := o.processSymbol(ctx, symbol, trigger)
			if snap != nil {
				mu.Lock()
				results[symbol] = snap
				mu.Unlock()
			}
		}(symbol)
	}
	wg.Wait()
	return results
}

// processSymbol runs acquisition, delta tracking, persistence and analysis
// for one symbol. A nil return means the cycle was skipped for this symbol.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol string, trigger models.TriggerReason) *models.MarketSnapshot {
	log := o.log.WithComponent("orchestrator").WithFields(logger.Fields{
		"symbol":  symbol,
		"trigger": string(trigger),
	})

	snap := o.acquirer.Acquire(ctx, symbol)
	if snap == nil {
		return nil
	}

	deltas := o.tracker.Observe(snap, trigger)

	if err := o.oiStore.UpsertIntraday(ctx, models.IntradayRows(snap)); err != nil {
		log.WithError(err).Error("intraday upsert failed")
		return nil
	}
	if len(deltas) > 0 {
		if err := o.oiStore.InsertDeltas(ctx, deltas); err != nil {
			log.WithError(err).Error("delta insert failed")
		}
	}

	signals := o.engine.Analyze(snap)
	if len(signals) > 0 {
		logger.IncrementSignalsEmitted(len(signals))
	}

	if o.channels != nil {
		o.channels.Snapshots.Send(ctx, *snap)
		o.channels.Signals.Send(ctx, signals)
	}

	// Only the latest snapshot per symbol is held; raw rows already went to
	// the store, and the rollup needs just the day's final state.
	o.mu.Lock()
	o.lastSnapshots[symbol] = snap
	o.mu.Unlock()

	log.WithFields(logger.Fields{
		"strikes": len(snap.Chain),
		"deltas":  len(deltas),
		"signals": len(signals),
		"source":  snap.DataSource,
	}).Debug("symbol cycle complete")
	return snap
}

// RefreshData runs one immediate pipeline pass for the given symbols outside
// the schedule and returns the snapshots that succeeded.
func (o *Orchestrator) RefreshData(ctx context.Context, symbols []string, trigger models.TriggerReason) []*models.MarketSnapshot {
	if len(symbols) == 0 {
		symbols = o.symbols
	}
	if trigger == "" {
		trigger = models.TriggerManualRefresh
	}
	results := o.runCycle(ctx, symbols, trigger)

	out := make([]*models.MarketSnapshot, 0, len(results))
	for _, symbol := range symbols {
		if snap, ok := results[symbol]; ok {
			out = append(out, snap)
		}
	}
	return out
}

func (o *Orchestrator) eodPending(now time.Time) bool {
	if !o.calendar.EODDue(now) {
		return false
	}
	day := o.calendar.TradingDay(now).Format("2006-01-02")
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRollupDay != day && len(o.lastSnapshots) > 0
}

// runEODRollup upserts the daily aggregate from each symbol's final snapshot
// and archives that closing state.
func (o *Orchestrator) runEODRollup(ctx context.Context, now time.Time) {
	day := o.calendar.TradingDay(now)
	dayKey := day.Format("2006-01-02")
	log := o.log.WithComponent("orchestrator").WithFields(logger.Fields{"date": dayKey})
	log.Info("starting end of day rollup")

	o.mu.Lock()
	snapshots := o.lastSnapshots
	o.lastSnapshots = make(map[string]*models.MarketSnapshot)
	o.lastRollupDay = dayKey
	o.mu.Unlock()

	for symbol, final := range snapshots {
		slog := log.WithFields(logger.Fields{"symbol": symbol})

		if err := o.oiStore.UpsertDaily(ctx, models.DailyRows(final, day)); err != nil {
			slog.WithError(err).Error("daily upsert failed")
			continue
		}

		if o.archiver != nil {
			rec, err := o.archiver.ArchiveSnapshots(ctx, symbol, day, []*models.MarketSnapshot{final})
			if err != nil {
				slog.WithError(err).Error("raw archive failed")
			} else if err := o.archives.InsertArchive(ctx, rec); err != nil {
				slog.WithError(err).Error("archive record insert failed")
			}
		}

		slog.WithFields(logger.Fields{"strikes": len(final.Chain)}).Info("symbol rolled up")
	}

	log.Info("end of day rollup complete")
}

func (o *Orchestrator) reconcilePending(now time.Time) bool {
	lt := now.In(o.calendar.loc)
	if lt.Weekday() != o.reconcileWeekday || minutesInto(lt) < o.reconcileAt {
		return false
	}
	year, isoWeek := lt.ISOWeek()
	week := fmt.Sprintf("%d-%02d", year, isoWeek)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastReconcile == week {
		return false
	}
	o.lastReconcile = week
	return true
}

// runReconciliation walks the past week's trading days per symbol.
func (o *Orchestrator) runReconciliation(ctx context.Context, now time.Time) {
	if o.reconciler == nil {
		return
	}
	log := o.log.WithComponent("orchestrator")
	log.Info("starting weekly reconciliation")

	for _, symbol := range o.symbols {
		for back := 1; back <= 7; back++ {
			day := o.calendar.TradingDay(now.AddDate(0, 0, -back))
			if !o.calendar.IsTradingDay(day) {
				continue
			}
			if err := o.reconciler.Reconcile(ctx, symbol, day); err != nil {
				log.WithError(err).WithFields(logger.Fields{
					"symbol": symbol,
					"date":   day.Format("2006-01-02"),
				}).Warn("reconciliation discrepancy")
			}
		}
	}

	log.Info("weekly reconciliation complete")
}

// GetDataSourceMetrics exposes per-provider health for delivery surfaces.
func (o *Orchestrator) GetDataSourceMetrics() []models.DataSourceHealth {
	if o.registry == nil {
		return nil
	}
	return o.registry.Metrics()
}
