package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionflow/models"
)

func snapshotWith(symbol string, strike float64, callOI, putOI int64) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:     symbol,
		Timestamp:  time.Now(),
		DataSource: "test",
		Chain: []models.StrikeSnapshot{
			{
				Strike: strike,
				Call:   models.OptionLeg{OpenInterest: callOI},
				Put:    models.OptionLeg{OpenInterest: putOI},
			},
		},
	}
}

func TestObserveFirstSightEmitsFullDelta(t *testing.T) {
	tr := New(0, 50000)

	records := tr.Observe(snapshotWith("NIFTY", 24400, 1500, 0), models.TriggerScheduled)

	// The zero-OI put leg has no move; the call leg's first observation is
	// measured against the zero-initialized baseline.
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, models.OptionCall, rec.OptionType)
	assert.Equal(t, int64(0), rec.OldOI)
	assert.Equal(t, int64(1500), rec.NewOI)
	assert.Equal(t, int64(1500), rec.DeltaOI)
	assert.Zero(t, rec.PercentChange)
}

func TestObserveComputesDeltaAndPercent(t *testing.T) {
	tr := New(0, 50000)

	tr.Observe(snapshotWith("NIFTY", 24400, 1000, 2000), models.TriggerScheduled)
	records := tr.Observe(snapshotWith("NIFTY", 24400, 1500, 2000), models.TriggerScheduled)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, models.OptionCall, rec.OptionType)
	assert.Equal(t, int64(1000), rec.OldOI)
	assert.Equal(t, int64(1500), rec.NewOI)
	assert.Equal(t, int64(500), rec.DeltaOI)
	assert.InDelta(t, 50.0, rec.PercentChange, 0.001)
	assert.Equal(t, models.SeverityModerate, rec.Severity)
	assert.Equal(t, models.TriggerScheduled, rec.TriggerReason)
}

func TestObserveZeroBaselineHasZeroPercent(t *testing.T) {
	tr := New(0, 50000)

	tr.Observe(snapshotWith("NIFTY", 24400, 0, 0), models.TriggerScheduled)
	records := tr.Observe(snapshotWith("NIFTY", 24400, 700, 0), models.TriggerScheduled)

	require.Len(t, records, 1)
	assert.Equal(t, int64(700), records[0].DeltaOI)
	assert.Zero(t, records[0].PercentChange)
}

func TestObserveSignificanceFloorStillUpdatesCache(t *testing.T) {
	tr := New(100, 50000)

	tr.Observe(snapshotWith("NIFTY", 24400, 1000, 0), models.TriggerScheduled)

	// Sub-floor move emits nothing but moves the baseline.
	records := tr.Observe(snapshotWith("NIFTY", 24400, 1050, 0), models.TriggerScheduled)
	assert.Empty(t, records)

	records = tr.Observe(snapshotWith("NIFTY", 24400, 1200, 0), models.TriggerScheduled)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1050), records[0].OldOI)
	assert.Equal(t, int64(150), records[0].DeltaOI)
}

func TestObserveLargeSeverity(t *testing.T) {
	tr := New(0, 400)

	tr.Observe(snapshotWith("BANKNIFTY", 52000, 1000, 0), models.TriggerScheduled)
	records := tr.Observe(snapshotWith("BANKNIFTY", 52000, 1500, 0), models.TriggerAlert)

	require.Len(t, records, 1)
	assert.Equal(t, models.SeverityLarge, records[0].Severity)
	assert.Equal(t, models.TriggerAlert, records[0].TriggerReason)
}

func TestSymbolsAreIsolated(t *testing.T) {
	tr := New(0, 50000)

	tr.Observe(snapshotWith("NIFTY", 24400, 1000, 0), models.TriggerScheduled)
	records := tr.Observe(snapshotWith("BANKNIFTY", 24400, 5000, 0), models.TriggerScheduled)

	// BANKNIFTY starts from its own zero baseline, not NIFTY's cache.
	require.Len(t, records, 1)
	assert.Equal(t, int64(0), records[0].OldOI)
	assert.Equal(t, int64(5000), records[0].DeltaOI)
}
