package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionflow/models"
)

func snapshot(chain []models.StrikeSnapshot, current, previous float64) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:        "NIFTY",
		Timestamp:     time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC),
		CurrentPrice:  current,
		PreviousPrice: previous,
		Chain:         chain,
		DataSource:    "test",
	}
}

func TestMaxPainConcentratedOI(t *testing.T) {
	chain := []models.StrikeSnapshot{
		{Strike: 24300},
		{Strike: 24400, Call: models.OptionLeg{OpenInterest: 500000}, Put: models.OptionLeg{OpenInterest: 500000}},
		{Strike: 24500},
	}

	// OI concentrated at one strike pins max pain there regardless of price.
	assert.Equal(t, 24400.0, MaxPainStrike(chain))
}

func TestMaxPainEmptyChain(t *testing.T) {
	assert.Zero(t, MaxPainStrike(nil))
}

func TestBullishCallBuildupScenario(t *testing.T) {
	e := New(DefaultThresholds())
	snap := snapshot([]models.StrikeSnapshot{
		{
			Strike: 24400,
			Call: models.OptionLeg{
				OpenInterest:    80000,
				OIChange:        15000,
				LastPrice:       120,
				LastPriceChange: 8,
				Volume:          20000,
			},
		},
	}, 24450, 24300)

	signals := e.Analyze(snap)

	var buildup *models.PatternSignal
	for i := range signals {
		if signals[i].Type == models.SignalCallLongBuildup {
			buildup = &signals[i]
			break
		}
	}
	require.NotNil(t, buildup, "expected a call long buildup signal")
	assert.Equal(t, models.DirectionBullish, buildup.Direction)
	assert.Equal(t, 24400.0, buildup.Strike)
	assert.Equal(t, "NIFTY", buildup.Underlying)
	assert.Greater(t, buildup.Confidence, 0.0)
	assert.NotEmpty(t, buildup.ID)
	assert.Equal(t, snap.Timestamp.Add(3*time.Hour), buildup.ValidUntil)
}

func TestConfidenceBounds(t *testing.T) {
	e := New(DefaultThresholds())

	// Extreme values on every leg exercise each analyzer's formula.
	chain := []models.StrikeSnapshot{
		{
			Strike: 24000,
			Call:   models.OptionLeg{OpenInterest: 2000000, OIChange: 900000, LastPriceChange: 300, Volume: 5000000},
			Put:    models.OptionLeg{OpenInterest: 3000000, OIChange: -900000, LastPriceChange: 250, Volume: 4000000},
		},
		{
			Strike: 24400,
			Call:   models.OptionLeg{OpenInterest: 4000000, OIChange: 800000, LastPriceChange: 400, Volume: 9000000},
			Put:    models.OptionLeg{OpenInterest: 1000000, OIChange: 700000, LastPriceChange: 350, Volume: 8000000},
		},
		{
			Strike: 26000,
			Call:   models.OptionLeg{OpenInterest: 5000000, OIChange: -950000, LastPriceChange: 500, Volume: 9500000},
			Put:    models.OptionLeg{OpenInterest: 2500000, OIChange: 600000, LastPriceChange: 450, Volume: 7000000},
		},
	}
	signals := e.Analyze(snapshot(chain, 24410, 23000))

	require.NotEmpty(t, signals)
	for _, sig := range signals {
		assert.GreaterOrEqual(t, sig.Confidence, 0.0, "signal %s", sig.Type)
		assert.LessOrEqual(t, sig.Confidence, 0.95, "signal %s", sig.Type)
	}
}

func TestSignalsSortedByConfidence(t *testing.T) {
	e := New(DefaultThresholds())
	chain := []models.StrikeSnapshot{
		{
			Strike: 24400,
			Call:   models.OptionLeg{OpenInterest: 500000, OIChange: 12000, LastPriceChange: 2, Volume: 5000},
			Put:    models.OptionLeg{OpenInterest: 600000, OIChange: 90000, LastPriceChange: 40, Volume: 80000},
		},
	}
	signals := e.Analyze(snapshot(chain, 24410, 24400))

	for i := 1; i < len(signals); i++ {
		assert.GreaterOrEqual(t, signals[i-1].Confidence, signals[i].Confidence)
	}
}

func TestAnalyzeEmptyChain(t *testing.T) {
	e := New(DefaultThresholds())
	assert.Nil(t, e.Analyze(snapshot(nil, 24400, 24300)))
	assert.Nil(t, e.Analyze(nil))
}

func TestAnalyzeZeroPricesDoesNotPanic(t *testing.T) {
	e := New(DefaultThresholds())
	chain := []models.StrikeSnapshot{
		{Strike: 24400, Call: models.OptionLeg{OpenInterest: 300000}},
	}

	assert.NotPanics(t, func() {
		e.Analyze(snapshot(chain, 0, 0))
	})
}

func TestMomentumRequiresFlowAgreement(t *testing.T) {
	e := New(DefaultThresholds())

	// Price up 3% but net OI flow is put-dominant, so no confirmation.
	chain := []models.StrikeSnapshot{
		{
			Strike: 24400,
			Call:   models.OptionLeg{OIChange: 1000},
			Put:    models.OptionLeg{OIChange: 50000},
		},
	}
	signals := e.Analyze(snapshot(chain, 24700, 24000))
	for _, sig := range signals {
		assert.NotEqual(t, models.SignalMomentum, sig.Type)
	}
}

func TestMaxPainDisplacementDirection(t *testing.T) {
	e := New(DefaultThresholds())
	chain := []models.StrikeSnapshot{
		{Strike: 24000, Call: models.OptionLeg{OpenInterest: 400000}, Put: models.OptionLeg{OpenInterest: 400000}},
		{Strike: 24400},
		{Strike: 24800},
	}

	// Price well above max pain (24000) implies bearish pull.
	signals := e.Analyze(snapshot(chain, 24800, 24800))
	var found bool
	for _, sig := range signals {
		if sig.Type == models.SignalMaxPain {
			found = true
			assert.Equal(t, models.DirectionBearish, sig.Direction)
			assert.Equal(t, 24000.0, sig.Strike)
		}
	}
	assert.True(t, found, "expected a max pain signal")
}
