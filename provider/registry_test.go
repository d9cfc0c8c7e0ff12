package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionflow/models"
)

type stubGateway struct {
	name string
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) GetQuote(context.Context, string) (models.Quote, error) {
	return models.Quote{}, nil
}

func (g *stubGateway) GetOptionChain(context.Context, string, string) ([]models.StrikeSnapshot, error) {
	return nil, nil
}

func TestActiveSourcesPriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubGateway{name: "backup"}, 2, true)
	r.Register(&stubGateway{name: "primary"}, 1, true)
	r.Register(&stubGateway{name: "disabled"}, 3, false)

	sources := r.ActiveSources()
	require.Len(t, sources, 2)
	assert.Equal(t, "primary", sources[0].Name())
	assert.Equal(t, "backup", sources[1].Name())
}

func TestDeactivateAndActivate(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubGateway{name: "primary"}, 1, true)

	r.Deactivate("primary")
	assert.Empty(t, r.ActiveSources())

	r.Activate("primary")
	assert.Len(t, r.ActiveSources(), 1)
}

func TestRecordOutcomeCounters(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubGateway{name: "primary"}, 1, true)

	r.RecordOutcome("primary", true, 120*time.Millisecond)
	r.RecordOutcome("primary", false, 80*time.Millisecond)
	r.RecordOutcome("unknown", true, time.Millisecond)

	metrics := r.Metrics()
	require.Len(t, metrics, 1)
	m := metrics[0]
	assert.Equal(t, int64(2), m.TotalRequests)
	assert.Equal(t, int64(1), m.SuccessfulRequests)
	assert.Equal(t, int64(1), m.FailedRequests)
	assert.InDelta(t, 100.0, m.AvgResponseTimeMs, 0.001)
	assert.False(t, m.LastSuccess.IsZero())
	assert.False(t, m.LastFailure.IsZero())
}
