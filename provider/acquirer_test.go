package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionflow/models"
)

type fakeGateway struct {
	name     string
	quoteErr error
	chainErr error
	chain    []models.StrikeSnapshot
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) GetQuote(context.Context, string) (models.Quote, error) {
	if g.quoteErr != nil {
		return models.Quote{}, g.quoteErr
	}
	return models.Quote{LTP: 24450, Close: 24300}, nil
}

func (g *fakeGateway) GetOptionChain(context.Context, string, string) ([]models.StrikeSnapshot, error) {
	if g.chainErr != nil {
		return nil, g.chainErr
	}
	return g.chain, nil
}

func healthyChain() []models.StrikeSnapshot {
	return []models.StrikeSnapshot{
		{Strike: 24400, Call: models.OptionLeg{OpenInterest: 80000, Volume: 20000}},
	}
}

func healthFor(t *testing.T, r *Registry, name string) models.DataSourceHealth {
	t.Helper()
	for _, h := range r.Metrics() {
		if h.Name == name {
			return h
		}
	}
	t.Fatalf("no health entry for %s", name)
	return models.DataSourceHealth{}
}

func TestAcquireFallbackOrdering(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGateway{name: "A", quoteErr: &NetworkError{Provider: "A", Err: errors.New("down")}}, 1, true)
	r.Register(&fakeGateway{name: "B", chain: healthyChain()}, 2, true)

	a := NewAcquirer(r, time.Second)
	snap := a.Acquire(context.Background(), "NIFTY")

	require.NotNil(t, snap)
	assert.Equal(t, "B", snap.DataSource)
	assert.Equal(t, 24450.0, snap.CurrentPrice)
	assert.Equal(t, 24300.0, snap.PreviousPrice)

	assert.Equal(t, int64(1), healthFor(t, r, "A").FailedRequests)
	assert.Equal(t, int64(1), healthFor(t, r, "B").SuccessfulRequests)
}

func TestAcquireAllFail(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGateway{name: "A", quoteErr: errors.New("down")}, 1, true)
	r.Register(&fakeGateway{name: "B", chainErr: errors.New("down too")}, 2, true)

	a := NewAcquirer(r, time.Second)
	assert.Nil(t, a.Acquire(context.Background(), "NIFTY"))
}

func TestAcquireAuthFailureDeactivatesSource(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGateway{name: "A", quoteErr: &AuthError{Provider: "A", Err: errors.New("expired")}}, 1, true)
	r.Register(&fakeGateway{name: "B", chain: healthyChain()}, 2, true)

	a := NewAcquirer(r, time.Second)
	snap := a.Acquire(context.Background(), "NIFTY")

	require.NotNil(t, snap)
	assert.Equal(t, "B", snap.DataSource)
	assert.False(t, healthFor(t, r, "A").IsActive)

	// Next cycle never touches the deactivated source.
	sources := r.ActiveSources()
	require.Len(t, sources, 1)
	assert.Equal(t, "B", sources[0].Name())
}

func TestAcquireRejectsMalformedChain(t *testing.T) {
	r := NewRegistry()
	// Duplicate strikes violate the snapshot invariant.
	bad := []models.StrikeSnapshot{{Strike: 24400}, {Strike: 24400}}
	r.Register(&fakeGateway{name: "A", chain: bad}, 1, true)

	a := NewAcquirer(r, time.Second)
	assert.Nil(t, a.Acquire(context.Background(), "NIFTY"))
	assert.Equal(t, int64(1), healthFor(t, r, "A").FailedRequests)
}
