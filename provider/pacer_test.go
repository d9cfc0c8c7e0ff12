package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerEnforcesSpacing(t *testing.T) {
	interval := 20 * time.Millisecond
	p := NewPacer(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	elapsed := time.Since(start)

	// Five calls need at least four full spacing intervals.
	assert.GreaterOrEqual(t, elapsed, 4*interval)
}

func TestPacerWaitHonorsCancellation(t *testing.T) {
	p := NewPacer(time.Minute)
	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, p.Wait(cancelled))
}

func TestPacerDefaultsInterval(t *testing.T) {
	p := NewPacer(0)
	require.NoError(t, p.Wait(context.Background()))
}
