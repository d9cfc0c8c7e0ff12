package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the spacing applied when a provider does not
// configure its own.
const DefaultMinInterval = 2 * time.Second

// Pacer serializes all outgoing calls for one provider instance and enforces
// a minimum interval between consecutive requests. Callers queue and block;
// they are never rejected, so upstream request quotas hold no matter how many
// goroutines share the gateway.
type Pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Wait blocks until the caller may issue the next request or ctx is done.
// The mutex keeps waiters strictly ordered so requests go out one at a time.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter.Wait(ctx)
}
