package provider

import (
	"sort"
	"sync"
	"time"

	"optionflow/logger"
	"optionflow/models"
)

type source struct {
	gateway  Gateway
	priority int
	active   bool

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	lastSuccess        time.Time
	lastFailure        time.Time
	totalLatencyMs     int64
}

// Registry holds the configured gateways in static priority order and tracks
// per-source health. Priorities come from configuration only; success rates
// never reorder the list.
type Registry struct {
	mu      sync.RWMutex
	sources []*source
	byName  map[string]*source
	log     *logger.Log
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*source),
		log:    logger.GetLogger(),
	}
}

// Register adds a gateway with its configured priority. Lower priority values
// are tried first.
func (r *Registry) Register(gw Gateway, priority int, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &source{gateway: gw, priority: priority, active: active}
	r.sources = append(r.sources, s)
	r.byName[gw.Name()] = s
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].priority < r.sources[j].priority
	})

	r.log.WithComponent("registry").WithFields(logger.Fields{
		"provider": gw.Name(),
		"priority": priority,
		"active":   active,
	}).Info("data source registered")
}

// ActiveSources returns the active gateways sorted ascending by priority.
func (r *Registry) ActiveSources() []Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Gateway, 0, len(r.sources))
	for _, s := range r.sources {
		if s.active {
			out = append(out, s.gateway)
		}
	}
	return out
}

// RecordOutcome updates the health counters for one provider call.
func (r *Registry) RecordOutcome(name string, success bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byName[name]
	if !ok {
		return
	}
	s.totalRequests++
	s.totalLatencyMs += latency.Milliseconds()
	if success {
		s.successfulRequests++
		s.lastSuccess = time.Now().UTC()
	} else {
		s.failedRequests++
		s.lastFailure = time.Now().UTC()
	}
}

// Deactivate removes a source from the fallback rotation, e.g. after an
// exhausted token refresh.
func (r *Registry) Deactivate(name string) {
	r.setActive(name, false)
}

// Activate returns a source to the rotation.
func (r *Registry) Activate(name string) {
	r.setActive(name, true)
}

func (r *Registry) setActive(name string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byName[name]; ok && s.active != active {
		s.active = active
		r.log.WithComponent("registry").WithFields(logger.Fields{
			"provider": name,
			"active":   active,
		}).Warn("data source availability changed")
	}
}

// Metrics returns a health snapshot per source in priority order.
func (r *Registry) Metrics() []models.DataSourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.DataSourceHealth, 0, len(r.sources))
	for _, s := range r.sources {
		h := models.DataSourceHealth{
			Name:               s.gateway.Name(),
			Priority:           s.priority,
			IsActive:           s.active,
			TotalRequests:      s.totalRequests,
			SuccessfulRequests: s.successfulRequests,
			FailedRequests:     s.failedRequests,
			LastSuccess:        s.lastSuccess,
			LastFailure:        s.lastFailure,
		}
		if s.totalRequests > 0 {
			h.AvgResponseTimeMs = float64(s.totalLatencyMs) / float64(s.totalRequests)
		}
		out = append(out, h)
	}
	return out
}
