package solana

import (
	"sync"
	"time"

	"solana-holder-scan/internal/observability"
)

// DefaultHealthCooldown is how long an endpoint stays unhealthy after a failure.
const DefaultHealthCooldown = 45 * time.Second

// HealthRecord is the health state of one endpoint.
type HealthRecord struct {
	Healthy      bool      `json:"healthy"`
	LastFailure  time.Time `json:"lastFailure,omitempty"`
	LastSuccess  time.Time `json:"lastSuccess,omitempty"`
	FailureCount int       `json:"failureCount"`
}

// HealthTracker keeps per-endpoint health records shared by all requests.
// Unhealthy endpoints recover on their own once the cool-down has elapsed.
type HealthTracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	records  map[string]*HealthRecord
	labels   map[string]string
	now      func() time.Time
}

// NewHealthTracker creates a tracker with the given cool-down.
func NewHealthTracker(cooldown time.Duration) *HealthTracker {
	if cooldown <= 0 {
		cooldown = DefaultHealthCooldown
	}
	return &HealthTracker{
		cooldown: cooldown,
		records:  make(map[string]*HealthRecord),
		labels:   make(map[string]string),
		now:      time.Now,
	}
}

// IsHealthy reports whether the endpoint may be selected.
func (h *HealthTracker) IsHealthy(endpoint string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.records[endpoint]
	if !ok || rec.Healthy {
		return true
	}
	if h.now().Sub(rec.LastFailure) >= h.cooldown {
		rec.Healthy = true
		observability.SetEndpointHealth(h.labelLocked(endpoint), true)
		return true
	}
	return false
}

// MarkFailure records a failed attempt against the endpoint.
func (h *HealthTracker) MarkFailure(endpoint string) {
	h.mu.Lock()
	rec := h.record(endpoint)
	rec.Healthy = false
	rec.LastFailure = h.now()
	rec.FailureCount++
	label := h.labelLocked(endpoint)
	h.mu.Unlock()

	observability.SetEndpointHealth(label, false)
}

// MarkSuccess records a successful call against the endpoint.
func (h *HealthTracker) MarkSuccess(endpoint string) {
	h.mu.Lock()
	rec := h.record(endpoint)
	rec.Healthy = true
	rec.LastSuccess = h.now()
	rec.FailureCount = 0
	label := h.labelLocked(endpoint)
	h.mu.Unlock()

	observability.SetEndpointHealth(label, true)
}

// Record returns a copy of the endpoint's record and whether one exists.
func (h *HealthTracker) Record(endpoint string) (HealthRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.records[endpoint]
	if !ok {
		return HealthRecord{}, false
	}
	return *rec, true
}

// Snapshot returns copies of all records keyed by endpoint label.
func (h *HealthTracker) Snapshot() map[string]HealthRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]HealthRecord, len(h.records))
	for endpoint, rec := range h.records {
		out[h.labelLocked(endpoint)] = *rec
	}
	return out
}

// SetLabel names endpoint in /status and metrics. Endpoint URLs carry API
// keys, so they are never used as labels themselves.
func (h *HealthTracker) SetLabel(endpoint, label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.labels[endpoint] = label
}

// Label returns the label of endpoint, or its host when none was set.
func (h *HealthTracker) Label(endpoint string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.labelLocked(endpoint)
}

func (h *HealthTracker) hasLabel(endpoint string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.labels[endpoint]
	return ok
}

func (h *HealthTracker) labelLocked(endpoint string) string {
	if label, ok := h.labels[endpoint]; ok {
		return label
	}
	return hostOf(endpoint)
}

// record must be called with mu held.
func (h *HealthTracker) record(endpoint string) *HealthRecord {
	rec, ok := h.records[endpoint]
	if !ok {
		rec = &HealthRecord{Healthy: true}
		h.records[endpoint] = rec
	}
	return rec
}
