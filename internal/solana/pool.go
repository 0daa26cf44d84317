package solana

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

// Pool names.
const (
	// PoolPrimary serves balance, token account and program account calls.
	PoolPrimary = "primary"
	// PoolActivity serves signature and transaction lookups.
	PoolActivity = "activity"
)

// Pool is a named, ordered set of interchangeable RPC endpoints.
// Endpoints are immutable after construction.
type Pool struct {
	name      string
	endpoints []string
	counter   atomic.Uint64
}

// NewPool creates a pool, dropping blanks and duplicates.
// An empty result is an error: callers treat it as fatal at startup.
func NewPool(name string, endpoints []string) (*Pool, error) {
	seen := make(map[string]struct{}, len(endpoints))
	cleaned := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		cleaned = append(cleaned, e)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("pool %q: %w", name, ErrEmptyPool)
	}
	return &Pool{name: name, endpoints: cleaned}, nil
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Len returns the number of endpoints.
func (p *Pool) Len() int {
	return len(p.endpoints)
}

// Endpoints returns a copy of the endpoint list.
func (p *Pool) Endpoints() []string {
	out := make([]string, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// Next returns endpoints in round-robin order.
func (p *Pool) Next() string {
	n := p.counter.Add(1) - 1
	return p.endpoints[n%uint64(len(p.endpoints))]
}

// Select picks the next endpoint that was not used earlier in the current
// attempt sequence and is currently healthy. When nothing qualifies it falls
// back to plain round-robin so a degraded pool still makes progress.
func (p *Pool) Select(used map[string]struct{}, health *HealthTracker) string {
	for i := 0; i < len(p.endpoints); i++ {
		candidate := p.Next()
		if _, ok := used[candidate]; ok {
			continue
		}
		if health != nil && !health.IsHealthy(candidate) {
			continue
		}
		return candidate
	}
	return p.Next()
}

// hostOf returns the host part of an endpoint for logs and metric labels.
// API keys usually live in the path or query and are dropped.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "invalid-endpoint"
	}
	return u.Host
}
