package solana

import (
	"fmt"
	"sort"
	"time"
)

// ClusterConfig describes the endpoint pools and shared call state.
type ClusterConfig struct {
	Primary        []string
	Activity       []string
	HealthCooldown time.Duration
	MinInterval    time.Duration
}

// Cluster owns the endpoint pools together with the health tracker and the
// rate limiter they share. One Cluster is built at startup and injected into
// every client; nothing in this package keeps process-wide state.
type Cluster struct {
	pools   map[string]*Pool
	Health  *HealthTracker
	Limiter Limiter
}

// NewCluster builds the pools. An empty activity list reuses the primary
// endpoints under the activity name. An endpoint listed in both pools is rejected.
func NewCluster(cfg ClusterConfig) (*Cluster, error) {
	primary, err := NewPool(PoolPrimary, cfg.Primary)
	if err != nil {
		return nil, err
	}

	activityURLs := cfg.Activity
	shared := len(activityURLs) == 0
	if shared {
		activityURLs = cfg.Primary
	}
	activity, err := NewPool(PoolActivity, activityURLs)
	if err != nil {
		return nil, err
	}

	if !shared {
		inPrimary := make(map[string]struct{}, primary.Len())
		for _, e := range primary.endpoints {
			inPrimary[e] = struct{}{}
		}
		for _, e := range activity.endpoints {
			if _, ok := inPrimary[e]; ok {
				return nil, fmt.Errorf("%w: %s", ErrOverlappingPools, hostOf(e))
			}
		}
	}

	health := NewHealthTracker(cfg.HealthCooldown)
	for _, p := range []*Pool{primary, activity} {
		for i, e := range p.endpoints {
			if health.hasLabel(e) {
				continue
			}
			health.SetLabel(e, EndpointLabel(p.name, i, e))
		}
	}

	return &Cluster{
		pools: map[string]*Pool{
			PoolPrimary:  primary,
			PoolActivity: activity,
		},
		Health:  health,
		Limiter: NewMinIntervalLimiter(cfg.MinInterval),
	}, nil
}

// EndpointLabel names the i-th endpoint of a pool, e.g. "primary[1]:rpc.example.com".
func EndpointLabel(pool string, i int, endpoint string) string {
	return fmt.Sprintf("%s[%d]:%s", pool, i, hostOf(endpoint))
}

// Pool returns the named pool.
func (c *Cluster) Pool(name string) (*Pool, error) {
	p, ok := c.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}
	return p, nil
}

// PoolNames returns the configured pool names in sorted order.
func (c *Cluster) PoolNames() []string {
	names := make([]string, 0, len(c.pools))
	for name := range c.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
