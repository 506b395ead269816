package cache

import (
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/costwise/internal/clock"
)

const defaultOverviewTTL = 5 * time.Minute

// OverviewCache stores computed cost-overview snapshots keyed by query params.
// It is constructed once per process and passed by reference, never used as a
// package-level singleton, so tests can inject a FakeClock.
type OverviewCache struct {
	entries Cache[string, map[string]any]
	ttl     time.Duration
}

// NewOverviewCache returns an overview snapshot cache tuned for dashboard reads.
func NewOverviewCache(clk clock.Clock) *OverviewCache {
	return &OverviewCache{
		entries: NewTTLCache[string, map[string]any](clk),
		ttl:     defaultOverviewTTL,
	}
}

func (c *OverviewCache) Get(tenantID string, params map[string]string) (map[string]any, bool) {
	return c.entries.Get(overviewKey(tenantID, params))
}

func (c *OverviewCache) Set(tenantID string, params map[string]string, snapshot map[string]any) {
	if snapshot == nil {
		return
	}
	c.entries.Set(overviewKey(tenantID, params), snapshot, c.ttl)
}

func (c *OverviewCache) Invalidate(tenantID string, params map[string]string) {
	c.entries.Delete(overviewKey(tenantID, params))
}

func overviewKey(tenantID string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, strings.TrimSpace(tenantID))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "|")
}
