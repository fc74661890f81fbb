package core

import (
	"testing"
	"time"

	"github.com/giantswarm/resallocd/internal/store"
)

func TestShouldReclaim_NoOpportunityWindowAlwaysReclaims(t *testing.T) {
	cfg := PoolConfig{ReuseOpportunityTime: 0}
	if !shouldReclaim(cfg, store.Resource{}, 1000) {
		t.Fatal("reuse_opportunity_time == 0 must always reclaim")
	}
}

func TestShouldReclaim_ReleasedAtStale(t *testing.T) {
	cfg := PoolConfig{ReuseOpportunityTime: 10 * time.Second}
	old := int64(100)
	now := int64(1000)
	if !shouldReclaim(cfg, store.Resource{ReleasedAt: &old}, now) {
		t.Fatal("a released_at far in the past should be reclaimed")
	}
}

func TestShouldReclaim_WithinOpportunityWindow(t *testing.T) {
	cfg := PoolConfig{ReuseOpportunityTime: 1000 * time.Second}
	recent := int64(995)
	now := int64(1000)
	if shouldReclaim(cfg, store.Resource{ReleasedAt: &recent}, now) {
		t.Fatal("a recently released resource within the opportunity window must not be reclaimed")
	}
}

func TestShouldReclaim_SandboxedSinceStale(t *testing.T) {
	cfg := PoolConfig{ReuseOpportunityTime: 1000 * time.Second, ReuseMaxTime: 10 * time.Second}
	recent := int64(995)
	old := int64(100)
	now := int64(1000)
	r := store.Resource{ReleasedAt: &recent, SandboxedSince: &old}
	if !shouldReclaim(cfg, r, now) {
		t.Fatal("a sandbox held past reuse_max_time should be reclaimed")
	}
}

func TestShouldReclaim_ReleasesCounterExceedsMax(t *testing.T) {
	cfg := PoolConfig{ReuseOpportunityTime: 1000 * time.Second, ReuseMaxCount: 2}
	recent := int64(995)
	now := int64(1000)
	r := store.Resource{ReleasedAt: &recent, ReleasesCounter: 3}
	if !shouldReclaim(cfg, r, now) {
		t.Fatal("releases_counter beyond reuse_max_count should be reclaimed")
	}
}

func TestShouldReclaim_NoRuleMatches(t *testing.T) {
	cfg := PoolConfig{ReuseOpportunityTime: 1000 * time.Second, ReuseMaxCount: 5}
	recent := int64(995)
	now := int64(1000)
	r := store.Resource{ReleasedAt: &recent, ReleasesCounter: 1}
	if shouldReclaim(cfg, r, now) {
		t.Fatal("no rule should match, resource must not be reclaimed")
	}
}

func TestFormatName(t *testing.T) {
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	got := formatName("{pool_name}-{id}-{datetime}", "pool-a", 3, ts)
	want := "pool-a-00000003-20260731-120000"
	if got != want {
		t.Fatalf("formatName = %q, want %q", got, want)
	}
}
