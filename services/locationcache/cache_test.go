package locationcache

import (
	"context"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	if got := Key("  Near   the Big\tClock "); got != "near the big clock" {
		t.Fatalf("Key = %q", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "the clock tower", "Downtown"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "The  Clock Tower")
	if err != nil || !ok || got != "Downtown" {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "the clock tower"); ok {
		t.Fatal("Get after ttl: entry still present")
	}
}
