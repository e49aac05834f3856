package cache

import (
	"testing"
	"time"
)

func TestGetEvictsExpiredEntries(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	c.Set("ltp", 123.45, 2*time.Second)

	if v, ok := c.Get("ltp"); !ok || v.(float64) != 123.45 {
		t.Fatalf("Get before expiry = %v, %v", v, ok)
	}

	now = now.Add(3 * time.Second)
	if _, ok := c.Get("ltp"); ok {
		t.Fatal("expired entry still served")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not evicted, len = %d", c.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	c.Set("token", "abc", 0)
	now = now.Add(24 * time.Hour)

	if v, ok := c.Get("token"); !ok || v.(string) != "abc" {
		t.Fatalf("entry without TTL expired: %v, %v", v, ok)
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Set("k", 1, time.Minute)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestSetOverwrites(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	c.Set("k", 1, time.Second)
	c.Set("k", 2, time.Minute)
	now = now.Add(30 * time.Second)

	if v, ok := c.Get("k"); !ok || v.(int) != 2 {
		t.Fatalf("overwrite not honored: %v, %v", v, ok)
	}
}
