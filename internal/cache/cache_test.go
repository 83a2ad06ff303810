package cache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them unchanged.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := `{"city":"Seattle","temperature":12.5,"condition":"Rain","humidity":80}`
	if err := c.Set(ctx, "Seattle2026-10-18", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "Seattle2026-10-18")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != val {
		t.Errorf("Get() = %q, want %q", got, val)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies absolute expiration: an entry is
// visible just before now+ttl and gone at now+ttl, and is removed on access.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	base := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "seattle", "v", 12*time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = base.Add(12*time.Hour - time.Second)
	if _, ok, _ := c.Get(ctx, "seattle"); !ok {
		t.Fatal("Get() ok = false before expiry, want true")
	}

	now = base.Add(12 * time.Hour)
	_, ok, err := c.Get(ctx, "seattle")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expired entry should be deleted", c.Len())
	}
}

func TestInMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	_ = c.Set(ctx, "paris", "v", time.Minute)

	if err := c.Delete(ctx, "paris"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "paris"); ok {
		t.Error("Get() ok = true after Delete")
	}
	if err := c.Delete(ctx, "paris"); err != nil {
		t.Errorf("Delete() of absent key error = %v, want nil", err)
	}
}

func TestInMemoryCache_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewInMemoryCache()

	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("Get() error = nil, want context error")
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err == nil {
		t.Error("Set() error = nil, want context error")
	}
	if c.Len() != 0 {
		t.Error("Set() with canceled context stored an entry")
	}
}

func TestInMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "k", "v", time.Minute)
			_, _, _ = c.Get(ctx, "k")
			_ = c.Delete(ctx, "k")
		}()
	}
	wg.Wait()
}

func TestStorageKey_EscapesSpaces(t *testing.T) {
	got := storageKey("New York2026-10-18")
	if got != "weather:New+York2026-10-18" {
		t.Errorf("storageKey() = %q", got)
	}
	for _, r := range got {
		if r <= ' ' || r == 0x7f {
			t.Fatalf("storageKey() contains control or space character: %q", got)
		}
	}
}

// TestStorageKey_LongCityFitsMemcachedLimit verifies keys whose escaped form exceeds
// the protocol limit are hashed to a stable, distinct key of legal length.
func TestStorageKey_LongCityFitsMemcachedLimit(t *testing.T) {
	long := strings.Repeat("東", 30) + "2026-10-18"
	if escaped := len(keyPrefix) + len(url.QueryEscape(long)); escaped <= maxKeyLength {
		t.Fatalf("escaped key is %d bytes, want over %d for this case", escaped, maxKeyLength)
	}

	got := storageKey(long)

	if len(got) > maxKeyLength {
		t.Errorf("len(storageKey()) = %d, want <= %d", len(got), maxKeyLength)
	}
	if !strings.HasPrefix(got, keyPrefix+"sha256:") {
		t.Errorf("storageKey() = %q, want sha256 form", got)
	}
	if again := storageKey(long); again != got {
		t.Errorf("storageKey() not stable: %q then %q", got, again)
	}
	if other := storageKey(strings.Repeat("東", 30) + "2026-10-19"); other == got {
		t.Error("different dates hashed to the same key")
	}
	for _, r := range got {
		if r <= ' ' || r == 0x7f {
			t.Fatalf("storageKey() contains control or space character: %q", got)
		}
	}
}

func TestStorageKey_AtLimitNotHashed(t *testing.T) {
	k := strings.Repeat("a", maxKeyLength-len(keyPrefix))
	if got := storageKey(k); got != keyPrefix+k {
		t.Errorf("storageKey() = %q, want unhashed key at exactly %d bytes", got, maxKeyLength)
	}
	if got := storageKey(k + "a"); !strings.HasPrefix(got, keyPrefix+"sha256:") {
		t.Errorf("storageKey() = %q, want sha256 form one byte over the limit", got)
	}
}

func TestExpirationSeconds(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	tests := []struct {
		name string
		ttl  time.Duration
		want int32
	}{
		{"twelve hours", 12 * time.Hour, 43200},
		{"sub-second rounds up to one", 10 * time.Millisecond, 1},
		{"beyond thirty days becomes absolute", 31 * 24 * time.Hour, int32(now.Add(31 * 24 * time.Hour).Unix())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expirationSeconds(tt.ttl, now); got != tt.want {
				t.Errorf("expirationSeconds(%v) = %d, want %d", tt.ttl, got, tt.want)
			}
		})
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" host1:11211, ,host2:11211 ")
	if len(got) != 2 || got[0] != "host1:11211" || got[1] != "host2:11211" {
		t.Errorf("parseAddrs() = %v", got)
	}
}
