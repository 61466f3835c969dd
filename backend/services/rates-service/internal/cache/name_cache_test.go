package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type countingSource struct {
	names map[int64]string
	calls int
}

func (s *countingSource) DisplayName(_ context.Context, userID int64) (string, error) {
	s.calls++
	name, ok := s.names[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return name, nil
}

func setupCache(t *testing.T, source Source) (*NameCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewNameCache(client, source, time.Minute, zap.NewNop()), s
}

func TestNameCacheReadThrough(t *testing.T) {
	source := &countingSource{names: map[int64]string{7: "Ana"}}
	cache, s := setupCache(t, source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		name, err := cache.DisplayName(ctx, 7)
		if err != nil {
			t.Fatalf("DisplayName failed: %v", err)
		}
		if name != "Ana" {
			t.Fatalf("expected Ana, got %q", name)
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected one source lookup, got %d", source.calls)
	}
	if got, _ := s.Get("rates:user-name:7"); got != "Ana" {
		t.Fatalf("expected cached value, got %q", got)
	}
}

func TestNameCacheExpires(t *testing.T) {
	source := &countingSource{names: map[int64]string{7: "Ana"}}
	cache, s := setupCache(t, source)
	ctx := context.Background()

	if _, err := cache.DisplayName(ctx, 7); err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	s.FastForward(2 * time.Minute)
	if _, err := cache.DisplayName(ctx, 7); err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected lookup after expiry, got %d calls", source.calls)
	}
}

func TestNameCacheDoesNotStoreMisses(t *testing.T) {
	source := &countingSource{}
	cache, s := setupCache(t, source)

	if _, err := cache.DisplayName(context.Background(), 9); err == nil {
		t.Fatalf("expected miss to surface source error")
	}
	if s.Exists("rates:user-name:9") {
		t.Fatalf("misses must not be cached")
	}
}

func TestNameCacheSurvivesRedisOutage(t *testing.T) {
	source := &countingSource{names: map[int64]string{7: "Ana"}}
	cache, s := setupCache(t, source)
	s.Close()

	name, err := cache.DisplayName(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected fallback to source, got %v", err)
	}
	if name != "Ana" {
		t.Fatalf("expected Ana, got %q", name)
	}
}
