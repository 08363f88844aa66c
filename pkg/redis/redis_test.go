package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/surveyprogress/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() on disabled client error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(disabledClient(t), "surveyprogress")

	if cache.Enabled() {
		t.Error("Expected cache to be disabled")
	}

	if err := cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Errorf("Set() error = %v", err)
	}

	var dest map[string]int
	found, err := cache.Get(ctx, "k", &dest)
	if err != nil || found {
		t.Errorf("Get() = %v, %v; want miss without error", found, err)
	}

	if n, err := cache.Clear(ctx); err != nil || n != 0 {
		t.Errorf("Clear() = %d, %v", n, err)
	}

	if err := cache.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestCacheKeys(t *testing.T) {
	cache := NewCache(nil, "surveyprogress")

	if got := cache.fullKey(ResultKey("abc")); got != "surveyprogress:cache:estimate:abc" {
		t.Errorf("fullKey() = %s", got)
	}
	if cache.Enabled() {
		t.Error("nil client must report disabled")
	}
}
