//go:build integration

package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/alice-bridge/internal/infrastructure/config"
)

// Requires Redis 7.4+ at 127.0.0.1:6379.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/kvstore/...

func TestIntegration_RedisFieldExpiry(t *testing.T) {
	ctx := context.Background()
	r, err := NewRedis(ctx, config.RedisConfig{Address: "127.0.0.1:6379", DB: 15})
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer r.Close()

	const hash = "alicebridge-int-topics"
	defer r.client.Del(ctx, hash)

	if err := r.HSet(ctx, hash, "a", "on"); err != nil {
		t.Fatalf("HSet() error = %v", err)
	}
	if err := r.HSet(ctx, hash, "b", "off"); err != nil {
		t.Fatalf("HSet() error = %v", err)
	}
	if err := r.HExpire(ctx, hash, "a", time.Second); err != nil {
		t.Fatalf("HExpire() error = %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, ok, err := r.HGet(ctx, hash, "a"); err != nil || ok {
		t.Errorf("HGet(a) = ok %v, err %v, want expired", ok, err)
	}
	if v, ok, err := r.HGet(ctx, hash, "b"); err != nil || !ok || v != "off" {
		t.Errorf("HGet(b) = %q, %v, %v", v, ok, err)
	}
}
