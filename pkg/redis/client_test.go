package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beateur/ninowash-backend/pkg/config"
)

type fakeCmdable struct {
	setNXCalls map[string]bool
}

func (f *fakeCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringResult("1", nil)
}

func (f *fakeCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if f.setNXCalls == nil {
		f.setNXCalls = map[string]bool{}
	}
	first := !f.setNXCalls[key]
	f.setNXCalls[key] = true
	return redis.NewBoolResult(first, nil)
}

func (f *fakeCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	c := &Client{store: &fakeCmdable{}}
	key := c.IdempotencyKey("stripe_webhook", "evt_123")
	want := "nw:idempotency:stripe_webhook:evt_123"
	if key != want {
		t.Fatalf("expected %q, got %q", want, key)
	}
}

func TestSetNXFirstWriteWins(t *testing.T) {
	c := &Client{store: &fakeCmdable{}}
	ctx := context.Background()

	first, err := c.SetNX(ctx, "k", "1", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first SetNX to succeed, got %v %v", first, err)
	}
	second, err := c.SetNX(ctx, "k", "1", time.Minute)
	if err != nil || second {
		t.Fatalf("expected second SetNX to lose, got %v %v", second, err)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither url nor address is set")
	}
	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", PoolSize: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.PoolSize != 5 {
		t.Fatalf("expected pool size carried over, got %d", opts.PoolSize)
	}
}
