package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/safevault/internal/config"
)

// fakeThrottleStore keeps counters and their expirations in memory so the
// throttle's redis interaction can be exercised without a server.
type fakeThrottleStore struct {
	counts map[string]int64
	ttls   map[string]time.Duration
	getErr error
}

func newFakeThrottleStore() *fakeThrottleStore {
	return &fakeThrottleStore{
		counts: make(map[string]int64),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeThrottleStore) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	count, ok := f.counts[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(strconv.FormatInt(count, 10), nil)
}

func (f *fakeThrottleStore) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeThrottleStore) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeThrottleStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := f.counts[key]; ok {
			removed++
		}
		delete(f.counts, key)
		delete(f.ttls, key)
	}
	return redis.NewIntResult(removed, nil)
}

func throttleConfig() config.AuthConfig {
	return config.AuthConfig{
		ThrottleEnabled:    true,
		ThrottleMaxFailed:  3,
		ThrottleWindowSec:  60,
		ThrottleLockoutSec: 900,
	}
}

func TestLoginThrottleDisabledWithoutClient(t *testing.T) {
	throttle := NewLoginThrottle(nil, config.AuthConfig{}, zap.NewNop())
	ctx := context.Background()

	assert.True(t, throttle.Allow(ctx, "alice"))
	throttle.RecordFailure(ctx, "alice")
	throttle.Reset(ctx, "alice")
	assert.True(t, throttle.Allow(ctx, "alice"))
}

func TestLoginThrottleAllowFailsOpenOnStoreError(t *testing.T) {
	store := newFakeThrottleStore()
	store.getErr = errors.New("connection refused")
	throttle := NewLoginThrottle(store, throttleConfig(), zap.NewNop())

	assert.True(t, throttle.Allow(context.Background(), "alice"))
}

func TestLoginThrottleFirstFailureStartsWindow(t *testing.T) {
	store := newFakeThrottleStore()
	throttle := NewLoginThrottle(store, throttleConfig(), zap.NewNop())
	ctx := context.Background()

	throttle.RecordFailure(ctx, "alice")

	key := throttleKeyPrefix + "alice"
	require.Equal(t, int64(1), store.counts[key])
	assert.Equal(t, 60*time.Second, store.ttls[key])
	assert.True(t, throttle.Allow(ctx, "alice"))
}

func TestLoginThrottleBlocksAtLimitAndExtendsLockout(t *testing.T) {
	store := newFakeThrottleStore()
	cfg := throttleConfig()
	throttle := NewLoginThrottle(store, cfg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < cfg.ThrottleMaxFailed; i++ {
		assert.True(t, throttle.Allow(ctx, "alice"), "attempt %d", i)
		throttle.RecordFailure(ctx, "alice")
	}

	key := throttleKeyPrefix + "alice"
	assert.Equal(t, int64(cfg.ThrottleMaxFailed), store.counts[key])
	assert.Equal(t, 900*time.Second, store.ttls[key])
	assert.False(t, throttle.Allow(ctx, "alice"))
}

func TestLoginThrottleResetClearsCounter(t *testing.T) {
	store := newFakeThrottleStore()
	cfg := throttleConfig()
	throttle := NewLoginThrottle(store, cfg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < cfg.ThrottleMaxFailed; i++ {
		throttle.RecordFailure(ctx, "alice")
	}
	require.False(t, throttle.Allow(ctx, "alice"))

	throttle.Reset(ctx, "alice")

	assert.True(t, throttle.Allow(ctx, "alice"))
	assert.NotContains(t, store.counts, throttleKeyPrefix+"alice")
}

func TestLoginThrottleTracksIdentifiersSeparately(t *testing.T) {
	store := newFakeThrottleStore()
	cfg := throttleConfig()
	throttle := NewLoginThrottle(store, cfg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < cfg.ThrottleMaxFailed; i++ {
		throttle.RecordFailure(ctx, "alice")
	}

	assert.False(t, throttle.Allow(ctx, "alice"))
	assert.True(t, throttle.Allow(ctx, "bob"))
}
