package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/safevault/internal/config"
)

const throttleKeyPrefix = "safevault:login_failed:"

// ThrottleStore is the subset of redis commands the throttle issues.
// *redis.Client satisfies it.
type ThrottleStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LoginThrottle counts failed login attempts per identifier in Redis and
// refuses further attempts once the limit is hit. Brute-force lockout is a
// deliberate addition on top of the core authentication flow; when Redis is
// unreachable the throttle fails open so logins never depend on the cache.
type LoginThrottle struct {
	client  ThrottleStore
	logger  *zap.Logger
	enabled bool
	max     int
	window  time.Duration
	lockout time.Duration
}

// NewLoginThrottle builds a throttle from config. A nil client or disabled
// config yields a throttle that allows everything.
func NewLoginThrottle(client ThrottleStore, cfg config.AuthConfig, logger *zap.Logger) *LoginThrottle {
	return &LoginThrottle{
		client:  client,
		logger:  logger,
		enabled: cfg.ThrottleEnabled && client != nil,
		max:     cfg.ThrottleMaxFailed,
		window:  time.Duration(cfg.ThrottleWindowSec) * time.Second,
		lockout: time.Duration(cfg.ThrottleLockoutSec) * time.Second,
	}
}

// Allow reports whether a login attempt for the identifier may proceed.
func (t *LoginThrottle) Allow(ctx context.Context, identifier string) bool {
	if !t.enabled {
		return true
	}
	count, err := t.client.Get(ctx, throttleKeyPrefix+identifier).Int()
	if err != nil {
		if err != redis.Nil {
			t.logger.Warn("throttle lookup failed, allowing attempt", zap.Error(err))
		}
		return true
	}
	return count < t.max
}

// RecordFailure increments the failure counter. The first failure starts the
// observation window; hitting the limit extends expiry to the lockout period.
func (t *LoginThrottle) RecordFailure(ctx context.Context, identifier string) {
	if !t.enabled {
		return
	}
	key := throttleKeyPrefix + identifier
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		t.logger.Warn("throttle increment failed", zap.Error(err))
		return
	}
	switch {
	case count == 1:
		t.client.Expire(ctx, key, t.window)
	case count >= int64(t.max):
		t.client.Expire(ctx, key, t.lockout)
	}
}

// Reset clears the failure counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, identifier string) {
	if !t.enabled {
		return
	}
	if err := t.client.Del(ctx, throttleKeyPrefix+identifier).Err(); err != nil {
		t.logger.Warn("throttle reset failed", zap.Error(err))
	}
}
