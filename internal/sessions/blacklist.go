// Package sessions provides the optional Redis-backed access-token
// blacklist used by logout. Without Redis a logged-out token simply stays
// valid until it expires.
package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:access:"

// package-level Redis client used for the token blacklist (optional)
var blacklistClient *redis.Client

// SetBlacklistClient configures the Redis client used for blacklist
// operations. Safe to call with nil to disable blacklisting.
func SetBlacklistClient(c *redis.Client) {
	blacklistClient = c
}

// BlacklistToken stores the token in Redis for its remaining lifetime.
// A no-op returning nil when no Redis client is configured.
func BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	if blacklistClient == nil || ttl <= 0 {
		return nil
	}
	return blacklistClient.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether the token was revoked by logout.
// Returns (false, nil) when no Redis client is configured.
func IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if blacklistClient == nil {
		return false, nil
	}
	n, err := blacklistClient.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
