package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBlacklistNoopWithoutClient(t *testing.T) {
	SetBlacklistClient(nil)
	ctx := context.Background()

	require.NoError(t, BlacklistToken(ctx, "tok", time.Hour))
	found, err := IsTokenBlacklisted(ctx, "tok")
	require.NoError(t, err)
	require.False(t, found)
}

func TestBlacklistRoundTrip(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer SetBlacklistClient(nil)
	ctx := context.Background()

	require.NoError(t, BlacklistToken(ctx, "tok-1", time.Hour))

	found, err := IsTokenBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, found)

	found, err = IsTokenBlacklisted(ctx, "tok-2")
	require.NoError(t, err)
	require.False(t, found)
}

func TestBlacklistEntryExpires(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer SetBlacklistClient(nil)
	ctx := context.Background()

	require.NoError(t, BlacklistToken(ctx, "tok", time.Second))
	m.FastForward(2 * time.Second)

	found, err := IsTokenBlacklisted(ctx, "tok")
	require.NoError(t, err)
	require.False(t, found, "blacklist entry should age out with the token")
}

func TestBlacklistSkipsExpiredTokens(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer SetBlacklistClient(nil)

	// nothing to revoke for a ttl that already passed
	require.NoError(t, BlacklistToken(context.Background(), "tok", -time.Minute))
	require.False(t, m.Exists(blacklistPrefix+"tok"))
}
