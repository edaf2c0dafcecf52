package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "U1", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return s
}

func TestRevocations_UsesJWTExpiry(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	rev := NewRevocations(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()
	token := signedToken(t, time.Now().Add(time.Hour))

	require.NoError(t, rev.Revoke(ctx, token, time.Now().Add(time.Second)))
	ok, err := rev.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)

	// the fallback (1s) is ignored when the token carries exp
	m.FastForward(5 * time.Second)
	ok, err = rev.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)

	m.FastForward(2 * time.Hour)
	ok, err = rev.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevocations_OpaqueTokenUsesFallback(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	rev := NewRevocations(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()

	require.NoError(t, rev.Revoke(ctx, "opaque", time.Now().Add(10*time.Second)))
	ok, err := rev.IsRevoked(ctx, "opaque")
	require.NoError(t, err)
	require.True(t, ok)

	// already expired: nothing stored
	require.NoError(t, rev.Revoke(ctx, "stale", time.Now().Add(-time.Second)))
	ok, err = rev.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevocations_NoClientNoop(t *testing.T) {
	rev := NewRevocations(nil)
	ctx := context.Background()
	require.NoError(t, rev.Revoke(ctx, "t", time.Now().Add(time.Minute)))
	ok, err := rev.IsRevoked(ctx, "t")
	require.NoError(t, err)
	require.False(t, ok)
}
