package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Revocations remembers logged-out bearer tokens so the local proxy stops forwarding them.
// A nil client turns every method into a no-op.
type Revocations struct {
	client *redis.Client
	prefix string
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client, prefix: "glucoview:revoked:"}
}

func (r *Revocations) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Revoke records token until it would have expired anyway. The lifetime comes from the
// token's exp claim when it is a JWT, otherwise from fallback.
func (r *Revocations) Revoke(ctx context.Context, token string, fallback time.Time) error {
	if r == nil || r.client == nil || token == "" {
		return nil
	}
	exp := tokenExpiry(token)
	if exp.IsZero() {
		exp = fallback
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.key(token), "1", ttl).Err()
}

// IsRevoked returns true when the token was revoked and has not yet expired.
func (r *Revocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// tokenExpiry reads exp without verifying the signature; the upstream signing key is not ours.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
