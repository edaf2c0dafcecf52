package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenKey is the gin context key holding the raw bearer token.
const TokenKey = "token"

// RevocationChecker reports whether a bearer token was revoked locally (logout).
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// BearerToken extracts `Authorization: Bearer <token>` and stores the token under TokenKey.
// The token is opaque here; the remote service decides whether it is valid.
// A nil checker skips the revocation lookup.
func BearerToken(rc RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}

		if rc != nil {
			revoked, err := rc.IsRevoked(c.Request.Context(), token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Token check failed"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token revoked"})
				return
			}
		}

		c.Set(TokenKey, token)
		c.Next()
	}
}

// bearerToken parses an Authorization header value of the form "Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
