package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func serveBearer(t *testing.T, rc RevocationChecker, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	g := gin.New()
	var seen string
	g.GET("/", BearerToken(rc), func(c *gin.Context) {
		seen = c.GetString(TokenKey)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw, seen
}

func TestBearerToken_NoHeader(t *testing.T) {
	rw, _ := serveBearer(t, nil, "")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.JSONEq(t, `{"error":"No authorization token provided"}`, rw.Body.String())
}

func TestBearerToken_Malformed(t *testing.T) {
	for _, h := range []string{"BadHeader", "Basic abc", "Bearer ", "Bearer"} {
		rw, _ := serveBearer(t, nil, h)
		require.Equal(t, http.StatusUnauthorized, rw.Code, h)
	}
}

func TestBearerToken_PassesOpaqueToken(t *testing.T) {
	rw, seen := serveBearer(t, nil, "Bearer T-123")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "T-123", seen)
}

func TestBearerToken_RejectsRevokedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	rev := sessions.NewRevocations(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	require.NoError(t, rev.Revoke(context.Background(), "black-token", time.Now().Add(time.Minute)))

	rw, _ := serveBearer(t, rev, "Bearer black-token")
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw, _ = serveBearer(t, rev, "Bearer other-token")
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestRequestID(t *testing.T) {
	g := gin.New()
	g.Use(RequestID())
	g.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rw.Header().Get(RequestIDHeader))
	require.Equal(t, rw.Header().Get(RequestIDHeader), rw.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, "abc", rw.Header().Get(RequestIDHeader))
}
