package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/glucoview/glucoview/internal/credentials"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/pkg/logger"
)

// LoginRequest is the credential pair accepted by /api/auth and /api/session.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse mirrors the fields the page stores after a successful exchange.
type LoginResponse struct {
	Token     string `json:"token"`
	Duration  int64  `json:"duration"`
	UserID    string `json:"userId"`
	AccountID string `json:"accountId"`
}

// Exchanger turns credentials into a session; *credentials.Exchanger satisfies it.
type Exchanger interface {
	Exchange(ctx context.Context, username, password string) (*sessions.Session, error)
}

// AuthHandler is the stateless credential exchange proxy.
type AuthHandler struct {
	exchanger Exchanger
}

func NewAuthHandler(ex Exchanger) *AuthHandler {
	return &AuthHandler{exchanger: ex}
}

// Register routes under the given group (normally /api)
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth", h.Login)
}

// Login exchanges credentials and returns the remote token. Nothing is persisted here.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	sess, err := h.exchanger.Exchange(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		Token:     sess.Token,
		Duration:  sess.DurationMs,
		UserID:    sess.UserID,
		AccountID: sess.AccountID,
	})
}

// writeAuthError maps an exchange failure onto the proxy's error contract:
// the remote status is forwarded when there is one, otherwise 500.
func writeAuthError(c *gin.Context, err error) {
	var ae *credentials.AuthError
	if !errors.As(err, &ae) {
		logger.Errorf("Authentication error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	switch ae.Kind {
	case credentials.MissingCredentials:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
	case credentials.RemoteRejected:
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		body := gin.H{"error": "Authentication failed"}
		if len(ae.Details) > 0 {
			body["details"] = ae.Details
		}
		c.JSON(status, body)
	case credentials.Network:
		logger.Errorf("Authentication error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
	default:
		logger.Errorf("Authentication error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
