package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glucoview/glucoview/internal/refresh"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/pkg/logger"
)

// SessionStore is the persisted session; *sessions.Store satisfies it.
type SessionStore interface {
	Gate(ctx context.Context) (sessions.Verdict, *sessions.Session, error)
	Get(ctx context.Context) (*sessions.Session, error)
	Put(ctx context.Context, s *sessions.Session) error
	Clear(ctx context.Context) error
}

// Revoker records logged-out tokens; *sessions.Revocations satisfies it.
type Revoker interface {
	Revoke(ctx context.Context, token string, fallback time.Time) error
}

// Refresher is the running scheduler; *refresh.Scheduler satisfies it.
// Refresh must drop any cycle still running for a previous session.
type Refresher interface {
	Refresh() bool
	View() refresh.View
}

// SessionStatus is what the page needs to decide between login and the chart.
type SessionStatus struct {
	Verdict   sessions.Verdict `json:"verdict"`
	UserID    string           `json:"userId,omitempty"`
	AccountID string           `json:"accountId,omitempty"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
}

// SessionHandler serves the page API backed by the local session store.
type SessionHandler struct {
	store     SessionStore
	exchanger Exchanger
	revoker   Revoker
	refresher Refresher
}

func NewSessionHandler(store SessionStore, ex Exchanger, rev Revoker, r Refresher) *SessionHandler {
	return &SessionHandler{store: store, exchanger: ex, revoker: rev, refresher: r}
}

func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/session", h.Status)
	rg.POST("/session", h.Login)
	rg.DELETE("/session", h.Logout)
	rg.GET("/series", h.Series)
}

func statusOf(v sessions.Verdict, s *sessions.Session) SessionStatus {
	out := SessionStatus{Verdict: v}
	if v == sessions.Authenticated && s != nil {
		exp := s.ExpiresAt().UTC()
		out.UserID, out.AccountID, out.ExpiresAt = s.UserID, s.AccountID, &exp
	}
	return out
}

// Status gates on the stored session. An expired record is cleared as a side effect.
func (h *SessionHandler) Status(c *gin.Context) {
	v, s, err := h.store.Gate(c.Request.Context())
	if err != nil {
		logger.Errorf("session gate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	c.JSON(http.StatusOK, statusOf(v, s))
}

// Login reuses a still-valid session; otherwise it exchanges the credentials,
// persists the result and kicks the refresh cycle.
func (h *SessionHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	v, s, err := h.store.Gate(ctx)
	if err != nil {
		logger.Errorf("session gate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	if v == sessions.Authenticated {
		c.JSON(http.StatusOK, statusOf(v, s))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	s, err = h.exchanger.Exchange(ctx, req.Username, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	if err := h.store.Put(ctx, s); err != nil {
		logger.Errorf("persist session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}
	if h.refresher != nil {
		h.refresher.Refresh()
	}
	c.JSON(http.StatusOK, statusOf(sessions.Authenticated, s))
}

// Logout revokes the stored token locally and clears the record. It succeeds when
// there is nothing to clear.
func (h *SessionHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.store.Get(ctx)
	if err != nil {
		logger.Errorf("load session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	if s != nil && h.revoker != nil {
		if err := h.revoker.Revoke(ctx, s.Token, s.ExpiresAt()); err != nil {
			logger.Errorf("revoke token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
			return
		}
	}
	if err := h.store.Clear(ctx); err != nil {
		logger.Errorf("clear session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Series returns the latest scheduler view, or 401 with the verdict when the
// session does not pass the gate.
func (h *SessionHandler) Series(c *gin.Context) {
	v, _, err := h.store.Gate(c.Request.Context())
	if err != nil {
		logger.Errorf("session gate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}
	if v != sessions.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"verdict": v})
		return
	}
	if h.refresher == nil {
		c.JSON(http.StatusOK, refresh.View{State: refresh.Idle})
		return
	}
	c.JSON(http.StatusOK, h.refresher.View())
}
