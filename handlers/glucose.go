package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/glucoview/glucoview/internal/libre"
	"github.com/glucoview/glucoview/pkg/logger"
	"github.com/glucoview/glucoview/pkg/middleware"
)

// GraphSource performs the upstream graph call; *libre.Client satisfies it.
type GraphSource interface {
	Graph(ctx context.Context, token, userID, accountID string) (*libre.Response, error)
}

// GlucoseHandler proxies graph reads for callers holding their own token.
type GlucoseHandler struct {
	src  GraphSource
	auth gin.HandlerFunc
}

// NewGlucoseHandler takes the bearer middleware so the header check runs before
// parameter validation.
func NewGlucoseHandler(src GraphSource, auth gin.HandlerFunc) *GlucoseHandler {
	if auth == nil {
		auth = middleware.BearerToken(nil)
	}
	return &GlucoseHandler{src: src, auth: auth}
}

func (h *GlucoseHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/glucose", h.auth, h.Graph)
}

// Graph forwards the remote body verbatim on success.
func (h *GlucoseHandler) Graph(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	userID := c.Query("userId")
	accountID := c.Query("accountId")
	if userID == "" || accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and accountId are required"})
		return
	}

	resp, err := h.src.Graph(c.Request.Context(), token, userID, accountID)
	if err != nil {
		logger.Errorf("Error fetching glucose data: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch glucose data"})
		return
	}
	if !resp.OK() {
		logger.Warnf("glucose upstream returned %d for user %s", resp.Status, userID)
		body := gin.H{"error": "Failed to fetch glucose data"}
		if len(resp.Body) > 0 && json.Valid(resp.Body) {
			body["details"] = json.RawMessage(resp.Body)
		}
		c.JSON(resp.Status, body)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Body)
}
