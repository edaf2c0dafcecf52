package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glucoview/glucoview/handlers"
	"github.com/glucoview/glucoview/internal/config"
	"github.com/glucoview/glucoview/pkg/metrics"
	"github.com/glucoview/glucoview/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

// cors is the permissive policy the local page needs; it is served from another port in dev.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (a *App) setupRouter(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), cors(), gin.Logger(), gin.Recovery())

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.infra.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(a.infra.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		deps, ok := a.infra.Ready(c.Request.Context())
		view := a.Scheduler.View()
		body := gin.H{"deps": deps, "refresh": view.State, "uptime": time.Since(startTime).String()}
		if !ok {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})

	// own registry so several apps (tests) can coexist in one process
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterSwagger(r)

	api := r.Group("/api")
	handlers.NewAuthHandler(a.exchanger).Register(api)
	handlers.NewGlucoseHandler(a.libre, middleware.BearerToken(a.revocations)).Register(api)
	handlers.NewSessionHandler(a.Store, a.exchanger, a.revocations, a.Scheduler).Register(api)
	return r
}
