package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/cmdclient/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Admin is the http surface next to a command listener.
type Admin struct {
	ID       string
	Addr     string
	Appeared time.Time

	recorder *Recorder
	server   *Server
	router   *gin.Engine
}

func NewAdmin(id, addr string, corsOrigins []string, srv *Server, rec *Recorder) *Admin {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		recorder: rec,
		server:   srv,
		router:   r,
	}
	a.registerRoutes()
	return a
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.ID,
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		ready := a.server != nil && a.server.Addr() != nil
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		body := gin.H{"ready": ready, "service": a.ID}
		if ready {
			body["listen"] = a.server.Addr().String()
		}
		c.JSON(status, body)
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/commands", func(c *gin.Context) {
		if a.recorder == nil {
			c.JSON(http.StatusOK, gin.H{"commands": []Received{}})
			return
		}
		items := a.recorder.Snapshot()
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			if n < len(items) {
				items = items[len(items)-n:]
			}
		}
		c.JSON(http.StatusOK, gin.H{"commands": items})
	})
}

// Serve blocks serving the admin router on Addr.
func (a *Admin) Serve() error {
	return a.router.Run(a.Addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
