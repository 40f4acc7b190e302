package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/middleware"
	"chat-client/internal/observability"
	"chat-client/internal/session"
	"chat-client/internal/telemetry"
)

const healthTimeout = 3 * time.Second

type StatusProvider interface {
	Snapshot() session.Snapshot
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

// AdminConfig configures the local admin listener.
type AdminConfig struct {
	ServiceName string
	Token       string
	Debug       bool
	Emitter     *telemetry.AuditEmitter
}

type AdminHandler struct {
	status  StatusProvider
	backend HealthChecker
}

func NewAdminHandler(status StatusProvider, backend HealthChecker) *AdminHandler {
	return &AdminHandler{status: status, backend: backend}
}

// NewRouter builds the admin router: /healthz, /status, /metrics and, when
// enabled, the debug routes.
func NewRouter(status StatusProvider, backend HealthChecker, cfg AdminConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(requestIDMiddleware())

	h := NewAdminHandler(status, backend)
	router.GET("/healthz", h.Health)
	router.GET("/status", middleware.AdminTokenMiddleware(cfg.Token), h.Status)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterDebugRoutes(router, cfg.Emitter, cfg.Debug)
	return router
}

// Health reports the backend reachability and the socket state. An
// unreachable backend yields 502.
func (h *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	state := h.status.Snapshot().State
	if err := h.backend.Health(ctx); err != nil {
		log.Printf("admin: backend health check failed request_id=%s: %v", requestIDFromContext(c), err)
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "degraded",
			"backend": "unreachable",
			"session": state,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": "ok", "session": state})
}

func (h *AdminHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Snapshot())
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		detail := fmt.Sprintf("request_id=%s ip=%s", requestIDFromContext(c), observability.IPFromRequest(c.Request))
		emitter.Emit(c.Request.Context(), "", "debug.audit_test", "success", detail)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
