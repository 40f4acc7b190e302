package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_backend_requests_total",
			Help: "Total number of HTTP requests sent to the chat backend.",
		},
		[]string{"method", "route", "status"},
	)
	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_backend_request_duration_seconds",
			Help:    "Chat backend request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	adminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_admin_http_requests_total",
			Help: "Total number of HTTP requests served by the admin listener.",
		},
		[]string{"method", "route", "status"},
	)
	wsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_ws_connected",
			Help: "1 while the realtime socket is open.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_ws_events_total",
			Help: "Total number of realtime connection lifecycle events.",
		},
		[]string{"event"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_frames_total",
			Help: "Total number of realtime frames by direction and type.",
		},
		[]string{"direction", "type"},
	)
	echoSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_echo_suppressed_total",
			Help: "Inbound messages dropped because they echo a local send.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		backendRequestsTotal,
		backendRequestDuration,
		adminRequestsTotal,
		wsConnected,
		wsEventsTotal,
		framesTotal,
		echoSuppressedTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware counts admin listener requests.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		adminRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// ObserveBackendRequest records one backend call. status is 0 when no
// response was received.
func ObserveBackendRequest(method, route string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	backendRequestsTotal.WithLabelValues(method, route, code).Inc()
	backendRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func SetWSConnected(connected bool) {
	if connected {
		wsConnected.Set(1)
		return
	}
	wsConnected.Set(0)
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncFrame(direction, frameType string) {
	framesTotal.WithLabelValues(direction, frameType).Inc()
}

func IncEchoSuppressed() {
	echoSuppressedTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
