package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_sessions",
		Help: "Current number of sessions joined to the room",
	})
	Messages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of chat messages broadcast, attachments included",
	})
	MessagesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_muted_total",
		Help: "Total number of messages refused because the sender was muted",
	})
	ModerationActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_admin_commands_total",
		Help: "Total number of successful admin commands",
	}, []string{"command"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(Sessions, Messages, MessagesRejected, ModerationActions, HTTPRequestsTotal, HTTPRequestDuration)
}

// GinMiddleware records request counts and latencies.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HTTPRequestsTotal.With(labels).Inc()
		HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
