package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "club_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "club_chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsAnonymousConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "club_chat_ws_anonymous_connections",
			Help: "Number of active websocket connections without a verified identity.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_chat_ws_events_total",
			Help: "Total number of websocket lifecycle and dispatch events.",
		},
		[]string{"event"},
	)
	wsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "club_chat_ws_dropped_connections_total",
			Help: "Connections dropped because their outbound queue was full or a write failed.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "club_chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsAnonymousConnections,
		wsEventsTotal,
		wsDroppedTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records per-route request counts and latencies.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive()         { wsActiveConnections.Inc() }
func DecWSActive()         { wsActiveConnections.Dec() }
func IncWSAnonymous()      { wsAnonymousConnections.Inc() }
func DecWSAnonymous()      { wsAnonymousConnections.Dec() }
func IncWSDropped()        { wsDroppedTotal.Inc() }
func IncWSEvent(ev string) { wsEventsTotal.WithLabelValues(ev).Inc() }
func IncAMQPPublishError() { amqpPublishErrorsTotal.Inc() }
