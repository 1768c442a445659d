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
			Name: "dm_http_requests_total",
			Help: "Total number of HTTP requests processed by the dm service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dm_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dm_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	pushedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_pushed_events_total",
			Help: "Total number of events enqueued to live connections.",
		},
		[]string{"type"},
	)
	droppedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_dropped_events_total",
			Help: "Total number of outbound events shed under backpressure.",
		},
		[]string{"type"},
	)
	messagesDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dm_messages_delivered_total",
			Help: "Total number of messages observed delivered to a live connection.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dm_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		pushedEventsTotal,
		droppedEventsTotal,
		messagesDeliveredTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
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

func IncWSActive()               { wsActiveConnections.Inc() }
func DecWSActive()               { wsActiveConnections.Dec() }
func IncWSEvent(event string)    { wsEventsTotal.WithLabelValues(event).Inc() }
func IncPushed(eventType string) { pushedEventsTotal.WithLabelValues(eventType).Inc() }
func IncDropped(eventType string) {
	droppedEventsTotal.WithLabelValues(eventType).Inc()
}
func IncMessagesDelivered() { messagesDeliveredTotal.Inc() }
func IncAMQPPublishError()  { amqpPublishErrorsTotal.Inc() }
