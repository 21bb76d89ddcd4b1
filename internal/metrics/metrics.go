package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_messages_sent_total",
			Help: "Total messages sent through the gateway",
		},
		[]string{"kind"}, // "text" or "voice"
	)

	CommandSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_command_sends_total",
			Help: "Total canned-reply sends from the command catalog",
		},
	)

	UploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_uploads_total",
			Help: "Total voice blob uploads",
		},
	)

	UploadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_upload_failures_total",
			Help: "Total failed voice blob uploads",
		},
	)

	// Feed metrics
	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportchat_active_subscriptions",
			Help: "Currently open conversation subscriptions",
		},
	)

	SubscriptionReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_subscription_reconnects_total",
			Help: "Total bounded reconnect attempts on feed errors",
		},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supportchat_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	BackendLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supportchat_backend_latency_seconds",
			Help:    "REST backend request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)
