package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gov_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gov_http_request_duration_seconds",
		Help:    "Latency of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gov_bookings_total",
		Help: "Slot reservation attempts by department and result.",
	}, []string{"department", "result"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gov_appointment_status_transitions_total",
		Help: "Appointment status changes by department and target status.",
	}, []string{"department", "to"})

	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gov_notification_deliveries_total",
		Help: "Notification delivery attempts by channel and result.",
	}, []string{"channel", "result"})

	AnalyticsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gov_analytics_events_total",
		Help: "Analytics events by type and result.",
	}, []string{"type", "result"})

	SideTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gov_side_tasks_total",
		Help: "Async side-channel tasks by name and result.",
	}, []string{"task", "result"})

	TaskQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gov_side_task_queue_depth",
		Help: "Tasks currently waiting in the side-channel queue.",
	})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gov_realtime_connections",
		Help: "Open realtime websocket connections on this instance.",
	})
)
