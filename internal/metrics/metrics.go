package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labinventory_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labinventory_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	borrowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labinventory_borrow_transitions_total",
		Help: "Count of committed borrow status transitions",
	}, []string{"from", "to", "trigger"})

	reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labinventory_item_reservations_total",
		Help: "Count of item reservation attempts by result",
	}, []string{"result"})

	schedulerPassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labinventory_scheduler_pass_duration_seconds",
		Help:    "Duration of scheduler passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass", "result"})

	schedulerRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labinventory_scheduler_records_total",
		Help: "Borrow records processed by scheduler passes",
	}, []string{"pass", "outcome"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labinventory_notifications_total",
		Help: "Notification deliveries by kind and result",
	}, []string{"kind", "result"})

	notificationQueue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labinventory_notification_queue_depth",
		Help: "Notifications waiting for a dispatcher worker",
	})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func ObserveTransition(from, to, trigger string) {
	borrowTransitions.WithLabelValues(from, to, trigger).Inc()
}

// ObserveReservation counts a reservation attempt: "success", "conflict", "not_found" or "error".
func ObserveReservation(result string) {
	reservations.WithLabelValues(result).Inc()
}

func ObserveSchedulerPass(pass, result string, duration time.Duration) {
	schedulerPassDuration.WithLabelValues(pass, result).Observe(duration.Seconds())
}

// ObserveSchedulerRecords adds n records with the given outcome to a pass counter.
func ObserveSchedulerRecords(pass, outcome string, n int) {
	if n <= 0 {
		return
	}
	schedulerRecords.WithLabelValues(pass, outcome).Add(float64(n))
}

// ObserveNotification counts a notification as "sent", "failed" or "dropped".
func ObserveNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func SetNotificationQueue(depth int) {
	notificationQueue.Set(float64(depth))
}
