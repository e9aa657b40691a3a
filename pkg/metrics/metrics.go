package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskboard_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_task_status_transitions_total",
		Help: "Task status transitions by source and target status",
	}, []string{"from", "to"})

	gateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_task_gate_rejections_total",
		Help: "Status updates rejected by a domain gate",
	}, []string{"code"})

	generatedInstances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_generated_instances_total",
		Help: "Rows processed by instance generation",
	}, []string{"result"})

	dashboardBuild = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskboard_dashboard_build_seconds",
		Help:    "Time spent aggregating a dashboard view",
		Buckets: prometheus.DefBuckets,
	}, []string{"view"})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskboard_ws_clients",
		Help: "Connected websocket clients",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveTransition counts a committed status change.
func ObserveTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

// ObserveGateRejection counts a status update refused with code.
func ObserveGateRejection(code string) {
	gateRejections.WithLabelValues(code).Inc()
}

// ObserveGenerated adds accepted and rejected generation rows.
func ObserveGenerated(accepted, rejected int) {
	generatedInstances.WithLabelValues("accepted").Add(float64(accepted))
	generatedInstances.WithLabelValues("rejected").Add(float64(rejected))
}

// ObserveDashboard records how long a dashboard view took to build.
func ObserveDashboard(view string, duration time.Duration) {
	dashboardBuild.WithLabelValues(view).Observe(duration.Seconds())
}

// SetWSClients sets the websocket client gauge.
func SetWSClients(count int) {
	wsClients.Set(float64(count))
}

// Middleware records every request against its route pattern, not the raw path.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		switch e := err.(type) {
		case *fiber.Error:
			status = e.Code
		case interface{ HTTPStatus() int }:
			status = e.HTTPStatus()
		default:
			if err != nil {
				status = fiber.StatusInternalServerError
			}
		}
		ObserveHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))
		return err
	}
}
