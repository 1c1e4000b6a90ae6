package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "push_fanout"

// Metrics stores Prometheus collectors used by the API, the dispatcher and the trigger worker.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	dispatchOutcomesTotal *prometheus.CounterVec
	tokensInvalidated     *prometheus.CounterVec
	gatewaySendDuration   *prometheus.HistogramVec
	fanoutSize            *prometheus.HistogramVec
	triggersHandledTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_outcomes_total",
				Help:      "Per-recipient dispatch outcomes by notification type, status, and reason.",
			},
			[]string{"type", "status", "reason"},
		),
		tokensInvalidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tokens_invalidated_total",
				Help:      "Delivery tokens cleared after the gateway reported them dead.",
			},
			[]string{"type"},
		),
		gatewaySendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "gateway_send_duration_seconds",
				Help:      "Gateway send duration in seconds grouped by notification type.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"type"},
		),
		fanoutSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "fanout_recipients",
				Help:      "Number of recipients per fan-out grouped by notification type.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"type"},
		),
		triggersHandledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "triggers_handled_total",
				Help:      "Trigger messages handled by kind and result.",
			},
			[]string{"kind", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchOutcomesTotal,
		m.tokensInvalidated,
		m.gatewaySendDuration,
		m.fanoutSize,
		m.triggersHandledTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatchOutcome(notificationType string, status string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "none"
	}
	m.dispatchOutcomesTotal.WithLabelValues(normalizeLabel(notificationType), normalizeLabel(status), reasonLabel).Inc()
}

func (m *Metrics) IncTokenInvalidated(notificationType string) {
	if m == nil {
		return
	}
	m.tokensInvalidated.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

func (m *Metrics) ObserveGatewaySendDuration(notificationType string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.gatewaySendDuration.WithLabelValues(normalizeLabel(notificationType)).Observe(seconds)
}

func (m *Metrics) ObserveFanoutSize(notificationType string, recipients int) {
	if m == nil {
		return
	}
	m.fanoutSize.WithLabelValues(normalizeLabel(notificationType)).Observe(float64(max(recipients, 0)))
}

func (m *Metrics) IncTriggerHandled(kind string, result string) {
	if m == nil {
		return
	}
	m.triggersHandledTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
