package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"venuehours/internal/hours"
)

const namespace = "venuehours"

var (
	once sync.Once

	statusEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_evaluations_total",
			Help:      "Count of open-status evaluations by result.",
		},
		[]string{"result"},
	)

	dataQualityErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_quality_errors_total",
			Help:      "Count of malformed schedule data treated as closed, by kind.",
		},
		[]string{"kind"},
	)

	statusCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_cache_total",
			Help:      "Count of status cache lookups by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"route"},
	)

	configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Count of locations config applications by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(statusEvaluations, dataQualityErrors, statusCache, httpRequests, httpDuration, configReloads)
	})
}

func IncStatus(open bool) {
	result := "closed"
	if open {
		result = "open"
	}
	statusEvaluations.WithLabelValues(result).Inc()
}

// IncDataQuality counts one data-quality error under its sentinel kind.
func IncDataQuality(err error) {
	if err == nil {
		return
	}
	dataQualityErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind maps an engine error to a metric label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, hours.ErrInvalidTime):
		return "invalid_time"
	case errors.Is(err, hours.ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, hours.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, hours.ErrInvalidRule):
		return "invalid_rule"
	default:
		return "other"
	}
}

func IncCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	statusCache.WithLabelValues(result).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}

func ObserveHTTP(route string, started time.Time) {
	httpDuration.WithLabelValues(route).Observe(time.Since(started).Seconds())
}

func IncConfigReload(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	configReloads.WithLabelValues(result).Inc()
}
