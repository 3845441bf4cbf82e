package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_quiz_attempts_started_total",
			Help: "Quiz attempts started, by assessment type",
		},
		[]string{"assessment_type"},
	)

	AttemptsGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_quiz_attempts_graded_total",
			Help: "Quiz attempts graded, by outcome",
		},
		[]string{"assessment_type", "outcome"},
	)

	AllocationConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_allocation_conflicts_total",
			Help: "Unique-constraint conflicts hit while allocating attempt or version numbers",
		},
		[]string{"resource", "result"},
	)

	ModuleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_module_transitions_total",
			Help: "Module progress status changes",
		},
		[]string{"from", "to"},
	)

	GradesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_grades_recorded_total",
			Help: "Grade versions recorded",
		},
	)

	IntegrityViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_integrity_violations_total",
			Help: "Integrity violations found by the sweep",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptsStarted,
			AttemptsGraded,
			AllocationConflicts,
			ModuleTransitions,
			GradesRecorded,
			IntegrityViolations,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
