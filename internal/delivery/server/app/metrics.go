package app

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report lifecycle activity.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	readiness     *prometheus.CounterVec
	tasksActive   prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with the
// global Prometheus registry. Collectors are created only once so services can
// be constructed repeatedly without duplicate registration panics.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Registration errors other than AlreadyRegisteredError panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tds",
			Subsystem: "lifecycle",
			Name:      "stage_duration_seconds",
			Help:      "Duration spent in each lifecycle stage.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage", "status"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tds",
			Subsystem: "lifecycle",
			Name:      "stage_failures_total",
			Help:      "Total number of lifecycle stages that aborted a round.",
		},
		[]string{"stage", "reason"},
	)
	deliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tds",
			Subsystem: "notifier",
			Name:      "deliveries_total",
			Help:      "Evaluation notifications by final outcome.",
		},
		[]string{"outcome"},
	)
	readiness := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tds",
			Subsystem: "publish",
			Name:      "readiness_checks_total",
			Help:      "Publish readiness waits by terminal state.",
		},
		[]string{"state"},
	)
	tasksActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tds",
			Subsystem: "lifecycle",
			Name:      "tasks_active",
			Help:      "Number of build or revise rounds currently in flight.",
		},
	)

	collectors := []prometheus.Collector{stageDuration, stageFailures, deliveries, readiness, tasksActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				// Reuse the existing collector when it matches the expected type.
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					stageDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case stageFailures:
						stageFailures = already.ExistingCollector.(*prometheus.CounterVec)
					case deliveries:
						deliveries = already.ExistingCollector.(*prometheus.CounterVec)
					case readiness:
						readiness = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Gauge:
					tasksActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		stageDuration: stageDuration,
		stageFailures: stageFailures,
		deliveries:    deliveries,
		readiness:     readiness,
		tasksActive:   tasksActive,
	}
}

// ObserveStageDuration records the time spent in a stage with the provided status label.
func (m *Metrics) ObserveStageDuration(stage string, status string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// IncStageFailure increments the failure counter for the given stage and reason.
func (m *Metrics) IncStageFailure(stage string, reason string) {
	if m == nil || m.stageFailures == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

// IncDelivery counts a finished notification ("delivered", "abandoned", "rejected").
func (m *Metrics) IncDelivery(outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

// IncReadiness counts a finished readiness wait.
func (m *Metrics) IncReadiness(state ReadyState) {
	if m == nil || m.readiness == nil {
		return
	}
	m.readiness.WithLabelValues(string(state)).Inc()
}

// IncActiveTasks marks a round as in flight.
func (m *Metrics) IncActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Inc()
}

// DecActiveTasks marks a round as finished.
func (m *Metrics) DecActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Dec()
}
