package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics 是 Metrics 的 Prometheus 实现。
type PrometheusMetrics struct {
	sagaStartedTotal  *prometheus.CounterVec
	sagaFinishedTotal *prometheus.CounterVec
	sagaDuration      *prometheus.HistogramVec

	stepFailedTotal           *prometheus.CounterVec
	compensationTotal         *prometheus.CounterVec
	compensationFollowUpTotal *prometheus.CounterVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

// Config 配置指标的命名空间与注册表。
type Config struct {
	Namespace string
	Subsystem string
	// Registry 为空时使用 prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

func DefaultConfig() Config {
	return Config{
		Namespace: "orderflow",
		Subsystem: "saga",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// NewPrometheus 创建并注册所有 saga 指标。
func NewPrometheus(cfg Config) *PrometheusMetrics {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	return &PrometheusMetrics{
		sagaStartedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "started_total",
			Help:      "Total number of sagas started",
		}, []string{"saga"}),

		sagaFinishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "finished_total",
			Help:      "Total number of sagas finished, by outcome",
		}, []string{"saga", "outcome"}),

		sagaDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "duration_seconds",
			Help:      "Saga duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"saga"}),

		stepFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "step_failed_total",
			Help:      "Total number of failed forward steps",
		}, []string{"saga", "step"}),

		compensationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "compensation_total",
			Help:      "Total number of compensations executed",
		}, []string{"saga", "step"}),

		compensationFollowUpTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "compensation_followup_total",
			Help:      "Total number of compensations that require manual follow-up",
		}, []string{"saga", "step"}),
	}
}

func (m *PrometheusMetrics) SagaStarted(saga string) {
	m.sagaStartedTotal.WithLabelValues(saga).Inc()
}

func (m *PrometheusMetrics) SagaFinished(saga string, succeeded bool, duration time.Duration) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	m.sagaFinishedTotal.WithLabelValues(saga, outcome).Inc()
	m.sagaDuration.WithLabelValues(saga).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) StepFailed(saga, step string) {
	m.stepFailedTotal.WithLabelValues(saga, step).Inc()
}

func (m *PrometheusMetrics) CompensationExecuted(saga, step string) {
	m.compensationTotal.WithLabelValues(saga, step).Inc()
}

func (m *PrometheusMetrics) CompensationFollowUp(saga, step string) {
	m.compensationFollowUpTotal.WithLabelValues(saga, step).Inc()
}
