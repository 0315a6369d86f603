// Package metrics 部署流水线的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
)

// Metrics 实现 pipeline.Observer
type Metrics struct {
	stageTransitions *prometheus.CounterVec
	deployments      *prometheus.CounterVec
	tokens           *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
}

var _ pipeline.Observer = (*Metrics)(nil)

// New 在 reg 上注册指标；reg 为空时使用默认注册表
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		stageTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchmint_stage_transitions_total",
				Help: "Total number of pipeline stage transitions",
			},
			[]string{"stage"},
		),
		deployments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchmint_deployments_total",
				Help: "Total number of finished deployment attempts by status",
			},
			[]string{"status"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchmint_tokens_total",
				Help: "Total number of tokens reported in receipts by result",
			},
			[]string{"result"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batchmint_attempt_duration_seconds",
				Help:    "Deployment attempt duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
	}
}

// StageChanged 见 pipeline.Observer
func (m *Metrics) StageChanged(stage models.TxStage) {
	m.stageTransitions.WithLabelValues(string(stage)).Inc()
}

// AttemptFinished 见 pipeline.Observer
func (m *Metrics) AttemptFinished(res *pipeline.Result) {
	status := res.Outcome.Status
	m.deployments.WithLabelValues(status).Inc()
	m.attemptDuration.WithLabelValues(status).Observe(res.Duration().Seconds())
	m.tokens.WithLabelValues("deployed").Add(float64(len(res.Outcome.DeployedTokens)))
	m.tokens.WithLabelValues("skipped").Add(float64(len(res.Outcome.SkippedTokens)))
}
