package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records correction pipeline outcomes and stage timings.
type PipelineMetrics struct {
	stageDuration *prometheus.HistogramVec
	completed     *prometheus.CounterVec
}

// Pipeline outcome labels.
const (
	OutcomeRectified = "rectified"
	OutcomeFallback  = "fallback"
	OutcomeAborted   = "aborted"
)

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Duration of correction pipeline stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_completed_total",
		Help: "Correction pipeline completions by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(stageDuration, completed)
	return &PipelineMetrics{
		stageDuration: stageDuration,
		completed:     completed,
	}
}

// ObserveStage records the duration for the named pipeline stage.
func (p *PipelineMetrics) ObserveStage(stage string, duration time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncCompleted increments the completion counter for the given outcome.
func (p *PipelineMetrics) IncCompleted(outcome string) {
	if p == nil || p.completed == nil {
		return
	}
	p.completed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
