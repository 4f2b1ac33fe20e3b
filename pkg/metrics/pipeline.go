package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StageCompress  = "compress"
	StageVision    = "vision"
	StageOCR       = "ocr"
	StageNormalize = "normalize"
	StageUpload    = "upload"
	StageSave      = "save"
)

// PipelineMetrics records per-stage latency and outcomes of the
// extraction, upload and save pipeline.
type PipelineMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	tokens   *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"stage", "provider"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_success_total",
		Help: "Successful pipeline stage executions.",
	}, []string{"stage"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_failure_total",
		Help: "Failed pipeline stage executions.",
	}, []string{"stage", "code"})
	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_tokens_total",
		Help: "Tokens consumed by vision providers.",
	}, []string{"provider", "direction"})
	reg.MustRegister(duration, success, failure, tokens)
	return &PipelineMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		tokens:   tokens,
	}
}

// ObserveDuration records how long a stage took.
func (p *PipelineMetrics) ObserveDuration(stage, provider string, d time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(stage), normalizeLabel(provider)).Observe(d.Seconds())
}

func (p *PipelineMetrics) IncSuccess(stage string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(stage)).Inc()
}

func (p *PipelineMetrics) IncFailure(stage, code string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(stage), normalizeLabel(code)).Inc()
}

// AddTokens accumulates provider token usage.
func (p *PipelineMetrics) AddTokens(provider string, input, output int64) {
	if p == nil || p.tokens == nil {
		return
	}
	if input > 0 {
		p.tokens.WithLabelValues(normalizeLabel(provider), "input").Add(float64(input))
	}
	if output > 0 {
		p.tokens.WithLabelValues(normalizeLabel(provider), "output").Add(float64(output))
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
