// Package metrics records conversion counters on a private Prometheus
// registry that can be written out for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fmueller/silkconv/internal/convert"
)

// Recorder holds the conversion metrics. The zero value is not usable; call
// New.
type Recorder struct {
	registry *prometheus.Registry

	Jobs          *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Fallbacks     *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silkconv_jobs_total",
			Help: "Files processed, by direction and result",
		}, []string{"direction", "result"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silkconv_stage_failures_total",
			Help: "External process failures, by stage",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "silkconv_stage_duration_seconds",
			Help:    "Wall time of each external process",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"stage"}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silkconv_fallback_total",
			Help: "Direct transcode attempts after a decoder failure, by result",
		}, []string{"result"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage is shaped to be used as convert.Hooks.OnStage.
func (r *Recorder) ObserveStage(e convert.StageEvent) {
	r.StageDuration.WithLabelValues(e.Stage).Observe(e.Elapsed.Seconds())
	if !e.Result.Succeeded {
		r.StageFailures.WithLabelValues(e.Stage).Inc()
	}
}

func (r *Recorder) ObserveOutcome(direction convert.Direction, o convert.Outcome) {
	result := "succeeded"
	if !o.Success {
		result = o.Kind.String()
	}
	r.Jobs.WithLabelValues(direction.String(), result).Inc()

	if o.Fallback != convert.FallbackNone {
		r.Fallbacks.WithLabelValues(o.Fallback.String()).Inc()
	}
}

// WriteTextfile writes the registry in text exposition format. The parent
// directory must exist.
func (r *Recorder) WriteTextfile(path string) error {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("metrics directory %s is not usable", dir)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
