package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cronOutcomeOK     = "ok"
	cronOutcomeFailed = "failed"
)

// CronJobMetrics tracks the maintenance sweeps run by the cron worker: how
// often each ran, how long it took and how many quotes, price lists or
// notifications it touched.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	swept    *prometheus.CounterVec
}

// NewCronJobMetrics registers the sweep metrics. A nil registerer yields a
// no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_sweep_runs_total",
		Help: "Cron sweep executions by job and outcome.",
	}, []string{"job", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_sweep_duration_seconds",
		Help:    "Duration of cron sweeps in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"job"})
	swept := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_swept_records_total",
		Help: "Records expired, deactivated or deleted by cron sweeps.",
	}, []string{"job"})
	reg.MustRegister(runs, duration, swept)
	return &CronJobMetrics{runs: runs, duration: duration, swept: swept}
}

// ObserveSweep records one run of job. Records are only counted for
// successful runs since a failed sweep rolls back.
func (c *CronJobMetrics) ObserveSweep(job string, took time.Duration, records int, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, cronOutcomeFailed).Inc()
		return
	}
	c.runs.WithLabelValues(job, cronOutcomeOK).Inc()
	if records > 0 {
		c.swept.WithLabelValues(job).Add(float64(records))
	}
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
